package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/apperrors"
	portsrepo "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/repositories"
	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/middleware"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for a bad username or password. The two
// cases are deliberately indistinguishable to the caller.
var ErrInvalidCredentials = apperrors.NewAppError(401, "invalid username or password", apperrors.ErrForbidden)

// authService authenticates staff users and issues signed bearer tokens.
type authService struct {
	userRepo  portsrepo.UserReader
	jwtSecret string
	jwtExpiry time.Duration
	jwtIssuer string
	now       func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo portsrepo.UserReader, jwtSecret string, jwtExpiry time.Duration, jwtIssuer string) portssvc.AuthSvcFacade {
	return &authService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
		jwtIssuer: jwtIssuer,
		now:       time.Now,
	}
}

var _ portssvc.AuthSvcFacade = (*authService)(nil)

// Login verifies credentials and issues a JWT.
func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	user, err := s.userRepo.FindUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		logger.Warn("Login failed", slog.String("username", req.Username))
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.jwtExpiry)
	claims := jwt.RegisteredClaims{
		Subject:   user.UserID,
		Issuer:    s.jwtIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to sign token", err)
	}

	logger.Info("User logged in", slog.String("user_id", user.UserID))
	return &dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      dto.ToUserResponse(user),
	}, nil
}
