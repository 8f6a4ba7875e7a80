package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/apperrors"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type AuthServiceTestSuite struct {
	suite.Suite
	mockUserRepo *MockUserRepository
	service      portssvc.AuthSvcFacade
	userID       string
	passwordHash string
}

func (suite *AuthServiceTestSuite) SetupSuite() {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse-battery"), bcrypt.MinCost)
	suite.Require().NoError(err)
	suite.passwordHash = string(hash)
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.mockUserRepo = new(MockUserRepository)
	suite.service = services.NewAuthService(suite.mockUserRepo, "test-secret", time.Hour, "cms-backend")
	suite.userID = uuid.NewString()
}

func (suite *AuthServiceTestSuite) verifiedUser() *domain.User {
	return &domain.User{
		UserID:       suite.userID,
		Username:     "rchen",
		PasswordHash: suite.passwordHash,
		Name:         "Riley Chen",
	}
}

func (suite *AuthServiceTestSuite) TestLogin_Success() {
	ctx := context.Background()
	suite.mockUserRepo.On("FindUserByUsername", ctx, "rchen").Return(suite.verifiedUser(), nil).Once()

	resp, err := suite.service.Login(ctx, dto.LoginRequest{Username: "rchen", Password: "correct-horse-battery"})

	suite.Require().NoError(err)
	suite.NotEmpty(resp.Token)
	suite.Equal(suite.userID, resp.User.UserID)
	suite.True(resp.ExpiresAt.After(time.Now()))
	suite.mockUserRepo.AssertExpectations(suite.T())
}

func (suite *AuthServiceTestSuite) TestLogin_UnknownUser() {
	ctx := context.Background()
	suite.mockUserRepo.On("FindUserByUsername", ctx, "nobody").
		Return(nil, apperrors.NewNotFoundError("user not found")).Once()

	_, err := suite.service.Login(ctx, dto.LoginRequest{Username: "nobody", Password: "whatever"})

	suite.Require().Error(err)
	suite.ErrorIs(err, services.ErrInvalidCredentials)
}

func (suite *AuthServiceTestSuite) TestLogin_WrongPassword() {
	ctx := context.Background()
	suite.mockUserRepo.On("FindUserByUsername", ctx, "rchen").Return(suite.verifiedUser(), nil).Once()

	_, err := suite.service.Login(ctx, dto.LoginRequest{Username: "rchen", Password: "not-the-password"})

	suite.Require().Error(err)
	suite.ErrorIs(err, services.ErrInvalidCredentials)
}

func TestAuthService(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}
