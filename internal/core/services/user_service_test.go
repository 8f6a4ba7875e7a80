package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/apperrors"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portsrepo "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/repositories"
	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of portsrepo.UserRepositoryFacade.
type MockUserRepository struct {
	mock.Mock
}

var _ portsrepo.UserRepositoryFacade = (*MockUserRepository)(nil)

func (m *MockUserRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *MockUserRepository) SaveUser(ctx context.Context, user domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateUser(ctx context.Context, user domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) DeactivateUser(ctx context.Context, userID string, deletedBy string, now time.Time) error {
	args := m.Called(ctx, userID, deletedBy, now)
	return args.Error(0)
}

type UserServiceTestSuite struct {
	suite.Suite
	mockUserRepo *MockUserRepository
	service      portssvc.UserSvcFacade
	creatorID    string
}

func (suite *UserServiceTestSuite) SetupTest() {
	suite.mockUserRepo = new(MockUserRepository)
	suite.service = services.NewUserService(suite.mockUserRepo)
	suite.creatorID = uuid.NewString()
}

func (suite *UserServiceTestSuite) TestCreateUser_Success() {
	ctx := context.Background()
	req := dto.CreateUserRequest{Username: "jmartin", Password: "hunter2hunter2", Name: "Jess Martin"}

	suite.mockUserRepo.On("FindUserByUsername", ctx, "jmartin").
		Return(nil, apperrors.NewNotFoundError("user not found")).Once()
	suite.mockUserRepo.On("SaveUser", ctx, mock.MatchedBy(func(u domain.User) bool {
		return u.Username == "jmartin" && u.Name == "Jess Martin" && u.UserID != ""
	})).Return(nil).Once()

	user, err := suite.service.CreateUser(ctx, req, suite.creatorID)

	suite.Require().NoError(err)
	suite.NotEqual(req.Password, user.PasswordHash)
	suite.NoError(bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)))
	suite.Equal(suite.creatorID, user.CreatedBy)
	suite.mockUserRepo.AssertExpectations(suite.T())
}

func (suite *UserServiceTestSuite) TestCreateUser_DuplicateUsername() {
	ctx := context.Background()
	existing := &domain.User{UserID: uuid.NewString(), Username: "jmartin"}
	suite.mockUserRepo.On("FindUserByUsername", ctx, "jmartin").Return(existing, nil).Once()

	_, err := suite.service.CreateUser(ctx, dto.CreateUserRequest{
		Username: "jmartin", Password: "hunter2hunter2", Name: "Jess Martin",
	}, suite.creatorID)

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrDuplicate)
	suite.mockUserRepo.AssertNotCalled(suite.T(), "SaveUser", mock.Anything, mock.Anything)
}

func (suite *UserServiceTestSuite) TestListUsers_ClampsLimit() {
	ctx := context.Background()
	suite.mockUserRepo.On("ListUsers", ctx, 20, 0).Return([]domain.User{}, nil).Twice()

	_, err := suite.service.ListUsers(ctx, 0, -5)
	suite.Require().NoError(err)
	_, err = suite.service.ListUsers(ctx, 500, 0)
	suite.Require().NoError(err)

	suite.mockUserRepo.AssertExpectations(suite.T())
}

func (suite *UserServiceTestSuite) TestGetUserByID() {
	ctx := context.Background()
	userID := uuid.NewString()
	suite.mockUserRepo.On("FindUserByID", ctx, userID).
		Return(&domain.User{UserID: userID, Username: "rchen"}, nil).Once()

	user, err := suite.service.GetUserByID(ctx, userID)

	suite.Require().NoError(err)
	suite.Equal("rchen", user.Username)
}

func TestUserService(t *testing.T) {
	suite.Run(t, new(UserServiceTestSuite))
}
