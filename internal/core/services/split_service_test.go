package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/apperrors"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type SplitServiceTestSuite struct {
	suite.Suite
	mockInvoiceRepo  *MockInvoiceRepository
	mockActivityRepo *MockActivityRepository
	service          portssvc.SplitSvcFacade
	userID           string
	jobA             string
	jobB             string
}

func (suite *SplitServiceTestSuite) SetupTest() {
	suite.mockInvoiceRepo = new(MockInvoiceRepository)
	suite.mockActivityRepo = new(MockActivityRepository)
	suite.service = services.NewSplitService(suite.mockInvoiceRepo, suite.mockActivityRepo)

	suite.userID = uuid.NewString()
	suite.jobA = uuid.NewString()
	suite.jobB = uuid.NewString()

	suite.mockActivityRepo.On("AppendActivity", mock.Anything, mock.Anything).Return(nil).Maybe()
}

func (suite *SplitServiceTestSuite) parentInvoice() *domain.Invoice {
	return &domain.Invoice{
		InvoiceID:     uuid.NewString(),
		JobID:         &suite.jobA,
		InvoiceNumber: "INV-500",
		Amount:        decimal.NewFromInt(1000),
		Status:        domain.StatusNeedsReview,
		BilledAmount:  decimal.Zero,
		PaidAmount:    decimal.Zero,
		Version:       1,
	}
}

func (suite *SplitServiceTestSuite) TestSplit_Success() {
	ctx := context.Background()
	parent := suite.parentInvoice()
	suite.mockInvoiceRepo.On("FindInvoiceByID", ctx, parent.InvoiceID).Return(parent, nil).Once()
	suite.mockInvoiceRepo.On("Begin", ctx).Return(nil, nil).Once()
	suite.mockInvoiceRepo.On("Rollback", ctx, mock.Anything).Return(nil).Maybe()
	suite.mockInvoiceRepo.On("UpdateInvoiceWithVersionInTx", ctx, mock.Anything, mock.MatchedBy(func(updated domain.Invoice) bool {
		return updated.Status == domain.StatusSplit && updated.IsSplitParent
	}), mock.Anything, int64(1)).Return(nil).Once()

	var savedChildren []domain.Invoice
	suite.mockInvoiceRepo.On("SaveInvoicesInTx", ctx, mock.Anything, mock.AnythingOfType("[]domain.Invoice")).
		Run(func(args mock.Arguments) {
			savedChildren = args.Get(2).([]domain.Invoice)
		}).Return(nil).Once()
	suite.mockInvoiceRepo.On("Commit", ctx, mock.Anything).Return(nil).Once()

	req := dto.SplitInvoiceRequest{
		Version: 1,
		Targets: []dto.SplitTarget{
			{JobID: suite.jobA, Amount: decimal.NewFromInt(600)},
			{JobID: suite.jobB, Amount: decimal.NewFromInt(400)},
		},
	}
	resp, err := suite.service.Split(ctx, parent.InvoiceID, req, suite.userID)

	suite.Require().NoError(err)
	suite.Equal(string(domain.StatusSplit), resp.Parent.Status)
	suite.True(resp.Parent.IsSplitParent)
	suite.Require().Len(resp.Children, 2)
	suite.Equal("INV-500-1", resp.Children[0].InvoiceNumber)
	suite.Equal("INV-500-2", resp.Children[1].InvoiceNumber)
	suite.Equal("600", resp.Children[0].Amount.String())
	suite.Equal("400", resp.Children[1].Amount.String())

	suite.Require().Len(savedChildren, 2)
	for _, child := range savedChildren {
		suite.Equal(domain.StatusNeedsReview, child.Status)
		suite.Equal(int64(1), child.Version)
		suite.Require().NotNil(child.ParentInvoiceID)
		suite.Equal(parent.InvoiceID, *child.ParentInvoiceID)
	}
	suite.mockInvoiceRepo.AssertExpectations(suite.T())
}

func (suite *SplitServiceTestSuite) TestSplit_SumMismatch() {
	ctx := context.Background()
	parent := suite.parentInvoice()
	suite.mockInvoiceRepo.On("FindInvoiceByID", ctx, parent.InvoiceID).Return(parent, nil).Once()

	req := dto.SplitInvoiceRequest{
		Version: 1,
		Targets: []dto.SplitTarget{
			{JobID: suite.jobA, Amount: decimal.NewFromInt(600)},
			{JobID: suite.jobB, Amount: decimal.NewFromInt(300)},
		},
	}
	_, err := suite.service.Split(ctx, parent.InvoiceID, req, suite.userID)

	suite.Require().Error(err)
	suite.ErrorIs(err, services.ErrSplitSumMismatch)
	suite.mockInvoiceRepo.AssertNotCalled(suite.T(), "SaveInvoicesInTx", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *SplitServiceTestSuite) TestSplit_ChildSaveFailureAbandonsSplit() {
	ctx := context.Background()
	parent := suite.parentInvoice()
	suite.mockInvoiceRepo.On("FindInvoiceByID", ctx, parent.InvoiceID).Return(parent, nil).Once()
	suite.mockInvoiceRepo.On("Begin", ctx).Return(nil, nil).Once()
	suite.mockInvoiceRepo.On("Rollback", ctx, mock.Anything).Return(nil).Maybe()
	suite.mockInvoiceRepo.On("UpdateInvoiceWithVersionInTx", ctx, mock.Anything, mock.AnythingOfType("domain.Invoice"), mock.Anything, int64(1)).Return(nil).Once()
	suite.mockInvoiceRepo.On("SaveInvoicesInTx", ctx, mock.Anything, mock.AnythingOfType("[]domain.Invoice")).
		Return(apperrors.NewAppError(500, "insert failed", apperrors.ErrInternal)).Once()

	req := dto.SplitInvoiceRequest{
		Version: 1,
		Targets: []dto.SplitTarget{
			{JobID: suite.jobA, Amount: decimal.NewFromInt(600)},
			{JobID: suite.jobB, Amount: decimal.NewFromInt(400)},
		},
	}
	_, err := suite.service.Split(ctx, parent.InvoiceID, req, suite.userID)

	suite.Require().Error(err)
	suite.mockInvoiceRepo.AssertNotCalled(suite.T(), "Commit", mock.Anything, mock.Anything)
}

func (suite *SplitServiceTestSuite) TestSplit_TooFewTargets() {
	ctx := context.Background()
	parent := suite.parentInvoice()
	suite.mockInvoiceRepo.On("FindInvoiceByID", ctx, parent.InvoiceID).Return(parent, nil).Once()

	req := dto.SplitInvoiceRequest{
		Version: 1,
		Targets: []dto.SplitTarget{{JobID: suite.jobA, Amount: decimal.NewFromInt(1000)}},
	}
	_, err := suite.service.Split(ctx, parent.InvoiceID, req, suite.userID)

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *SplitServiceTestSuite) TestSplit_ApprovedInvoiceRefused() {
	ctx := context.Background()
	parent := suite.parentInvoice()
	parent.Status = domain.StatusApproved
	suite.mockInvoiceRepo.On("FindInvoiceByID", ctx, parent.InvoiceID).Return(parent, nil).Once()

	req := dto.SplitInvoiceRequest{
		Version: 1,
		Targets: []dto.SplitTarget{
			{JobID: suite.jobA, Amount: decimal.NewFromInt(600)},
			{JobID: suite.jobB, Amount: decimal.NewFromInt(400)},
		},
	}
	_, err := suite.service.Split(ctx, parent.InvoiceID, req, suite.userID)

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrConflict)
}

func (suite *SplitServiceTestSuite) TestSplit_ChildCannotBeSplit() {
	ctx := context.Background()
	parent := suite.parentInvoice()
	grandparentID := uuid.NewString()
	parent.ParentInvoiceID = &grandparentID
	suite.mockInvoiceRepo.On("FindInvoiceByID", ctx, parent.InvoiceID).Return(parent, nil).Once()

	req := dto.SplitInvoiceRequest{
		Version: 1,
		Targets: []dto.SplitTarget{
			{JobID: suite.jobA, Amount: decimal.NewFromInt(600)},
			{JobID: suite.jobB, Amount: decimal.NewFromInt(400)},
		},
	}
	_, err := suite.service.Split(ctx, parent.InvoiceID, req, suite.userID)

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrConflict)
}

func (suite *SplitServiceTestSuite) TestUnsplit_Success() {
	ctx := context.Background()
	parent := suite.parentInvoice()
	parent.Status = domain.StatusSplit
	parent.IsSplitParent = true
	children := []domain.Invoice{
		{InvoiceID: uuid.NewString(), Status: domain.StatusNeedsReview},
		{InvoiceID: uuid.NewString(), Status: domain.StatusReadyForApproval},
	}
	suite.mockInvoiceRepo.On("FindInvoiceByID", ctx, parent.InvoiceID).Return(parent, nil).Once()
	suite.mockInvoiceRepo.On("FindChildInvoices", ctx, parent.InvoiceID).Return(children, nil).Once()
	suite.mockInvoiceRepo.On("Begin", ctx).Return(nil, nil).Once()
	suite.mockInvoiceRepo.On("Rollback", ctx, mock.Anything).Return(nil).Maybe()
	suite.mockInvoiceRepo.On("UpdateInvoiceWithVersionInTx", ctx, mock.Anything, mock.MatchedBy(func(updated domain.Invoice) bool {
		return updated.Status == domain.StatusNeedsReview && !updated.IsSplitParent
	}), mock.Anything, int64(1)).Return(nil).Once()
	suite.mockInvoiceRepo.On("DeleteChildInvoicesInTx", ctx, mock.Anything, parent.InvoiceID).Return(nil).Once()
	suite.mockInvoiceRepo.On("Commit", ctx, mock.Anything).Return(nil).Once()

	resp, err := suite.service.Unsplit(ctx, parent.InvoiceID, 1, suite.userID)

	suite.Require().NoError(err)
	suite.Equal(string(domain.StatusNeedsReview), resp.Status)
	suite.False(resp.IsSplitParent)
	suite.Equal(int64(2), resp.Version)
	suite.mockInvoiceRepo.AssertExpectations(suite.T())
}

func (suite *SplitServiceTestSuite) TestUnsplit_ChildAdvanced() {
	ctx := context.Background()
	parent := suite.parentInvoice()
	parent.Status = domain.StatusSplit
	parent.IsSplitParent = true
	children := []domain.Invoice{
		{InvoiceID: uuid.NewString(), Status: domain.StatusNeedsReview},
		{InvoiceID: uuid.NewString(), Status: domain.StatusApproved},
	}
	suite.mockInvoiceRepo.On("FindInvoiceByID", ctx, parent.InvoiceID).Return(parent, nil).Once()
	suite.mockInvoiceRepo.On("FindChildInvoices", ctx, parent.InvoiceID).Return(children, nil).Once()

	_, err := suite.service.Unsplit(ctx, parent.InvoiceID, 1, suite.userID)

	suite.Require().Error(err)
	suite.ErrorIs(err, services.ErrChildAdvanced)
	suite.mockInvoiceRepo.AssertNotCalled(suite.T(), "DeleteChildInvoicesInTx", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *SplitServiceTestSuite) TestUnsplit_NotSplitParent() {
	ctx := context.Background()
	parent := suite.parentInvoice()
	suite.mockInvoiceRepo.On("FindInvoiceByID", ctx, parent.InvoiceID).Return(parent, nil).Once()

	_, err := suite.service.Unsplit(ctx, parent.InvoiceID, 1, suite.userID)

	suite.Require().Error(err)
	suite.ErrorIs(err, services.ErrNotSplitParent)
}

func (suite *SplitServiceTestSuite) TestUnsplit_VersionMismatch() {
	ctx := context.Background()
	parent := suite.parentInvoice()
	parent.IsSplitParent = true
	parent.Version = 4
	suite.mockInvoiceRepo.On("FindInvoiceByID", ctx, parent.InvoiceID).Return(parent, nil).Once()

	_, err := suite.service.Unsplit(ctx, parent.InvoiceID, 2, suite.userID)

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrVersionConflict)
}

func TestSplitService(t *testing.T) {
	suite.Run(t, new(SplitServiceTestSuite))
}
