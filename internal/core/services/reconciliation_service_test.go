package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portsrepo "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/repositories"
	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// MockBudgetRepository is a mock implementation of portsrepo.BudgetRepositoryFacade.
type MockBudgetRepository struct {
	mock.Mock
}

var _ portsrepo.BudgetRepositoryFacade = (*MockBudgetRepository)(nil)

func (m *MockBudgetRepository) FindBudgetLinesByJob(ctx context.Context, jobID string) ([]domain.BudgetLine, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BudgetLine), args.Error(1)
}

func (m *MockBudgetRepository) FindJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockBudgetRepository) ListJobs(ctx context.Context) ([]domain.Job, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Job), args.Error(1)
}

func (m *MockBudgetRepository) SaveBudgetLine(ctx context.Context, line domain.BudgetLine) error {
	args := m.Called(ctx, line)
	return args.Error(0)
}

func (m *MockBudgetRepository) UpdateBudgetDerived(ctx context.Context, budgetLineID string, billed, paid decimal.Decimal, updatedBy string) error {
	args := m.Called(ctx, budgetLineID, billed, paid, updatedBy)
	return args.Error(0)
}

type ReconciliationServiceTestSuite struct {
	suite.Suite
	mockInvoiceRepo  *MockInvoiceRepository
	mockDrawRepo     *MockDrawRepository
	mockBudgetRepo   *MockBudgetRepository
	mockActivityRepo *MockActivityRepository
	service          portssvc.ReconciliationSvcFacade
	jobID            string
	userID           string
	costCodeID       string
}

func (suite *ReconciliationServiceTestSuite) SetupTest() {
	suite.mockInvoiceRepo = new(MockInvoiceRepository)
	suite.mockDrawRepo = new(MockDrawRepository)
	suite.mockBudgetRepo = new(MockBudgetRepository)
	suite.mockActivityRepo = new(MockActivityRepository)
	suite.service = services.NewReconciliationService(
		suite.mockInvoiceRepo, suite.mockDrawRepo, suite.mockBudgetRepo, suite.mockActivityRepo)

	suite.jobID = uuid.NewString()
	suite.userID = uuid.NewString()
	suite.costCodeID = uuid.NewString()

	suite.mockActivityRepo.On("AppendActivity", mock.Anything, mock.Anything).Return(nil).Maybe()
}

// consistentState is a job with one draw, one in-draw invoice and one budget
// line where every stored total already matches its derived value.
func (suite *ReconciliationServiceTestSuite) consistentState() ([]domain.Invoice, map[string][]domain.Allocation, []domain.Draw, []domain.BudgetLine) {
	drawID := uuid.NewString()
	invoiceID := uuid.NewString()
	invoices := []domain.Invoice{{
		InvoiceID:    invoiceID,
		JobID:        &suite.jobID,
		Amount:       decimal.NewFromInt(750),
		Status:       domain.StatusInDraw,
		BilledAmount: decimal.NewFromInt(750),
		DrawID:       &drawID,
	}}
	allocs := map[string][]domain.Allocation{
		invoiceID: {{
			AllocationID: uuid.NewString(),
			InvoiceID:    invoiceID,
			CostCodeID:   suite.costCodeID,
			Amount:       decimal.NewFromInt(750),
		}},
	}
	draws := []domain.Draw{{
		DrawID:      drawID,
		JobID:       suite.jobID,
		DrawNumber:  1,
		Status:      domain.DrawDraft,
		TotalAmount: decimal.NewFromInt(750),
	}}
	lines := []domain.BudgetLine{{
		BudgetLineID:   uuid.NewString(),
		JobID:          suite.jobID,
		CostCodeID:     suite.costCodeID,
		BudgetedAmount: decimal.NewFromInt(1000),
		BilledAmount:   decimal.NewFromInt(750),
		PaidAmount:     decimal.Zero,
	}}
	return invoices, allocs, draws, lines
}

func (suite *ReconciliationServiceTestSuite) expectFetch(invoices []domain.Invoice, allocs map[string][]domain.Allocation, draws []domain.Draw, lines []domain.BudgetLine) {
	suite.mockInvoiceRepo.On("ListInvoicesByJob", mock.Anything, suite.jobID).Return(invoices, nil).Once()
	suite.mockInvoiceRepo.On("FindAllocationsByInvoiceIDs", mock.Anything, mock.Anything).Return(allocs, nil).Once()
	suite.mockDrawRepo.On("ListDrawsByJob", mock.Anything, suite.jobID).Return(draws, nil).Once()
	suite.mockBudgetRepo.On("FindBudgetLinesByJob", mock.Anything, suite.jobID).Return(lines, nil).Once()
}

func (suite *ReconciliationServiceTestSuite) TestReconcileJob_NoDrift() {
	ctx := context.Background()
	suite.expectFetch(suite.consistentState())

	report, err := suite.service.ReconcileJob(ctx, suite.jobID, true, suite.userID)

	suite.Require().NoError(err)
	suite.Empty(report.Discrepancies)
	suite.Zero(report.CorrectionsApplied)
	suite.mockDrawRepo.AssertNotCalled(suite.T(), "UpdateDrawTotal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	suite.mockInvoiceRepo.AssertNotCalled(suite.T(), "UpdateInvoiceBilled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	suite.mockBudgetRepo.AssertNotCalled(suite.T(), "UpdateBudgetDerived", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ReconciliationServiceTestSuite) TestReconcileJob_ReportOnlyLeavesDrift() {
	ctx := context.Background()
	invoices, allocs, draws, lines := suite.consistentState()
	draws[0].TotalAmount = decimal.NewFromInt(900)
	invoices[0].BilledAmount = decimal.NewFromInt(600)
	suite.expectFetch(invoices, allocs, draws, lines)

	report, err := suite.service.ReconcileJob(ctx, suite.jobID, false, suite.userID)

	suite.Require().NoError(err)
	suite.Len(report.Discrepancies, 2)
	suite.Zero(report.CorrectionsApplied)
	for _, d := range report.Discrepancies {
		suite.False(d.Corrected)
	}
	suite.mockDrawRepo.AssertNotCalled(suite.T(), "UpdateDrawTotal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	suite.mockInvoiceRepo.AssertNotCalled(suite.T(), "UpdateInvoiceBilled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ReconciliationServiceTestSuite) TestReconcileJob_WriteModeRepairsDrawTotal() {
	ctx := context.Background()
	invoices, allocs, draws, lines := suite.consistentState()
	draws[0].TotalAmount = decimal.NewFromInt(900)
	suite.expectFetch(invoices, allocs, draws, lines)
	suite.mockDrawRepo.On("UpdateDrawTotal", mock.Anything, draws[0].DrawID,
		mock.MatchedBy(func(total decimal.Decimal) bool { return total.Equal(decimal.NewFromInt(750)) }),
		suite.userID).Return(nil).Once()

	report, err := suite.service.ReconcileJob(ctx, suite.jobID, true, suite.userID)

	suite.Require().NoError(err)
	suite.Require().Len(report.Discrepancies, 1)
	suite.Equal("draw", report.Discrepancies[0].EntityType)
	suite.Equal("total_amount", report.Discrepancies[0].Field)
	suite.True(report.Discrepancies[0].Corrected)
	suite.Equal(1, report.CorrectionsApplied)
	suite.mockDrawRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestReconcileJob_WriteModeRepairsInvoiceBilled() {
	ctx := context.Background()
	invoices, allocs, draws, lines := suite.consistentState()
	invoices[0].BilledAmount = decimal.NewFromInt(600)
	suite.expectFetch(invoices, allocs, draws, lines)
	suite.mockInvoiceRepo.On("UpdateInvoiceBilled", mock.Anything, invoices[0].InvoiceID,
		mock.MatchedBy(func(billed decimal.Decimal) bool { return billed.Equal(decimal.NewFromInt(750)) }),
		suite.userID).Return(nil).Once()

	report, err := suite.service.ReconcileJob(ctx, suite.jobID, true, suite.userID)

	suite.Require().NoError(err)
	suite.Require().Len(report.Discrepancies, 1)
	suite.Equal("invoice", report.Discrepancies[0].EntityType)
	suite.Equal("billed_amount", report.Discrepancies[0].Field)
	suite.Equal(1, report.CorrectionsApplied)
	suite.mockInvoiceRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestReconcileJob_InvoiceOutOfDrawBillsZero() {
	ctx := context.Background()
	invoices, allocs, draws, lines := suite.consistentState()
	// The invoice left its draw but kept a stale billed figure. Its
	// allocations no longer roll up anywhere, so the budget line drifts too.
	invoices[0].DrawID = nil
	invoices[0].Status = domain.StatusApproved
	draws[0].TotalAmount = decimal.Zero
	suite.expectFetch(invoices, allocs, draws, lines)
	suite.mockInvoiceRepo.On("UpdateInvoiceBilled", mock.Anything, invoices[0].InvoiceID,
		mock.MatchedBy(func(billed decimal.Decimal) bool { return billed.IsZero() }),
		suite.userID).Return(nil).Once()
	suite.mockBudgetRepo.On("UpdateBudgetDerived", mock.Anything, lines[0].BudgetLineID,
		mock.MatchedBy(func(billed decimal.Decimal) bool { return billed.IsZero() }),
		mock.Anything, suite.userID).Return(nil).Once()

	report, err := suite.service.ReconcileJob(ctx, suite.jobID, true, suite.userID)

	suite.Require().NoError(err)
	suite.Len(report.Discrepancies, 2)
	suite.Equal(2, report.CorrectionsApplied)
}

func (suite *ReconciliationServiceTestSuite) TestReconcileJob_BudgetLineBothFieldsDrifted() {
	ctx := context.Background()
	invoices, allocs, draws, lines := suite.consistentState()
	invoices[0].Status = domain.StatusPaid
	lines[0].BilledAmount = decimal.NewFromInt(700)
	lines[0].PaidAmount = decimal.Zero
	suite.expectFetch(invoices, allocs, draws, lines)
	suite.mockBudgetRepo.On("UpdateBudgetDerived", mock.Anything, lines[0].BudgetLineID,
		mock.MatchedBy(func(billed decimal.Decimal) bool { return billed.Equal(decimal.NewFromInt(750)) }),
		mock.MatchedBy(func(paid decimal.Decimal) bool { return paid.Equal(decimal.NewFromInt(750)) }),
		suite.userID).Return(nil).Once()

	report, err := suite.service.ReconcileJob(ctx, suite.jobID, true, suite.userID)

	suite.Require().NoError(err)
	suite.Require().Len(report.Discrepancies, 2)
	fields := []string{report.Discrepancies[0].Field, report.Discrepancies[1].Field}
	suite.Contains(fields, "billed_amount")
	suite.Contains(fields, "paid_amount")
	for _, d := range report.Discrepancies {
		suite.Equal("budget_line", d.EntityType)
		suite.Equal(lines[0].BudgetLineID, d.EntityID)
		suite.True(d.Corrected)
	}
	suite.Equal(2, report.CorrectionsApplied)
	suite.mockBudgetRepo.AssertNumberOfCalls(suite.T(), "UpdateBudgetDerived", 1)
}

func (suite *ReconciliationServiceTestSuite) TestReconcileJob_CreatesMissingBudgetLine() {
	ctx := context.Background()
	invoices, allocs, draws, _ := suite.consistentState()
	suite.expectFetch(invoices, allocs, draws, []domain.BudgetLine{})
	suite.mockBudgetRepo.On("SaveBudgetLine", mock.Anything, mock.MatchedBy(func(line domain.BudgetLine) bool {
		return line.JobID == suite.jobID &&
			line.CostCodeID == suite.costCodeID &&
			line.BudgetedAmount.IsZero() &&
			line.BilledAmount.Equal(decimal.NewFromInt(750))
	})).Return(nil).Once()

	report, err := suite.service.ReconcileJob(ctx, suite.jobID, true, suite.userID)

	suite.Require().NoError(err)
	suite.Require().Len(report.Discrepancies, 1)
	suite.Equal("budget_line", report.Discrepancies[0].EntityType)
	suite.Equal(suite.costCodeID, report.Discrepancies[0].EntityID)
	suite.Equal(1, report.BudgetLinesCreated)
	suite.mockBudgetRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestReconcileJob_SecondRunFindsNothing() {
	ctx := context.Background()
	invoices, allocs, draws, lines := suite.consistentState()
	draws[0].TotalAmount = decimal.NewFromInt(900)
	suite.expectFetch(invoices, allocs, draws, lines)
	suite.mockDrawRepo.On("UpdateDrawTotal", mock.Anything, draws[0].DrawID, mock.Anything, suite.userID).Return(nil).Once()

	first, err := suite.service.ReconcileJob(ctx, suite.jobID, true, suite.userID)
	suite.Require().NoError(err)
	suite.Equal(1, first.CorrectionsApplied)

	// The stored state now matches what the repair wrote.
	draws[0].TotalAmount = decimal.NewFromInt(750)
	suite.expectFetch(invoices, allocs, draws, lines)

	second, err := suite.service.ReconcileJob(ctx, suite.jobID, true, suite.userID)
	suite.Require().NoError(err)
	suite.Empty(second.Discrepancies)
	suite.Zero(second.CorrectionsApplied)
}

func (suite *ReconciliationServiceTestSuite) TestReconcileAll_ContinuesPastFailingJob() {
	ctx := context.Background()
	badJobID := uuid.NewString()
	suite.mockBudgetRepo.On("ListJobs", mock.Anything).Return([]domain.Job{
		{JobID: badJobID, Name: "Hillside Remodel", IsActive: true},
		{JobID: suite.jobID, Name: "Lakeview Build", IsActive: true},
	}, nil).Once()

	suite.mockInvoiceRepo.On("ListInvoicesByJob", mock.Anything, badJobID).
		Return(nil, errors.New("connection reset")).Once()
	suite.expectFetch(suite.consistentState())

	reports, err := suite.service.ReconcileAll(ctx, false, suite.userID)

	suite.Require().NoError(err)
	suite.Require().Len(reports, 1)
	suite.Equal(suite.jobID, reports[0].JobID)
}

func TestReconciliationService(t *testing.T) {
	suite.Run(t, new(ReconciliationServiceTestSuite))
}
