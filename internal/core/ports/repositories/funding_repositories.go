package repositories

import (
	"context"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	"github.com/shopspring/decimal"
)

// FundingReader defines read operations over purchase orders, change orders
// and cost codes. The funding resolver is read-only; linking decisions are
// written back through the invoice repository as allocation fields.
type FundingReader interface {
	// FindPurchaseOrdersByJob retrieves a job's POs including line items.
	FindPurchaseOrdersByJob(ctx context.Context, jobID string) ([]domain.PurchaseOrder, error)

	// FindPurchaseOrderByID retrieves one PO including line items.
	FindPurchaseOrderByID(ctx context.Context, poID string) (*domain.PurchaseOrder, error)

	// FindChangeOrdersByJob retrieves a job's change orders.
	FindChangeOrdersByJob(ctx context.Context, jobID string) ([]domain.ChangeOrder, error)

	// SumBilledByPO returns, per PO, the sum of allocation amounts coded
	// against it on live invoices, excluding excludeInvoiceID so a live edit
	// is not double-counted against itself.
	SumBilledByPO(ctx context.Context, jobID string, excludeInvoiceID string) (map[string]decimal.Decimal, error)

	// SumBilledByChangeOrder is the change-order analogue of SumBilledByPO.
	SumBilledByChangeOrder(ctx context.Context, jobID string, excludeInvoiceID string) (map[string]decimal.Decimal, error)

	// FindCostCodesByIDs retrieves cost codes keyed by ID.
	FindCostCodesByIDs(ctx context.Context, costCodeIDs []string) (map[string]domain.CostCode, error)

	// ListCostCodes retrieves all active cost codes.
	ListCostCodes(ctx context.Context) ([]domain.CostCode, error)
}

// FundingRepositoryFacade combines funding repository interfaces.
type FundingRepositoryFacade interface {
	FundingReader
}
