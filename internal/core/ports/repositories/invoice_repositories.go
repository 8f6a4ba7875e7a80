package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	"github.com/shopspring/decimal"
)

// InvoiceReader defines read operations for invoices and their allocations.
type InvoiceReader interface {
	// FindInvoiceByID retrieves a single invoice by its identifier.
	// Soft-deleted invoices are treated as not found.
	FindInvoiceByID(ctx context.Context, invoiceID string) (*domain.Invoice, error)

	// FindAllocationsByInvoiceID retrieves the allocation lines for one invoice.
	FindAllocationsByInvoiceID(ctx context.Context, invoiceID string) ([]domain.Allocation, error)

	// FindAllocationsByInvoiceIDs retrieves allocations for multiple invoices,
	// grouped by invoice ID. Invoices with no allocations map to empty slices.
	FindAllocationsByInvoiceIDs(ctx context.Context, invoiceIDs []string) (map[string][]domain.Allocation, error)

	// ListInvoicesByJob retrieves all live invoices assigned to a job.
	ListInvoicesByJob(ctx context.Context, jobID string) ([]domain.Invoice, error)

	// ListInvoicesByDraw retrieves the member invoices of a draw.
	ListInvoicesByDraw(ctx context.Context, drawID string) ([]domain.Invoice, error)

	// FindChildInvoices retrieves the children of a split parent.
	FindChildInvoices(ctx context.Context, parentInvoiceID string) ([]domain.Invoice, error)
}

// InvoiceWriter defines write operations for invoices.
type InvoiceWriter interface {
	// SaveInvoice inserts a new invoice with its allocations atomically.
	SaveInvoice(ctx context.Context, invoice domain.Invoice, allocations []domain.Allocation) error

	// SaveInvoices inserts several invoices atomically (split children).
	SaveInvoices(ctx context.Context, invoices []domain.Invoice) error

	// UpdateInvoiceWithVersion replaces the invoice row and its allocation
	// lines in one database transaction, conditional on the stored version
	// still equalling expectedVersion. Returns apperrors.ErrVersionConflict
	// when the condition fails; the stored version is bumped on success.
	UpdateInvoiceWithVersion(ctx context.Context, invoice domain.Invoice, allocations []domain.Allocation, expectedVersion int64) error

	// DeleteChildInvoices removes all children of a split parent (unsplit).
	DeleteChildInvoices(ctx context.Context, parentInvoiceID string) error

	// SoftDeleteInvoice sets the tombstone timestamp; rows are never
	// physically deleted.
	SoftDeleteInvoice(ctx context.Context, invoiceID string, userID string, now time.Time) error

	// UpdateInvoiceBilled overwrites the derived billed figure without
	// bumping the version; only the reconciliation engine calls this.
	UpdateInvoiceBilled(ctx context.Context, invoiceID string, billed decimal.Decimal, updatedBy string) error

	// UpdateInvoiceWithVersionInTx is UpdateInvoiceWithVersion running inside
	// the caller's transaction.
	UpdateInvoiceWithVersionInTx(ctx context.Context, tx pgx.Tx, invoice domain.Invoice, allocations []domain.Allocation, expectedVersion int64) error

	// SaveInvoicesInTx is SaveInvoices running inside the caller's transaction.
	SaveInvoicesInTx(ctx context.Context, tx pgx.Tx, invoices []domain.Invoice) error

	// DeleteChildInvoicesInTx is DeleteChildInvoices running inside the
	// caller's transaction.
	DeleteChildInvoicesInTx(ctx context.Context, tx pgx.Tx, parentInvoiceID string) error
}

// InvoiceRepositoryFacade combines all invoice repository interfaces.
type InvoiceRepositoryFacade interface {
	InvoiceReader
	InvoiceWriter
}

// InvoiceRepositoryWithTx extends the facade with transaction capabilities.
type InvoiceRepositoryWithTx interface {
	InvoiceRepositoryFacade
	TransactionManager
}
