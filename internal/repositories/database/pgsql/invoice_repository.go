package pgsql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/apperrors"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portsrepo "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

type PgxInvoiceRepository struct {
	BaseRepository
}

// newPgxInvoiceRepository creates a new repository for invoice and allocation data.
func newPgxInvoiceRepository(pool *pgxpool.Pool) portsrepo.InvoiceRepositoryWithTx {
	return &PgxInvoiceRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

// Ensure implementation matches interface
var _ portsrepo.InvoiceRepositoryWithTx = (*PgxInvoiceRepository)(nil)

const invoiceColumns = `
	invoice_id, job_id, vendor_id, invoice_number, amount, invoice_date, due_date,
	status, billed_amount, paid_amount, version, draw_id, parent_invoice_id,
	is_split_parent, closed_out_at, closed_out_by, closed_out_reason, close_out_notes,
	deleted_at, field_origins,
	created_at, created_by, last_updated_at, last_updated_by`

func scanInvoice(row pgx.Row) (domain.Invoice, error) {
	var inv domain.Invoice
	var closedOutReason *string
	var fieldOrigins []byte
	err := row.Scan(
		&inv.InvoiceID,
		&inv.JobID,
		&inv.VendorID,
		&inv.InvoiceNumber,
		&inv.Amount,
		&inv.InvoiceDate,
		&inv.DueDate,
		&inv.Status,
		&inv.BilledAmount,
		&inv.PaidAmount,
		&inv.Version,
		&inv.DrawID,
		&inv.ParentInvoiceID,
		&inv.IsSplitParent,
		&inv.ClosedOutAt,
		&inv.ClosedOutBy,
		&closedOutReason,
		&inv.CloseOutNotes,
		&inv.DeletedAt,
		&fieldOrigins,
		&inv.CreatedAt,
		&inv.CreatedBy,
		&inv.LastUpdatedAt,
		&inv.LastUpdatedBy,
	)
	if err != nil {
		return inv, err
	}
	if closedOutReason != nil {
		reason := domain.CloseOutReason(*closedOutReason)
		inv.ClosedOutReason = &reason
	}
	if len(fieldOrigins) > 0 {
		if err := json.Unmarshal(fieldOrigins, &inv.FieldOrigins); err != nil {
			return inv, fmt.Errorf("failed to decode field origins for invoice %s: %w", inv.InvoiceID, err)
		}
	}
	return inv, nil
}

// invoiceArgs flattens an invoice into the positional argument list matching
// invoiceColumns.
func invoiceArgs(inv domain.Invoice) ([]interface{}, error) {
	var fieldOrigins []byte
	if len(inv.FieldOrigins) > 0 {
		var err error
		fieldOrigins, err = json.Marshal(inv.FieldOrigins)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field origins: %w", err)
		}
	}
	var closedOutReason *string
	if inv.ClosedOutReason != nil {
		s := string(*inv.ClosedOutReason)
		closedOutReason = &s
	}
	return []interface{}{
		inv.InvoiceID,
		inv.JobID,
		inv.VendorID,
		inv.InvoiceNumber,
		inv.Amount,
		inv.InvoiceDate,
		inv.DueDate,
		inv.Status,
		inv.BilledAmount,
		inv.PaidAmount,
		inv.Version,
		inv.DrawID,
		inv.ParentInvoiceID,
		inv.IsSplitParent,
		inv.ClosedOutAt,
		inv.ClosedOutBy,
		closedOutReason,
		inv.CloseOutNotes,
		inv.DeletedAt,
		fieldOrigins,
		inv.CreatedAt,
		inv.CreatedBy,
		inv.LastUpdatedAt,
		inv.LastUpdatedBy,
	}, nil
}

const allocationColumns = `
	allocation_id, invoice_id, cost_code_id, amount, po_id, change_order_id,
	notes, provenance, needs_co_link,
	created_at, created_by, last_updated_at, last_updated_by`

func scanAllocation(row pgx.CollectableRow) (domain.Allocation, error) {
	var a domain.Allocation
	err := row.Scan(
		&a.AllocationID,
		&a.InvoiceID,
		&a.CostCodeID,
		&a.Amount,
		&a.POID,
		&a.ChangeOrderID,
		&a.Notes,
		&a.Provenance,
		&a.NeedsCOLink,
		&a.CreatedAt,
		&a.CreatedBy,
		&a.LastUpdatedAt,
		&a.LastUpdatedBy,
	)
	return a, err
}

const insertAllocationQuery = `
	INSERT INTO allocations (allocation_id, invoice_id, cost_code_id, amount, po_id, change_order_id, notes, provenance, needs_co_link, created_at, created_by, last_updated_at, last_updated_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
`

func queueAllocationInserts(batch *pgx.Batch, allocations []domain.Allocation) {
	for _, a := range allocations {
		batch.Queue(insertAllocationQuery,
			a.AllocationID,
			a.InvoiceID,
			a.CostCodeID,
			a.Amount,
			a.POID,
			a.ChangeOrderID,
			a.Notes,
			a.Provenance,
			a.NeedsCOLink,
			a.CreatedAt,
			a.CreatedBy,
			a.LastUpdatedAt,
			a.LastUpdatedBy,
		)
	}
}

// FindInvoiceByID retrieves a single live invoice.
func (r *PgxInvoiceRepository) FindInvoiceByID(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_id = $1 AND deleted_at IS NULL;`
	inv, err := scanInvoice(r.Pool.QueryRow(ctx, query, invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("invoice not found: " + invoiceID)
		}
		return nil, fmt.Errorf("failed to find invoice %s: %w", invoiceID, err)
	}
	return &inv, nil
}

// FindAllocationsByInvoiceID retrieves one invoice's allocation lines.
func (r *PgxInvoiceRepository) FindAllocationsByInvoiceID(ctx context.Context, invoiceID string) ([]domain.Allocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM allocations WHERE invoice_id = $1 ORDER BY created_at, allocation_id;`
	rows, err := r.Pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations for invoice %s: %w", invoiceID, err)
	}
	defer rows.Close()

	allocs, err := pgx.CollectRows(rows, scanAllocation)
	if err != nil {
		return nil, fmt.Errorf("failed to scan allocations: %w", err)
	}
	return allocs, nil
}

// FindAllocationsByInvoiceIDs retrieves allocations grouped by invoice.
func (r *PgxInvoiceRepository) FindAllocationsByInvoiceIDs(ctx context.Context, invoiceIDs []string) (map[string][]domain.Allocation, error) {
	grouped := make(map[string][]domain.Allocation, len(invoiceIDs))
	for _, id := range invoiceIDs {
		grouped[id] = []domain.Allocation{}
	}
	if len(invoiceIDs) == 0 {
		return grouped, nil
	}

	query := `SELECT ` + allocationColumns + ` FROM allocations WHERE invoice_id = ANY($1) ORDER BY created_at, allocation_id;`
	rows, err := r.Pool.Query(ctx, query, invoiceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	allocs, err := pgx.CollectRows(rows, scanAllocation)
	if err != nil {
		return nil, fmt.Errorf("failed to scan allocations: %w", err)
	}
	for _, a := range allocs {
		grouped[a.InvoiceID] = append(grouped[a.InvoiceID], a)
	}
	return grouped, nil
}

// ListInvoicesByJob retrieves a job's live invoices, newest first.
func (r *PgxInvoiceRepository) ListInvoicesByJob(ctx context.Context, jobID string) ([]domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE job_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC;`
	return r.listInvoices(ctx, query, jobID)
}

// ListInvoicesByDraw retrieves the member invoices of a draw.
func (r *PgxInvoiceRepository) ListInvoicesByDraw(ctx context.Context, drawID string) ([]domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE draw_id = $1 AND deleted_at IS NULL ORDER BY created_at;`
	return r.listInvoices(ctx, query, drawID)
}

// FindChildInvoices retrieves the children of a split parent.
func (r *PgxInvoiceRepository) FindChildInvoices(ctx context.Context, parentInvoiceID string) ([]domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE parent_invoice_id = $1 AND deleted_at IS NULL ORDER BY created_at;`
	return r.listInvoices(ctx, query, parentInvoiceID)
}

func (r *PgxInvoiceRepository) listInvoices(ctx context.Context, query string, args ...interface{}) ([]domain.Invoice, error) {
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	invoices, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Invoice, error) {
		return scanInvoice(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoices: %w", err)
	}
	return invoices, nil
}

const insertInvoiceQuery = `
	INSERT INTO invoices (` + invoiceColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24);
`

// SaveInvoice inserts a new invoice with its allocations in one transaction.
func (r *PgxInvoiceRepository) SaveInvoice(ctx context.Context, invoice domain.Invoice, allocations []domain.Allocation) error {
	args, err := invoiceArgs(invoice)
	if err != nil {
		return err
	}

	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if _, err := tx.Exec(ctx, insertInvoiceQuery, args...); err != nil {
		return apperrors.NewAppError(500, "failed to insert invoice "+invoice.InvoiceID, err)
	}
	if len(allocations) > 0 {
		batch := &pgx.Batch{}
		queueAllocationInserts(batch, allocations)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return apperrors.NewAppError(500, "failed to insert allocations", err)
		}
	}
	return r.Commit(ctx, tx)
}

// SaveInvoices inserts several invoices atomically (split children).
func (r *PgxInvoiceRepository) SaveInvoices(ctx context.Context, invoices []domain.Invoice) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if err := r.SaveInvoicesInTx(ctx, tx, invoices); err != nil {
		return err
	}
	return r.Commit(ctx, tx)
}

// SaveInvoicesInTx inserts several invoices inside the caller's transaction.
func (r *PgxInvoiceRepository) SaveInvoicesInTx(ctx context.Context, tx pgx.Tx, invoices []domain.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, inv := range invoices {
		args, err := invoiceArgs(inv)
		if err != nil {
			return err
		}
		batch.Queue(insertInvoiceQuery, args...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return apperrors.NewAppError(500, "failed to insert invoices", err)
	}
	return nil
}

// UpdateInvoiceWithVersion replaces the invoice row and its allocation lines
// in one transaction, conditional on the stored version. The UPDATE bumps the
// version itself so the check and the bump cannot be split by a concurrent
// writer.
func (r *PgxInvoiceRepository) UpdateInvoiceWithVersion(ctx context.Context, invoice domain.Invoice, allocations []domain.Allocation, expectedVersion int64) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if err := r.UpdateInvoiceWithVersionInTx(ctx, tx, invoice, allocations, expectedVersion); err != nil {
		return err
	}
	return r.Commit(ctx, tx)
}

// UpdateInvoiceWithVersionInTx performs the conditional replace inside the
// caller's transaction, so multi-invoice operations (split, unsplit) commit or
// roll back as one.
func (r *PgxInvoiceRepository) UpdateInvoiceWithVersionInTx(ctx context.Context, tx pgx.Tx, invoice domain.Invoice, allocations []domain.Allocation, expectedVersion int64) error {
	updateQuery := `
		UPDATE invoices SET
			job_id = $2, vendor_id = $3, invoice_number = $4, amount = $5,
			invoice_date = $6, due_date = $7, status = $8, billed_amount = $9,
			paid_amount = $10, draw_id = $11, parent_invoice_id = $12,
			is_split_parent = $13, closed_out_at = $14, closed_out_by = $15,
			closed_out_reason = $16, close_out_notes = $17, field_origins = $18,
			last_updated_at = $19, last_updated_by = $20,
			version = version + 1
		WHERE invoice_id = $1 AND deleted_at IS NULL AND version = $21;
	`
	var fieldOrigins []byte
	if len(invoice.FieldOrigins) > 0 {
		var err error
		fieldOrigins, err = json.Marshal(invoice.FieldOrigins)
		if err != nil {
			return fmt.Errorf("failed to encode field origins: %w", err)
		}
	}
	var closedOutReason *string
	if invoice.ClosedOutReason != nil {
		s := string(*invoice.ClosedOutReason)
		closedOutReason = &s
	}

	tag, err := tx.Exec(ctx, updateQuery,
		invoice.InvoiceID,
		invoice.JobID,
		invoice.VendorID,
		invoice.InvoiceNumber,
		invoice.Amount,
		invoice.InvoiceDate,
		invoice.DueDate,
		invoice.Status,
		invoice.BilledAmount,
		invoice.PaidAmount,
		invoice.DrawID,
		invoice.ParentInvoiceID,
		invoice.IsSplitParent,
		invoice.ClosedOutAt,
		invoice.ClosedOutBy,
		closedOutReason,
		invoice.CloseOutNotes,
		fieldOrigins,
		invoice.LastUpdatedAt,
		invoice.LastUpdatedBy,
		expectedVersion,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to update invoice "+invoice.InvoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a stale version from a missing invoice.
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM invoices WHERE invoice_id = $1 AND deleted_at IS NULL);`,
			invoice.InvoiceID).Scan(&exists); err != nil {
			return apperrors.NewAppError(500, "failed to check invoice existence", err)
		}
		if !exists {
			return apperrors.NewNotFoundError("invoice not found: " + invoice.InvoiceID)
		}
		return apperrors.NewAppError(409, "invoice version is stale", apperrors.ErrVersionConflict)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM allocations WHERE invoice_id = $1;`, invoice.InvoiceID); err != nil {
		return apperrors.NewAppError(500, "failed to clear allocations", err)
	}
	if len(allocations) > 0 {
		batch := &pgx.Batch{}
		queueAllocationInserts(batch, allocations)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return apperrors.NewAppError(500, "failed to insert allocations", err)
		}
	}
	return nil
}

// DeleteChildInvoices removes all children of a split parent with their
// allocations.
func (r *PgxInvoiceRepository) DeleteChildInvoices(ctx context.Context, parentInvoiceID string) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if err := r.DeleteChildInvoicesInTx(ctx, tx, parentInvoiceID); err != nil {
		return err
	}
	return r.Commit(ctx, tx)
}

// DeleteChildInvoicesInTx removes all children inside the caller's transaction.
func (r *PgxInvoiceRepository) DeleteChildInvoicesInTx(ctx context.Context, tx pgx.Tx, parentInvoiceID string) error {
	if _, err := tx.Exec(ctx,
		`DELETE FROM allocations WHERE invoice_id IN (SELECT invoice_id FROM invoices WHERE parent_invoice_id = $1);`,
		parentInvoiceID); err != nil {
		return apperrors.NewAppError(500, "failed to delete child allocations", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM invoices WHERE parent_invoice_id = $1;`,
		parentInvoiceID); err != nil {
		return apperrors.NewAppError(500, "failed to delete child invoices", err)
	}
	return nil
}

// SoftDeleteInvoice sets the tombstone timestamp.
func (r *PgxInvoiceRepository) SoftDeleteInvoice(ctx context.Context, invoiceID string, userID string, now time.Time) error {
	query := `
		UPDATE invoices SET deleted_at = $2, last_updated_at = $2, last_updated_by = $3
		WHERE invoice_id = $1 AND deleted_at IS NULL;
	`
	tag, err := r.Pool.Exec(ctx, query, invoiceID, now, userID)
	if err != nil {
		return fmt.Errorf("failed to delete invoice %s: %w", invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("invoice not found: " + invoiceID)
	}
	return nil
}

// UpdateInvoiceBilled overwrites the derived billed figure without touching
// the version; only the reconciliation engine calls this.
func (r *PgxInvoiceRepository) UpdateInvoiceBilled(ctx context.Context, invoiceID string, billed decimal.Decimal, updatedBy string) error {
	query := `
		UPDATE invoices SET billed_amount = $2, last_updated_at = NOW(), last_updated_by = $3
		WHERE invoice_id = $1 AND deleted_at IS NULL;
	`
	tag, err := r.Pool.Exec(ctx, query, invoiceID, billed, updatedBy)
	if err != nil {
		return fmt.Errorf("failed to update billed amount for invoice %s: %w", invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("invoice not found: " + invoiceID)
	}
	return nil
}
