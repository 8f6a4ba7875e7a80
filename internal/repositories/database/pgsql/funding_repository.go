package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/apperrors"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portsrepo "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// liveInvoiceCondition filters the invoices whose allocations count against a
// funding source. Denied and split invoices, and tombstoned rows, do not
// consume PO or CO balance.
const liveInvoiceCondition = `i.deleted_at IS NULL AND i.status NOT IN ('DENIED', 'SPLIT')`

type PgxFundingRepository struct {
	BaseRepository
}

// newPgxFundingRepository creates a new repository for PO, CO and cost code data.
func newPgxFundingRepository(pool *pgxpool.Pool) portsrepo.FundingRepositoryFacade {
	return &PgxFundingRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.FundingRepositoryFacade = (*PgxFundingRepository)(nil)

const poColumns = `po_id, job_id, vendor_id, po_number, total_amount`

func scanPurchaseOrder(row pgx.CollectableRow) (domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	err := row.Scan(&po.POID, &po.JobID, &po.VendorID, &po.PONumber, &po.TotalAmount)
	return po, err
}

// FindPurchaseOrdersByJob retrieves a job's POs including line items.
func (r *PgxFundingRepository) FindPurchaseOrdersByJob(ctx context.Context, jobID string) ([]domain.PurchaseOrder, error) {
	query := `SELECT ` + poColumns + ` FROM purchase_orders WHERE job_id = $1 ORDER BY po_number;`
	rows, err := r.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase orders: %w", err)
	}
	defer rows.Close()

	pos, err := pgx.CollectRows(rows, scanPurchaseOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to scan purchase orders: %w", err)
	}
	if len(pos) == 0 {
		return pos, nil
	}

	poIDs := make([]string, len(pos))
	index := make(map[string]int, len(pos))
	for i, po := range pos {
		poIDs[i] = po.POID
		index[po.POID] = i
	}
	lineItems, err := r.findLineItems(ctx, poIDs)
	if err != nil {
		return nil, err
	}
	for _, li := range lineItems {
		i := index[li.POID]
		pos[i].LineItems = append(pos[i].LineItems, li)
	}
	return pos, nil
}

// FindPurchaseOrderByID retrieves one PO including line items.
func (r *PgxFundingRepository) FindPurchaseOrderByID(ctx context.Context, poID string) (*domain.PurchaseOrder, error) {
	query := `SELECT ` + poColumns + ` FROM purchase_orders WHERE po_id = $1;`
	var po domain.PurchaseOrder
	err := r.Pool.QueryRow(ctx, query, poID).Scan(&po.POID, &po.JobID, &po.VendorID, &po.PONumber, &po.TotalAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("purchase order not found: " + poID)
		}
		return nil, fmt.Errorf("failed to find purchase order %s: %w", poID, err)
	}

	lineItems, err := r.findLineItems(ctx, []string{poID})
	if err != nil {
		return nil, err
	}
	po.LineItems = lineItems
	return &po, nil
}

func (r *PgxFundingRepository) findLineItems(ctx context.Context, poIDs []string) ([]domain.POLineItem, error) {
	query := `
		SELECT line_item_id, po_id, cost_code_id, change_order_id, description, amount
		FROM po_line_items
		WHERE po_id = ANY($1)
		ORDER BY po_id, line_item_id;
	`
	rows, err := r.Pool.Query(ctx, query, poIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query PO line items: %w", err)
	}
	defer rows.Close()

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.POLineItem, error) {
		var li domain.POLineItem
		err := row.Scan(&li.LineItemID, &li.POID, &li.CostCodeID, &li.ChangeOrderID, &li.Description, &li.Amount)
		return li, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan PO line items: %w", err)
	}
	return items, nil
}

// FindChangeOrdersByJob retrieves a job's change orders.
func (r *PgxFundingRepository) FindChangeOrdersByJob(ctx context.Context, jobID string) ([]domain.ChangeOrder, error) {
	query := `
		SELECT change_order_id, job_id, change_order_number, status, amount
		FROM change_orders
		WHERE job_id = $1
		ORDER BY change_order_number;
	`
	rows, err := r.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query change orders: %w", err)
	}
	defer rows.Close()

	cos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ChangeOrder, error) {
		var co domain.ChangeOrder
		err := row.Scan(&co.ChangeOrderID, &co.JobID, &co.ChangeOrderNumber, &co.Status, &co.Amount)
		return co, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan change orders: %w", err)
	}
	return cos, nil
}

// SumBilledByPO sums allocation amounts per PO over a job's live invoices,
// excluding the invoice being edited.
func (r *PgxFundingRepository) SumBilledByPO(ctx context.Context, jobID string, excludeInvoiceID string) (map[string]decimal.Decimal, error) {
	query := `
		SELECT a.po_id, COALESCE(SUM(a.amount), 0)
		FROM allocations a
		JOIN invoices i ON i.invoice_id = a.invoice_id
		WHERE i.job_id = $1 AND a.po_id IS NOT NULL AND a.invoice_id <> $2 AND ` + liveInvoiceCondition + `
		GROUP BY a.po_id;
	`
	return r.sumGrouped(ctx, query, jobID, excludeInvoiceID)
}

// SumBilledByChangeOrder is the change-order analogue of SumBilledByPO.
func (r *PgxFundingRepository) SumBilledByChangeOrder(ctx context.Context, jobID string, excludeInvoiceID string) (map[string]decimal.Decimal, error) {
	query := `
		SELECT a.change_order_id, COALESCE(SUM(a.amount), 0)
		FROM allocations a
		JOIN invoices i ON i.invoice_id = a.invoice_id
		WHERE i.job_id = $1 AND a.change_order_id IS NOT NULL AND a.invoice_id <> $2 AND ` + liveInvoiceCondition + `
		GROUP BY a.change_order_id;
	`
	return r.sumGrouped(ctx, query, jobID, excludeInvoiceID)
}

func (r *PgxFundingRepository) sumGrouped(ctx context.Context, query string, args ...interface{}) (map[string]decimal.Decimal, error) {
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query billed sums: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]decimal.Decimal)
	for rows.Next() {
		var id string
		var sum decimal.Decimal
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan billed sum: %w", err)
		}
		sums[id] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read billed sums: %w", err)
	}
	return sums, nil
}

// FindCostCodesByIDs retrieves cost codes keyed by ID.
func (r *PgxFundingRepository) FindCostCodesByIDs(ctx context.Context, costCodeIDs []string) (map[string]domain.CostCode, error) {
	result := make(map[string]domain.CostCode, len(costCodeIDs))
	if len(costCodeIDs) == 0 {
		return result, nil
	}

	query := `SELECT cost_code_id, code, description, is_active FROM cost_codes WHERE cost_code_id = ANY($1);`
	rows, err := r.Pool.Query(ctx, query, costCodeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost codes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cc domain.CostCode
		if err := rows.Scan(&cc.CostCodeID, &cc.Code, &cc.Description, &cc.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan cost code: %w", err)
		}
		result[cc.CostCodeID] = cc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cost codes: %w", err)
	}
	return result, nil
}

// ListCostCodes retrieves all active cost codes ordered by code.
func (r *PgxFundingRepository) ListCostCodes(ctx context.Context) ([]domain.CostCode, error) {
	query := `SELECT cost_code_id, code, description, is_active FROM cost_codes WHERE is_active ORDER BY code;`
	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost codes: %w", err)
	}
	defer rows.Close()

	codes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CostCode, error) {
		var cc domain.CostCode
		err := row.Scan(&cc.CostCodeID, &cc.Code, &cc.Description, &cc.IsActive)
		return cc, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan cost codes: %w", err)
	}
	return codes, nil
}
