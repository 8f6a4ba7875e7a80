package services

import (
	"context"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
)

// SplitSvcFacade divides one invoice into child invoices against distinct
// jobs/amounts, and reverses that operation while no child has advanced to
// approval.
type SplitSvcFacade interface {
	Split(ctx context.Context, invoiceID string, req dto.SplitInvoiceRequest, userID string) (*dto.SplitInvoiceResponse, error)
	Unsplit(ctx context.Context, parentInvoiceID string, version int64, userID string) (*dto.InvoiceResponse, error)
}
