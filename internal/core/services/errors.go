package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/apperrors"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/utils/money"
	"github.com/shopspring/decimal"
)

// ValidationError reports the precise set of requirements missing for a
// target status, field by field, so the UI can mark them rather than show a
// single opaque failure. Matches apperrors.ErrValidation via errors.Is.
type ValidationError struct {
	Target domain.InvoiceStatus
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return fmt.Sprintf("cannot move to %s, missing: %s", e.Target, strings.Join(names, ", "))
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrValidation }

// POOverageError is the soft business block raised when approving would push
// a linked PO's remaining balance negative. It carries the figures a human
// needs to consciously override; the override itself is audit-logged.
type POOverageError struct {
	POID          string
	PONumber      string
	Remaining     decimal.Decimal
	InvoiceAmount decimal.Decimal
	Overage       decimal.Decimal
}

func (e *POOverageError) Error() string {
	return fmt.Sprintf("PO %s has %s remaining but %s is being allocated (overage %s)",
		e.PONumber, money.FormatAmount(e.Remaining), money.FormatAmount(e.InvoiceAmount),
		money.FormatAmount(e.Overage))
}

func (e *POOverageError) Unwrap() error { return apperrors.ErrConflict }

// LockHeldError reports an advisory lock held by another identity, carrying
// the holder so the UI can say who has the invoice open.
type LockHeldError struct {
	EntityType domain.EntityType
	EntityID   string
	HolderID   string
	HolderName string
	AcquiredAt time.Time
}

func (e *LockHeldError) Error() string {
	holder := e.HolderName
	if holder == "" {
		holder = e.HolderID
	}
	return fmt.Sprintf("%s %s is locked by %s", e.EntityType, e.EntityID, holder)
}

func (e *LockHeldError) Unwrap() error { return apperrors.ErrLocked }
