package services

import (
	"errors"
	"fmt"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/utils/money"
	"github.com/shopspring/decimal"
)

var (
	ErrLineIndex      = errors.New("allocation line index out of range")
	ErrNegativeAmount = errors.New("allocation amount must not be negative")
	ErrOverAllocation = errors.New("allocations exceed the invoice's remaining cap")
	ErrTooFewLines    = errors.New("operation requires at least two allocation lines")
	ErrInvalidPercent = errors.New("percentage must be between 0 and 100")
)

// RebalanceResult reports the sibling line that was auto-reduced to keep the
// allocation total at or under the cap, so callers can surface the adjustment
// instead of silently accepting it.
type RebalanceResult struct {
	AdjustedIndex  int             `json:"adjustedIndex"`
	PreviousAmount decimal.Decimal `json:"previousAmount"`
	NewAmount      decimal.Decimal `json:"newAmount"`
}

// EditSession is the in-memory working copy of one invoice and its allocation
// lines during an open edit. All balancer operations act on the session; the
// caller commits the result as a single save carrying the version token the
// session was opened with. Sessions are plain values so multiple invoices can
// be edited in parallel without shared state.
type EditSession struct {
	Invoice     domain.Invoice
	Allocations []domain.Allocation
	// Version is the optimistic-lock token read at session open.
	Version int64
}

// NewEditSession opens a session over an invoice and its current allocations.
func NewEditSession(inv domain.Invoice, allocs []domain.Allocation) *EditSession {
	copied := make([]domain.Allocation, len(allocs))
	copy(copied, allocs)
	return &EditSession{
		Invoice:     inv,
		Allocations: copied,
		Version:     inv.Version,
	}
}

// Cap is the allocation ceiling: invoice amount minus already billed/paid.
func (s *EditSession) Cap() decimal.Decimal {
	return s.Invoice.RemainingCap()
}

// Total sums the current allocation lines.
func (s *EditSession) Total() decimal.Decimal {
	return domain.SumAllocations(s.Allocations)
}

// FullyAllocated reports whether the lines cover the cap within tolerance.
func (s *EditSession) FullyAllocated() bool {
	return money.ApproxEqual(s.Total(), s.Cap())
}

// Add appends a zero-amount line.
func (s *EditSession) Add() {
	s.Allocations = append(s.Allocations, domain.Allocation{
		InvoiceID:  s.Invoice.InvoiceID,
		Amount:     decimal.Zero,
		Provenance: domain.ProvenanceManual,
	})
}

// Remove deletes a line. The removed amount is not redistributed; dropping
// below the cap is legitimate partial coding.
func (s *EditSession) Remove(index int) error {
	if index < 0 || index >= len(s.Allocations) {
		return ErrLineIndex
	}
	s.Allocations = append(s.Allocations[:index], s.Allocations[index+1:]...)
	return nil
}

// SetAmount sets a line's amount. If the new running total would exceed the
// cap, the first line other than the edited one is reduced to compensate,
// floored at zero. If even that cannot bring the total under the cap the edit
// is rejected and the session is left unchanged. The returned RebalanceResult
// is non-nil when a sibling was adjusted.
func (s *EditSession) SetAmount(index int, value decimal.Decimal) (*RebalanceResult, error) {
	if index < 0 || index >= len(s.Allocations) {
		return nil, ErrLineIndex
	}
	if value.IsNegative() {
		return nil, ErrNegativeAmount
	}
	previous := s.Allocations[index].Amount
	s.Allocations[index].Amount = value

	result, err := s.rebalanceToCap(index)
	if err != nil {
		s.Allocations[index].Amount = previous
		return nil, err
	}
	return result, nil
}

// rebalanceToCap restores the sum-at-or-under-cap invariant after an edit to
// line edited, by reducing the designated balancing line (the first line,
// skipping the edited one). Named and surfaced rather than hidden so UI and
// tests can observe which line changed.
func (s *EditSession) rebalanceToCap(edited int) (*RebalanceResult, error) {
	capAmt := s.Cap()
	overage := s.Total().Sub(capAmt)
	if overage.LessThan(money.Epsilon) {
		return nil, nil
	}

	balancing := -1
	for i := range s.Allocations {
		if i != edited {
			balancing = i
			break
		}
	}
	if balancing < 0 {
		// Single line exceeding the cap on its own; nothing to reduce.
		return nil, fmt.Errorf("%w: %s over a cap of %s", ErrOverAllocation,
			money.FormatAmount(s.Total()), money.FormatAmount(capAmt))
	}

	prev := s.Allocations[balancing].Amount
	reduced := prev.Sub(overage)
	if reduced.IsNegative() {
		reduced = decimal.Zero
	}
	s.Allocations[balancing].Amount = reduced

	if s.Total().Sub(capAmt).GreaterThanOrEqual(money.Epsilon) {
		// Flooring the balancing line was not enough: the edited line alone
		// busts the cap. Reject rather than accept an inconsistent state.
		s.Allocations[balancing].Amount = prev
		return nil, fmt.Errorf("%w: %s over a cap of %s", ErrOverAllocation,
			money.FormatAmount(s.Total()), money.FormatAmount(capAmt))
	}

	return &RebalanceResult{
		AdjustedIndex:  balancing,
		PreviousAmount: prev,
		NewAmount:      reduced,
	}, nil
}

// FillRemaining sets the line to whatever the other lines leave of the cap,
// floored at zero. Calling it twice in a row is a no-op the second time.
func (s *EditSession) FillRemaining(index int) error {
	if index < 0 || index >= len(s.Allocations) {
		return ErrLineIndex
	}
	others := decimal.Zero
	for i, a := range s.Allocations {
		if i != index {
			others = others.Add(a.Amount)
		}
	}
	remaining := s.Cap().Sub(others)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	s.Allocations[index].Amount = remaining
	return nil
}

// SplitEvenly divides the cap across all lines, assigning the remainder cents
// to the first line so the amounts sum exactly to the cap.
func (s *EditSession) SplitEvenly() error {
	n := len(s.Allocations)
	if n < 2 {
		return ErrTooFewLines
	}
	capAmt := s.Cap()
	per := capAmt.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	first := capAmt.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))
	for i := range s.Allocations {
		if i == 0 {
			s.Allocations[i].Amount = first
		} else {
			s.Allocations[i].Amount = per
		}
	}
	return nil
}

// PercentageOf sets the line to the given percentage of the cap, rounded to
// two decimals, then rebalances if the total overran.
func (s *EditSession) PercentageOf(index int, pct decimal.Decimal) (*RebalanceResult, error) {
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrInvalidPercent
	}
	amount := s.Cap().Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
	return s.SetAmount(index, amount)
}
