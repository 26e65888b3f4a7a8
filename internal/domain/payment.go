package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is the aggregate root owning a set of ledger entries created from
// its applied list. Balance is derived (amount minus the sum of succeeded
// split amounts) but persisted for query performance.
type Payment struct {
	ID         string
	CustomerID *string
	Currency   string
	Amount     decimal.Decimal
	Balance    decimal.Decimal
	Voided     bool
	Metadata   map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Applied reports whether the payment is fully consumed by its splits.
func (p *Payment) Applied() bool {
	return p.Balance.IsZero()
}

// AppliedAmount returns the portion of the payment consumed by its splits.
func (p *Payment) AppliedAmount() decimal.Decimal {
	return p.Amount.Sub(p.Balance)
}

// Validate checks payment-level invariants on create.
func (p *Payment) Validate() error {
	if p.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if err := ValidateCurrency(p.Currency); err != nil {
		return err
	}
	return ValidateMetadata(p.Metadata)
}

// SetBalance re-derives the persisted balance from the applied total.
func (p *Payment) SetBalance(applied decimal.Decimal) {
	p.Balance = p.Amount.Sub(applied)
}
