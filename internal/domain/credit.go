package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditBalanceEntry is a point-in-time snapshot of a customer's standing
// credit. Each row is produced by exactly one adjustment ledger entry;
// RunningBalance is the net credit as of Timestamp.
type CreditBalanceEntry struct {
	ID             string
	CustomerID     string
	EntryID        string
	Amount         decimal.Decimal
	RunningBalance decimal.Decimal
	Timestamp      time.Time
}

// Customer is the read model the ledger resolves applied lists against. The
// credit balance is cached here for O(1) reads; the credit balance ledger
// remains the source of truth.
type Customer struct {
	ID            string
	Name          string
	Currency      string
	CreditBalance decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
