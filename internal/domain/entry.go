package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryKindPayment    EntryKind = "payment"
	EntryKindCharge     EntryKind = "charge"
	EntryKindRefund     EntryKind = "refund"
	EntryKindAdjustment EntryKind = "adjustment"
)

// EntryStatus is the lifecycle state of a ledger entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusSucceeded EntryStatus = "succeeded"
	EntryStatusFailed    EntryStatus = "failed"
)

// LedgerEntry is an atomic signed money movement against a document or a
// customer's standing credit balance. Positive amounts reduce what the
// customer owes; negative amounts grant credit.
type LedgerEntry struct {
	ID            string
	CustomerID    string
	PaymentID     *string
	Currency      string
	Amount        decimal.Decimal
	Kind          EntryKind
	Status        EntryStatus
	Document      *DocumentRef
	CreditNoteID  *string
	ParentEntryID *string
	Gateway       string
	GatewayID     string
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the sign rule for the entry kind and the credit-note
// target restriction.
func (e *LedgerEntry) Validate() error {
	switch e.Kind {
	case EntryKindPayment, EntryKindCharge, EntryKindRefund:
		if e.Amount.IsNegative() {
			return ErrInvalidAmountSign
		}
	case EntryKindAdjustment:
		// any sign
	}

	if e.Document != nil && e.Document.Type == DocumentTypeCreditNote && e.Kind != EntryKindAdjustment {
		return ErrOnlyAdjustmentsOnCreditNotes
	}

	return nil
}

// ValidateAgainstDocument enforces the currency invariant for succeeded
// entries targeting a document.
func (e *LedgerEntry) ValidateAgainstDocument(doc *Document) error {
	if e.Status == EntryStatusSucceeded && e.Currency != doc.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}

// Locked reports whether the entry's monetary fields are frozen. Charge
// entries become immutable once they carry a gateway reference.
func (e *LedgerEntry) Locked() bool {
	return e.Kind == EntryKindCharge && e.GatewayID != ""
}

// CreditFunded reports whether the entry applies money drawn from the
// customer's standing credit rather than from the owning payment's amount.
// Such entries never count toward a payment's applied total.
func (e *LedgerEntry) CreditFunded() bool {
	return e.Kind == EntryKindAdjustment && e.CreditNoteID == nil && e.Amount.IsPositive()
}

// CanTransitionTo reports whether the status transition is allowed.
// Succeeded and Failed are terminal with respect to re-entering Pending.
func (e *LedgerEntry) CanTransitionTo(next EntryStatus) bool {
	if e.Status == next {
		return false
	}
	switch e.Status {
	case EntryStatusPending:
		return next == EntryStatusSucceeded || next == EntryStatusFailed
	case EntryStatusSucceeded:
		return next == EntryStatusFailed
	default:
		return false
	}
}

// DocumentEffect returns the signed paid/credited contribution this entry
// makes to its target document. Both are zero when the entry targets no
// document.
func (e *LedgerEntry) DocumentEffect() (paid, credited decimal.Decimal) {
	if e.Document == nil {
		return decimal.Zero, decimal.Zero
	}
	switch e.Kind {
	case EntryKindPayment, EntryKindCharge:
		return e.Amount, decimal.Zero
	case EntryKindRefund:
		return e.Amount.Neg(), decimal.Zero
	default:
		return decimal.Zero, e.Amount
	}
}

// CreditNoteEffect returns how much of the referenced credit note's value
// this entry consumes. Zero when no credit note is referenced.
func (e *LedgerEntry) CreditNoteEffect() decimal.Decimal {
	if e.CreditNoteID == nil {
		return decimal.Zero
	}
	// Applied to a document, the stored amount is the consumption; released
	// to standing credit, the stored amount is negated.
	if e.Document != nil {
		return e.Amount
	}
	return e.Amount.Neg()
}

// CreditDelta returns the signed change this entry makes to the customer's
// standing credit balance. Credit-note applications against a document do
// not touch standing credit.
func (e *LedgerEntry) CreditDelta() decimal.Decimal {
	if e.Kind != EntryKindAdjustment {
		return decimal.Zero
	}
	if e.CreditNoteID != nil && e.Document != nil {
		return decimal.Zero
	}
	return e.Amount.Neg()
}

// Reverse produces a new entry undoing this one, linked back through
// ParentEntryID. Payment and charge entries reverse as refunds; everything
// else reverses as an adjustment with the opposite sign.
func (e *LedgerEntry) Reverse(id string, now time.Time) *LedgerEntry {
	kind := EntryKindAdjustment
	amount := e.Amount.Neg()
	if e.Kind == EntryKindPayment || e.Kind == EntryKindCharge {
		kind = EntryKindRefund
		amount = e.Amount
	}

	parent := e.ID

	return &LedgerEntry{
		ID:            id,
		CustomerID:    e.CustomerID,
		PaymentID:     e.PaymentID,
		Currency:      e.Currency,
		Amount:        amount,
		Kind:          kind,
		Status:        EntryStatusSucceeded,
		Document:      e.Document,
		CreditNoteID:  e.CreditNoteID,
		ParentEntryID: &parent,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
