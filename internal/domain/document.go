package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType identifies the kind of receivable document an entry can target.
type DocumentType string

const (
	DocumentTypeInvoice    DocumentType = "invoice"
	DocumentTypeCreditNote DocumentType = "credit_note"
	DocumentTypeEstimate   DocumentType = "estimate"
)

// DocumentRef is a typed reference to a receivable document.
type DocumentRef struct {
	Type DocumentType
	ID   string
}

// Equal reports whether two references point at the same document.
func (r DocumentRef) Equal(other DocumentRef) bool {
	return r.Type == other.Type && r.ID == other.ID
}

// Document is the read model of a receivable document the ledger applies
// money against. The ledger never creates documents; it only adjusts their
// paid/credited totals and status flags.
type Document struct {
	ID             string
	Type           DocumentType
	CustomerID     string
	Currency       string
	Total          decimal.Decimal
	AmountPaid     decimal.Decimal
	AmountCredited decimal.Decimal
	Balance        decimal.Decimal
	Paid           bool
	Closed         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Ref returns the typed reference for this document.
func (d *Document) Ref() DocumentRef {
	return DocumentRef{Type: d.Type, ID: d.ID}
}

// Remaining returns the amount still open on the document.
func (d *Document) Remaining() decimal.Decimal {
	return d.Total.Sub(d.AmountPaid).Sub(d.AmountCredited)
}

// Recompute re-derives balance and status flags from the applied totals.
func (d *Document) Recompute() {
	d.Balance = d.Remaining()
	d.Paid = d.Balance.IsZero()
	d.Closed = d.Paid
}
