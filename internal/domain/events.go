package domain

import "time"

// Event types
const (
	EventTypePaymentCreated = "payment.created"
	EventTypePaymentUpdated = "payment.updated"
	EventTypePaymentVoided  = "payment.voided"
	EventTypePaymentDeleted = "payment.deleted"
	EventTypeEntryCreated   = "entry.created"
	EventTypeEntryUpdated   = "entry.updated"
	EventTypeEntryDeleted   = "entry.deleted"
)

// Aggregate types
const (
	AggregateTypePayment = "payment"
	AggregateTypeEntry   = "entry"
)

// OutboxEvent represents an event to be published. Events are written in the
// same transaction as the mutation they describe and flushed after commit.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// PaymentSnapshot is the before/after state carried in payment events.
type PaymentSnapshot struct {
	PaymentID  string `json:"payment_id"`
	CustomerID string `json:"customer_id,omitempty"`
	Currency   string `json:"currency"`
	Amount     string `json:"amount"`
	Balance    string `json:"balance"`
	Voided     bool   `json:"voided"`
}

// EntrySnapshot is the before/after state carried in entry events.
type EntrySnapshot struct {
	EntryID      string `json:"entry_id"`
	PaymentID    string `json:"payment_id,omitempty"`
	CustomerID   string `json:"customer_id"`
	Currency     string `json:"currency"`
	Amount       string `json:"amount"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	DocumentType string `json:"document_type,omitempty"`
	DocumentID   string `json:"document_id,omitempty"`
	CreditNoteID string `json:"credit_note_id,omitempty"`
	ParentID     string `json:"parent_id,omitempty"`
}

// SnapshotPayment builds the event snapshot for a payment.
func SnapshotPayment(p *Payment) PaymentSnapshot {
	s := PaymentSnapshot{
		PaymentID: p.ID,
		Currency:  p.Currency,
		Amount:    p.Amount.String(),
		Balance:   p.Balance.String(),
		Voided:    p.Voided,
	}
	if p.CustomerID != nil {
		s.CustomerID = *p.CustomerID
	}
	return s
}

// SnapshotEntry builds the event snapshot for a ledger entry.
func SnapshotEntry(e *LedgerEntry) EntrySnapshot {
	s := EntrySnapshot{
		EntryID:    e.ID,
		CustomerID: e.CustomerID,
		Currency:   e.Currency,
		Amount:     e.Amount.String(),
		Kind:       string(e.Kind),
		Status:     string(e.Status),
	}
	if e.PaymentID != nil {
		s.PaymentID = *e.PaymentID
	}
	if e.Document != nil {
		s.DocumentType = string(e.Document.Type)
		s.DocumentID = e.Document.ID
	}
	if e.CreditNoteID != nil {
		s.CreditNoteID = *e.CreditNoteID
	}
	if e.ParentEntryID != nil {
		s.ParentID = *e.ParentEntryID
	}
	return s
}
