package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
	"github.com/openbill/arledger/internal/usecase"
)

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	ID         string          `json:"id"`
	CustomerID *string         `json:"customer_id,omitempty"`
	Currency   string          `json:"currency"`
	Amount     decimal.Decimal `json:"amount"`
	Balance    decimal.Decimal `json:"balance"`
	Applied    bool            `json:"applied"`
	Voided     bool            `json:"voided"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// PaymentFromDomain converts a domain payment to a response.
func PaymentFromDomain(p *domain.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:         p.ID,
		CustomerID: p.CustomerID,
		Currency:   p.Currency,
		Amount:     p.Amount,
		Balance:    p.Balance,
		Applied:    p.Applied(),
		Voided:     p.Voided,
		Metadata:   p.Metadata,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// PaymentsFromDomain converts domain payments to responses.
func PaymentsFromDomain(payments []*domain.Payment) []*PaymentResponse {
	result := make([]*PaymentResponse, len(payments))
	for i, p := range payments {
		result[i] = PaymentFromDomain(p)
	}
	return result
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customer_id"`
	PaymentID     *string         `json:"payment_id,omitempty"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          string          `json:"kind"`
	Status        string          `json:"status"`
	DocumentType  string          `json:"document_type,omitempty"`
	DocumentID    string          `json:"document_id,omitempty"`
	CreditNoteID  *string         `json:"credit_note_id,omitempty"`
	ParentEntryID *string         `json:"parent_entry_id,omitempty"`
	Gateway       string          `json:"gateway,omitempty"`
	GatewayID     string          `json:"gateway_id,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	resp := &EntryResponse{
		ID:            e.ID,
		CustomerID:    e.CustomerID,
		PaymentID:     e.PaymentID,
		Currency:      e.Currency,
		Amount:        e.Amount,
		Kind:          string(e.Kind),
		Status:        string(e.Status),
		CreditNoteID:  e.CreditNoteID,
		ParentEntryID: e.ParentEntryID,
		Gateway:       e.Gateway,
		GatewayID:     e.GatewayID,
		Metadata:      e.Metadata,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if e.Document != nil {
		resp.DocumentType = string(e.Document.Type)
		resp.DocumentID = e.Document.ID
	}
	return resp
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// BreakdownResponse represents how a payment's entries distribute across
// targets.
type BreakdownResponse struct {
	PaymentID   string          `json:"payment_id"`
	Invoices    decimal.Decimal `json:"invoices"`
	CreditNotes decimal.Decimal `json:"credit_notes"`
	Refunded    decimal.Decimal `json:"refunded"`
	Credited    decimal.Decimal `json:"credited"`
}

// BreakdownFromUseCase converts a use case breakdown to a response.
func BreakdownFromUseCase(paymentID string, b *usecase.Breakdown) *BreakdownResponse {
	return &BreakdownResponse{
		PaymentID:   paymentID,
		Invoices:    b.Invoices,
		CreditNotes: b.CreditNotes,
		Refunded:    b.Refunded,
		Credited:    b.Credited,
	}
}

// CreditBalanceResponse represents a customer's standing credit balance,
// optionally as of a past instant.
type CreditBalanceResponse struct {
	CustomerID string          `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
	AsOf       *time.Time      `json:"as_of,omitempty"`
}

// CreditHistoryEntryResponse represents one row of a customer's credit
// balance history.
type CreditHistoryEntryResponse struct {
	ID             string          `json:"id"`
	EntryID        string          `json:"entry_id"`
	Amount         decimal.Decimal `json:"amount"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	Timestamp      time.Time       `json:"timestamp"`
}

// CreditHistoryFromDomain converts credit balance entries to responses.
func CreditHistoryFromDomain(entries []*domain.CreditBalanceEntry) []*CreditHistoryEntryResponse {
	result := make([]*CreditHistoryEntryResponse, len(entries))
	for i, e := range entries {
		result[i] = &CreditHistoryEntryResponse{
			ID:             e.ID,
			EntryID:        e.EntryID,
			Amount:         e.Amount,
			RunningBalance: e.RunningBalance,
			Timestamp:      e.Timestamp,
		}
	}
	return result
}

// PaymentCheckResponse represents a single payment consistency check.
type PaymentCheckResponse struct {
	PaymentID         string          `json:"payment_id"`
	RecordedBalance   decimal.Decimal `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
	Consistent        bool            `json:"consistent"`
	Problems          []string        `json:"problems,omitempty"`
	LastChecked       time.Time       `json:"last_checked"`
}

// PaymentCheckFromUseCase converts a use case check result to a response.
func PaymentCheckFromUseCase(r *usecase.PaymentCheckResult) *PaymentCheckResponse {
	return &PaymentCheckResponse{
		PaymentID:         r.PaymentID,
		RecordedBalance:   r.RecordedBalance,
		CalculatedBalance: r.CalculatedBalance,
		Difference:        r.Difference,
		Consistent:        r.Consistent,
		Problems:          r.Problems,
		LastChecked:       r.LastChecked,
	}
}

// ConsistencyReportResponse represents a full consistency sweep.
type ConsistencyReportResponse struct {
	Consistent         bool                    `json:"consistent"`
	TotalPayments      int                     `json:"total_payments"`
	ConsistentPayments int                     `json:"consistent_payments"`
	PaymentProblems    []*PaymentCheckResponse `json:"payment_problems,omitempty"`
	TotalCustomers     int                     `json:"total_customers"`
	CreditProblems     map[string][]string     `json:"credit_problems,omitempty"`
	CheckedAt          time.Time               `json:"checked_at"`
}

// ConsistencyReportFromUseCase converts a use case report to a response.
func ConsistencyReportFromUseCase(r *usecase.ConsistencyReport) *ConsistencyReportResponse {
	problems := make([]*PaymentCheckResponse, len(r.PaymentProblems))
	for i, p := range r.PaymentProblems {
		problems[i] = PaymentCheckFromUseCase(p)
	}
	return &ConsistencyReportResponse{
		Consistent:         r.Consistent(),
		TotalPayments:      r.TotalPayments,
		ConsistentPayments: r.ConsistentPayments,
		PaymentProblems:    problems,
		TotalCustomers:     r.TotalCustomers,
		CreditProblems:     r.CreditProblems,
		CheckedAt:          r.CheckedAt,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
