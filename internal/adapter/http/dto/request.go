package dto

import (
	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
	"github.com/openbill/arledger/internal/usecase"
)

// SplitRequest is one line of a payment's applied list. EntryID is set when
// the caller resubmits a split that already has a ledger entry behind it.
type SplitRequest struct {
	EntryID      string          `json:"entry_id,omitempty"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	DocumentType string          `json:"document_type,omitempty"`
	DocumentID   string          `json:"document_id,omitempty"`
	CreditNoteID string          `json:"credit_note_id,omitempty"`
}

// ToSplitInput converts to the use case split descriptor.
func (r *SplitRequest) ToSplitInput() domain.SplitInput {
	input := domain.SplitInput{
		EntryID:      r.EntryID,
		Type:         domain.SplitType(r.Type),
		Amount:       r.Amount,
		CreditNoteID: r.CreditNoteID,
	}
	if r.DocumentID != "" {
		input.Document = &domain.DocumentRef{
			Type: domain.DocumentType(r.DocumentType),
			ID:   r.DocumentID,
		}
	}
	return input
}

func splitsToInputs(splits []SplitRequest) []domain.SplitInput {
	if splits == nil {
		return nil
	}
	inputs := make([]domain.SplitInput, len(splits))
	for i := range splits {
		inputs[i] = splits[i].ToSplitInput()
	}
	return inputs
}

// CreatePaymentRequest represents a request to create a payment.
type CreatePaymentRequest struct {
	CustomerID *string         `json:"customer_id,omitempty"`
	Currency   string          `json:"currency"`
	Amount     decimal.Decimal `json:"amount"`
	AppliedTo  []SplitRequest  `json:"applied_to,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreatePaymentRequest) ToUseCaseInput() usecase.CreatePaymentInput {
	return usecase.CreatePaymentInput{
		CustomerID: r.CustomerID,
		Currency:   r.Currency,
		Amount:     r.Amount,
		AppliedTo:  splitsToInputs(r.AppliedTo),
		Metadata:   r.Metadata,
	}
}

// EditPaymentRequest represents a request to edit a payment. Omitted fields
// are left unchanged; an omitted applied_to keeps the current applied list,
// while an empty one drops every split.
type EditPaymentRequest struct {
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Currency  *string          `json:"currency,omitempty"`
	AppliedTo []SplitRequest   `json:"applied_to,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *EditPaymentRequest) ToUseCaseInput() usecase.EditPaymentInput {
	return usecase.EditPaymentInput{
		Amount:    r.Amount,
		Currency:  r.Currency,
		AppliedTo: splitsToInputs(r.AppliedTo),
		Metadata:  r.Metadata,
	}
}

// UpdateEntryRequest represents a request to edit a standalone entry.
type UpdateEntryRequest struct {
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Gateway   *string          `json:"gateway,omitempty"`
	GatewayID *string          `json:"gateway_id,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *UpdateEntryRequest) ToUseCaseInput() usecase.UpdateEntryInput {
	return usecase.UpdateEntryInput{
		Amount:    r.Amount,
		Gateway:   r.Gateway,
		GatewayID: r.GatewayID,
		Metadata:  r.Metadata,
	}
}

// SetEntryStatusRequest represents a request to move an entry through its
// lifecycle.
type SetEntryStatusRequest struct {
	Status string `json:"status"`
}
