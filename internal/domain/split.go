package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SplitType is the closed set of targets one line of a payment's applied
// list can point at.
type SplitType string

const (
	SplitTypeInvoice        SplitType = "invoice"
	SplitTypeEstimate       SplitType = "estimate"
	SplitTypeCredit         SplitType = "credit"
	SplitTypeCreditNote     SplitType = "credit_note"
	SplitTypeAppliedCredit  SplitType = "applied_credit"
	SplitTypeConvenienceFee SplitType = "convenience_fee"
	SplitTypePayment        SplitType = "payment"
)

// SplitInput is the caller-supplied descriptor for one line of a payment's
// applied list. EntryID is set when the caller is editing a split that
// already has a ledger entry behind it.
type SplitInput struct {
	EntryID      string
	Type         SplitType
	Amount       decimal.Decimal
	Document     *DocumentRef
	CreditNoteID string
}

// Split is a parsed, validated split. Existing reports whether the split
// refers to an already persisted ledger entry.
type Split struct {
	EntryID      string
	Type         SplitType
	Amount       decimal.Decimal
	Document     *DocumentRef
	CreditNoteID string
}

// Existing reports whether this split edits a persisted entry.
func (s Split) Existing() bool {
	return s.EntryID != ""
}

// TargetsCredit reports whether the split posts to the customer's standing
// credit balance rather than a document.
func (s Split) TargetsCredit() bool {
	switch s.Type {
	case SplitTypeCredit, SplitTypeAppliedCredit:
		return true
	}
	// A credit note applied without a document target releases its value to
	// the customer's standing credit.
	return s.Type == SplitTypeCreditNote && s.Document == nil
}

// FundedByPayment reports whether the split consumes the payment's own
// amount. Applied-credit splits draw on the customer's standing credit
// balance, so a fully credit-funded payment may carry an amount of zero.
func (s Split) FundedByPayment() bool {
	return s.Type != SplitTypeAppliedCredit
}

// CreditDelta returns the signed change to the customer's standing credit
// balance this split produces, or zero if it does not touch credit.
func (s Split) CreditDelta() decimal.Decimal {
	switch s.Type {
	case SplitTypeCredit:
		return s.Amount
	case SplitTypeAppliedCredit:
		return s.Amount.Neg()
	case SplitTypeCreditNote:
		if s.Document == nil {
			return s.Amount
		}
	}
	return decimal.Zero
}

// EntryKind returns the ledger entry kind a new entry for this split takes.
func (s Split) EntryKind() EntryKind {
	switch s.Type {
	case SplitTypeConvenienceFee:
		return EntryKindCharge
	case SplitTypeCredit, SplitTypeAppliedCredit, SplitTypeCreditNote:
		return EntryKindAdjustment
	default:
		return EntryKindPayment
	}
}

// EntryAmount returns the signed ledger amount for a new entry created from
// this split. Positive reduces what the customer owes; splits that grant
// standing credit store the negated amount.
func (s Split) EntryAmount() decimal.Decimal {
	if s.CreditDelta().IsPositive() {
		return s.Amount.Neg()
	}
	return s.Amount
}

// SplitFromEntry reconstructs the split descriptor a stored ledger entry was
// created from. Used when a payment edit leaves the applied list untouched.
func SplitFromEntry(e *LedgerEntry) SplitInput {
	in := SplitInput{
		EntryID:  e.ID,
		Amount:   e.Amount.Abs(),
		Document: e.Document,
	}

	switch {
	case e.Kind == EntryKindCharge:
		in.Type = SplitTypeConvenienceFee
	case e.CreditNoteID != nil:
		in.Type = SplitTypeCreditNote
		in.CreditNoteID = *e.CreditNoteID
	case e.Kind == EntryKindAdjustment && e.Amount.IsNegative():
		in.Type = SplitTypeCredit
	case e.Kind == EntryKindAdjustment:
		in.Type = SplitTypeAppliedCredit
	case e.Document != nil && e.Document.Type == DocumentTypeEstimate:
		in.Type = SplitTypeEstimate
	case e.Document != nil:
		in.Type = SplitTypeInvoice
	default:
		in.Type = SplitTypePayment
	}

	return in
}

// ParseSplits validates the caller's applied list and turns it into typed
// splits. Per-variant required references are checked here, before the
// reconciler ever runs.
func ParseSplits(inputs []SplitInput) ([]Split, error) {
	splits := make([]Split, 0, len(inputs))

	for i, in := range inputs {
		if in.Amount.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: split %d", ErrInvalidAmount, i)
		}

		switch in.Type {
		case SplitTypeInvoice:
			if in.Document == nil || in.Document.Type != DocumentTypeInvoice {
				return nil, fmt.Errorf("%w: split %d requires an invoice reference", ErrMissingRequiredReference, i)
			}
		case SplitTypeEstimate:
			if in.Document == nil || in.Document.Type != DocumentTypeEstimate {
				return nil, fmt.Errorf("%w: split %d requires an estimate reference", ErrMissingRequiredReference, i)
			}
		case SplitTypeCreditNote:
			if in.CreditNoteID == "" {
				return nil, fmt.Errorf("%w: split %d requires a credit note reference", ErrMissingRequiredReference, i)
			}
			if in.Document != nil && in.Document.Type != DocumentTypeInvoice {
				return nil, fmt.Errorf("%w: split %d credit note may only be applied to an invoice", ErrMissingRequiredReference, i)
			}
		case SplitTypeAppliedCredit:
			if in.Document != nil && in.Document.Type == DocumentTypeCreditNote {
				return nil, fmt.Errorf("%w: split %d applied credit cannot target a credit note", ErrMissingRequiredReference, i)
			}
		case SplitTypeCredit, SplitTypeConvenienceFee, SplitTypePayment:
			if in.Document != nil {
				return nil, fmt.Errorf("%w: split %d must not carry a document reference", ErrMissingRequiredReference, i)
			}
		default:
			return nil, fmt.Errorf("%w: split %d has unknown type %q", ErrMissingRequiredReference, i, in.Type)
		}

		splits = append(splits, Split{
			EntryID:      in.EntryID,
			Type:         in.Type,
			Amount:       in.Amount,
			Document:     in.Document,
			CreditNoteID: in.CreditNoteID,
		})
	}

	return splits, nil
}
