package domain

import "errors"

var (
	// Validation errors
	ErrInvalidAmount              = errors.New("amount must be positive")
	ErrInvalidCurrency            = errors.New("invalid currency code")
	ErrMetadataTooLarge           = errors.New("metadata size exceeds limit")
	ErrInvalidAmountSign          = errors.New("amount sign does not match entry kind")
	ErrCurrencyMismatch           = errors.New("entry currency does not match document currency")
	ErrMissingRequiredReference   = errors.New("split is missing a required reference")
	ErrDuplicateDocumentReference = errors.New("document referenced more than once in applied list")

	// Invariant violations
	ErrOverAppliedDocument        = errors.New("applied amount exceeds document total")
	ErrUnderAppliedAfterReduction = errors.New("payment amount reduced below applied amount")
	ErrOverspendBlocked           = errors.New("credit balance would fall below the allowed floor")
	ErrCurrencyLockedWhileApplied = errors.New("currency cannot change while splits are applied")

	// State conflicts
	ErrAlreadyVoided                = errors.New("payment is already voided")
	ErrImmutableChargeField         = errors.New("charge field is immutable once a gateway reference is set")
	ErrDependentCreditConsumed      = errors.New("credit produced by this payment was already consumed")
	ErrNotVoided                    = errors.New("payment must be voided before deletion")
	ErrInvalidStatusTransition      = errors.New("invalid entry status transition")
	ErrOnlyAdjustmentsOnCreditNotes = errors.New("only adjustment entries may target a credit note")

	// Not found
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrEntryNotFound      = errors.New("ledger entry not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrCreditNoteNotFound = errors.New("credit note not found")
	ErrCustomerNotFound   = errors.New("customer not found")
)
