package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
)

// EntryUseCase handles ledger entry reads and the narrow set of direct
// entry mutations: status transitions and non-monetary edits.
type EntryUseCase struct {
	txManager    TransactionManager
	retrier      Retrier
	entryRepo    EntryRepository
	paymentRepo  PaymentRepository
	docRepo      DocumentRepository
	outboxRepo   OutboxRepository
	creditLedger *CreditLedgerUseCase
	projector    *DocumentProjector
	idGen        IDGenerator
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(
	txManager TransactionManager,
	retrier Retrier,
	entryRepo EntryRepository,
	paymentRepo PaymentRepository,
	docRepo DocumentRepository,
	outboxRepo OutboxRepository,
	creditLedger *CreditLedgerUseCase,
	projector *DocumentProjector,
	idGen IDGenerator,
) *EntryUseCase {
	return &EntryUseCase{
		txManager:    txManager,
		retrier:      retrier,
		entryRepo:    entryRepo,
		paymentRepo:  paymentRepo,
		docRepo:      docRepo,
		outboxRepo:   outboxRepo,
		creditLedger: creditLedger,
		projector:    projector,
		idGen:        idGen,
	}
}

// SetStatus transitions an entry's lifecycle status. Succeeding a pending
// entry lands the balance effect that was skipped at creation; failing a
// succeeded entry reverses it. Terminal states never re-enter pending.
func (uc *EntryUseCase) SetStatus(ctx context.Context, id string, next domain.EntryStatus) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := uc.run(ctx, func(txCtx context.Context, tx Transaction) error {
		now := time.Now().UTC()

		e, err := uc.entryRepo.GetByIDForUpdate(txCtx, tx, id)
		if err != nil {
			return err
		}
		if !e.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatusTransition, e.Status, next)
		}
		before := *e

		docs, err := uc.lockEntryDocuments(txCtx, tx, e)
		if err != nil {
			return err
		}

		prev := e.Status
		e.Status = next
		e.UpdatedAt = now

		switch {
		case prev == domain.EntryStatusPending && next == domain.EntryStatusSucceeded:
			if e.Document != nil {
				if err := e.ValidateAgainstDocument(docs[*e.Document]); err != nil {
					return err
				}
			}
			if err := uc.projector.Apply(txCtx, tx, docs, e); err != nil {
				return err
			}
			if delta := e.CreditDelta(); !delta.IsZero() {
				if _, err := uc.creditLedger.Post(txCtx, tx, e.CustomerID, delta, e.ID, now); err != nil {
					return err
				}
			}
		case prev == domain.EntryStatusSucceeded && next == domain.EntryStatusFailed:
			if err := uc.projector.Reverse(txCtx, tx, docs, &before); err != nil {
				return err
			}
			if !before.CreditDelta().IsZero() {
				if err := uc.creditLedger.Remove(txCtx, tx, e.CustomerID, e.ID); err != nil {
					return err
				}
			}
		}

		if err := uc.entryRepo.Update(txCtx, tx, e); err != nil {
			return err
		}
		if err := uc.syncPaymentBalance(txCtx, tx, e, now); err != nil {
			return err
		}

		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   e.ID,
			AggregateType: domain.AggregateTypeEntry,
			EventType:     domain.EventTypeEntryUpdated,
			Payload: map[string]any{
				"before": domain.SnapshotEntry(&before),
				"after":  domain.SnapshotEntry(e),
			},
			CreatedAt: now,
		}
		if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
			return err
		}

		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	if entry.CustomerID != "" {
		uc.creditLedger.InvalidateCached(ctx, entry.CustomerID)
	}
	return entry, nil
}

// UpdateEntryInput carries the directly editable entry fields. Monetary and
// gateway fields on a charge freeze once a gateway reference exists; the
// metadata map stays editable.
type UpdateEntryInput struct {
	Amount    *decimal.Decimal
	Gateway   *string
	GatewayID *string
	Metadata  map[string]any
}

// UpdateEntry edits a standalone entry. Amount changes on document-applied
// entries belong to the owning payment's edit flow, not here.
func (uc *EntryUseCase) UpdateEntry(ctx context.Context, id string, input UpdateEntryInput) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := uc.run(ctx, func(txCtx context.Context, tx Transaction) error {
		now := time.Now().UTC()

		e, err := uc.entryRepo.GetByIDForUpdate(txCtx, tx, id)
		if err != nil {
			return err
		}
		before := *e

		if e.Locked() && (input.Amount != nil || input.Gateway != nil || input.GatewayID != nil) {
			return fmt.Errorf("%w: entry %s", domain.ErrImmutableChargeField, e.ID)
		}

		if input.Amount != nil {
			if e.Document != nil || !e.CreditDelta().IsZero() {
				return fmt.Errorf("%w: applied entry %s must be edited through its payment", domain.ErrImmutableChargeField, e.ID)
			}
			e.Amount = *input.Amount
			if err := e.Validate(); err != nil {
				return err
			}
		}
		if input.Gateway != nil {
			e.Gateway = *input.Gateway
		}
		if input.GatewayID != nil {
			e.GatewayID = *input.GatewayID
		}
		if input.Metadata != nil {
			if err := domain.ValidateMetadata(input.Metadata); err != nil {
				return err
			}
			e.Metadata = input.Metadata
		}

		e.UpdatedAt = now
		if err := uc.entryRepo.Update(txCtx, tx, e); err != nil {
			return err
		}

		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   e.ID,
			AggregateType: domain.AggregateTypeEntry,
			EventType:     domain.EventTypeEntryUpdated,
			Payload: map[string]any{
				"before": domain.SnapshotEntry(&before),
				"after":  domain.SnapshotEntry(e),
			},
			CreatedAt: now,
		}
		if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
			return err
		}

		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetEntry retrieves an entry by ID.
func (uc *EntryUseCase) GetEntry(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	return uc.entryRepo.GetByID(ctx, id)
}

// GetEntriesByPayment lists the entries a payment owns.
func (uc *EntryUseCase) GetEntriesByPayment(ctx context.Context, paymentID string) ([]*domain.LedgerEntry, error) {
	return uc.entryRepo.GetByPayment(ctx, paymentID)
}

// GetEntriesByCustomer lists entries for a customer.
func (uc *EntryUseCase) GetEntriesByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return uc.entryRepo.GetByCustomer(ctx, customerID, limit, offset)
}

// Breakdown aggregates a payment's entries for receipt rendering.
type Breakdown struct {
	Invoices    decimal.Decimal
	CreditNotes decimal.Decimal
	Refunded    decimal.Decimal
	Credited    decimal.Decimal
}

// GetBreakdown returns the receipt breakdown for a payment.
func (uc *EntryUseCase) GetBreakdown(ctx context.Context, paymentID string) (*Breakdown, error) {
	entries, err := uc.entryRepo.GetByPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	b := &Breakdown{
		Invoices:    decimal.Zero,
		CreditNotes: decimal.Zero,
		Refunded:    decimal.Zero,
		Credited:    decimal.Zero,
	}
	for _, e := range entries {
		if e.Status != domain.EntryStatusSucceeded {
			continue
		}
		switch {
		case e.Kind == domain.EntryKindRefund:
			b.Refunded = b.Refunded.Add(e.Amount)
		case e.CreditNoteID != nil:
			b.CreditNotes = b.CreditNotes.Add(e.CreditNoteEffect())
		case e.CreditDelta().IsPositive():
			b.Credited = b.Credited.Add(e.CreditDelta())
		case e.Document != nil && e.Document.Type == domain.DocumentTypeInvoice:
			b.Invoices = b.Invoices.Add(e.Amount)
		}
	}
	return b, nil
}

// PaymentAmount returns the sum of succeeded payment-kind entries for a
// payment.
func (uc *EntryUseCase) PaymentAmount(ctx context.Context, paymentID string) (decimal.Decimal, error) {
	entries, err := uc.entryRepo.GetByPayment(ctx, paymentID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		if e.Status == domain.EntryStatusSucceeded && e.Kind == domain.EntryKindPayment {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

// AmountRefunded returns the sum of succeeded refund entries for a payment.
func (uc *EntryUseCase) AmountRefunded(ctx context.Context, paymentID string) (decimal.Decimal, error) {
	entries, err := uc.entryRepo.GetByPayment(ctx, paymentID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		if e.Status == domain.EntryStatusSucceeded && e.Kind == domain.EntryKindRefund {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

// syncPaymentBalance re-derives the owning payment's persisted balance
// after a direct entry status change.
func (uc *EntryUseCase) syncPaymentBalance(ctx context.Context, tx Transaction, e *domain.LedgerEntry, now time.Time) error {
	if e.PaymentID == nil {
		return nil
	}

	p, err := uc.paymentRepo.GetByIDForUpdate(ctx, tx, *e.PaymentID)
	if err != nil {
		return err
	}

	entries, err := uc.entryRepo.GetByPaymentForUpdate(ctx, tx, p.ID)
	if err != nil {
		return err
	}

	applied := decimal.Zero
	for _, owned := range entries {
		if owned.Status != domain.EntryStatusSucceeded || isReversal(owned, entries) {
			continue
		}
		// Credit-funded entries apply the customer's standing credit, not
		// the payment's own money.
		if owned.CreditFunded() {
			continue
		}
		applied = applied.Add(owned.Amount.Abs())
	}

	p.SetBalance(applied)
	p.UpdatedAt = now
	return uc.paymentRepo.Update(ctx, tx, p)
}

func (uc *EntryUseCase) lockEntryDocuments(ctx context.Context, tx Transaction, e *domain.LedgerEntry) (map[domain.DocumentRef]*domain.Document, error) {
	docs := make(map[domain.DocumentRef]*domain.Document)

	if e.Document != nil {
		doc, err := uc.docRepo.GetByRefForUpdate(ctx, tx, *e.Document)
		if err != nil {
			return nil, err
		}
		docs[*e.Document] = doc
	}
	if e.CreditNoteID != nil {
		ref := domain.DocumentRef{Type: domain.DocumentTypeCreditNote, ID: *e.CreditNoteID}
		if _, ok := docs[ref]; !ok {
			doc, err := uc.docRepo.GetByRefForUpdate(ctx, tx, ref)
			if err != nil {
				return nil, err
			}
			docs[ref] = doc
		}
	}

	return docs, nil
}

func (uc *EntryUseCase) run(ctx context.Context, fn func(context.Context, Transaction) error) error {
	op := func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := uc.txManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		if err := fn(txCtx, tx); err != nil {
			return err
		}
		return tx.Commit(txCtx)
	}

	if uc.retrier != nil {
		return uc.retrier.Retry(ctx, op)
	}
	return op()
}
