package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
	"github.com/openbill/arledger/internal/infrastructure/metrics"
)

// PaymentUseCase orchestrates payment application: it runs the reconciler
// over the desired applied list and commits every staged write as one
// atomic unit.
type PaymentUseCase struct {
	txManager    TransactionManager
	retrier      Retrier
	paymentRepo  PaymentRepository
	entryRepo    EntryRepository
	docRepo      DocumentRepository
	outboxRepo   OutboxRepository
	creditLedger *CreditLedgerUseCase
	projector    *DocumentProjector
	reconciler   *Reconciler
	idGen        IDGenerator
	metrics      *metrics.Metrics
}

// NewPaymentUseCase creates a new PaymentUseCase.
func NewPaymentUseCase(
	txManager TransactionManager,
	retrier Retrier,
	paymentRepo PaymentRepository,
	entryRepo EntryRepository,
	docRepo DocumentRepository,
	outboxRepo OutboxRepository,
	creditLedger *CreditLedgerUseCase,
	projector *DocumentProjector,
	idGen IDGenerator,
	m *metrics.Metrics,
) *PaymentUseCase {
	return &PaymentUseCase{
		txManager:    txManager,
		retrier:      retrier,
		paymentRepo:  paymentRepo,
		entryRepo:    entryRepo,
		docRepo:      docRepo,
		outboxRepo:   outboxRepo,
		creditLedger: creditLedger,
		projector:    projector,
		reconciler:   NewReconciler(idGen),
		idGen:        idGen,
		metrics:      m,
	}
}

// CreatePaymentInput represents input for creating a payment.
type CreatePaymentInput struct {
	CustomerID *string
	Currency   string
	Amount     decimal.Decimal
	AppliedTo  []domain.SplitInput
	Metadata   map[string]any
}

// EditPaymentInput represents input for editing a payment. Nil fields are
// left unchanged; a nil AppliedTo keeps the current applied list.
type EditPaymentInput struct {
	Amount    *decimal.Decimal
	Currency  *string
	AppliedTo []domain.SplitInput
	Metadata  map[string]any
}

// CreatePayment creates a payment and applies its splits atomically.
func (uc *PaymentUseCase) CreatePayment(ctx context.Context, input CreatePaymentInput) (*domain.Payment, error) {
	start := time.Now()

	splits, err := domain.ParseSplits(input.AppliedTo)
	if err != nil {
		return nil, err
	}

	var payment *domain.Payment
	err = uc.run(ctx, func(txCtx context.Context, tx Transaction) error {
		now := time.Now().UTC()
		p := &domain.Payment{
			ID:         uc.idGen.Generate(),
			CustomerID: input.CustomerID,
			Currency:   input.Currency,
			Amount:     input.Amount,
			Balance:    input.Amount,
			Metadata:   input.Metadata,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if err := requireCustomer(p, splits); err != nil {
			return err
		}

		docs, err := uc.lockDocuments(txCtx, tx, nil, splits)
		if err != nil {
			return err
		}

		plan, err := uc.reconciler.Plan(p, nil, splits, docs, now)
		if err != nil {
			return err
		}
		if plan.Applied.GreaterThan(p.Amount) {
			return fmt.Errorf("%w: amount %s, applied %s", domain.ErrUnderAppliedAfterReduction, p.Amount, plan.Applied)
		}

		if err := uc.paymentRepo.Create(txCtx, tx, p); err != nil {
			return err
		}
		if err := uc.applyPlan(txCtx, tx, p, plan, docs, now); err != nil {
			return err
		}

		p.SetBalance(plan.Applied)
		p.UpdatedAt = now
		if err := uc.paymentRepo.Update(txCtx, tx, p); err != nil {
			return err
		}

		if err := uc.emitPayment(txCtx, tx, domain.EventTypePaymentCreated, nil, p, now); err != nil {
			return err
		}

		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The cached balance drops only after commit; dropped inside the
	// transaction, a concurrent read could refill it with the old balance.
	if payment.CustomerID != nil {
		uc.creditLedger.InvalidateCached(ctx, *payment.CustomerID)
	}

	if uc.metrics != nil {
		uc.metrics.PaymentsCreated.Inc()
		uc.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}

	return payment, nil
}

// EditPayment edits payment fields and/or its applied list. Resubmitting an
// unchanged applied list performs zero entry writes and emits zero entry
// events.
func (uc *PaymentUseCase) EditPayment(ctx context.Context, id string, input EditPaymentInput) (*domain.Payment, error) {
	start := time.Now()

	var payment *domain.Payment
	err := uc.run(ctx, func(txCtx context.Context, tx Transaction) error {
		now := time.Now().UTC()

		p, err := uc.paymentRepo.GetByIDForUpdate(txCtx, tx, id)
		if err != nil {
			return err
		}
		if p.Voided {
			return fmt.Errorf("%w: payment %s", domain.ErrAlreadyVoided, p.ID)
		}
		before := *p

		existing, err := uc.entryRepo.GetByPaymentForUpdate(txCtx, tx, p.ID)
		if err != nil {
			return err
		}

		appliedTo := input.AppliedTo
		if appliedTo == nil {
			appliedTo = make([]domain.SplitInput, 0, len(existing))
			for _, e := range existing {
				appliedTo = append(appliedTo, domain.SplitFromEntry(e))
			}
		}
		splits, err := domain.ParseSplits(appliedTo)
		if err != nil {
			return err
		}

		if input.Currency != nil && *input.Currency != p.Currency {
			if len(splits) > 0 || len(existing) > 0 {
				return fmt.Errorf("%w: payment %s", domain.ErrCurrencyLockedWhileApplied, p.ID)
			}
			if err := domain.ValidateCurrency(*input.Currency); err != nil {
				return err
			}
			p.Currency = *input.Currency
		}
		if input.Amount != nil {
			if input.Amount.IsNegative() {
				return domain.ErrInvalidAmount
			}
			p.Amount = *input.Amount
		}
		if input.Metadata != nil {
			if err := domain.ValidateMetadata(input.Metadata); err != nil {
				return err
			}
			p.Metadata = input.Metadata
		}
		if err := requireCustomer(p, splits); err != nil {
			return err
		}

		docs, err := uc.lockDocuments(txCtx, tx, existing, splits)
		if err != nil {
			return err
		}

		plan, err := uc.reconciler.Plan(p, existing, splits, docs, now)
		if err != nil {
			return err
		}
		// A reduced amount must fit the applied list submitted in the same
		// call; reducing both together is the supported path.
		if plan.Applied.GreaterThan(p.Amount) {
			return fmt.Errorf("%w: amount %s, applied %s", domain.ErrUnderAppliedAfterReduction, p.Amount, plan.Applied)
		}

		if err := uc.applyPlan(txCtx, tx, p, plan, docs, now); err != nil {
			return err
		}

		p.SetBalance(plan.Applied)

		if !plan.Empty() || paymentFieldsChanged(&before, p, input.Metadata != nil) {
			p.UpdatedAt = now
			if err := uc.paymentRepo.Update(txCtx, tx, p); err != nil {
				return err
			}
			if err := uc.emitPayment(txCtx, tx, domain.EventTypePaymentUpdated, &before, p, now); err != nil {
				return err
			}
		}

		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if payment.CustomerID != nil {
		uc.creditLedger.InvalidateCached(ctx, *payment.CustomerID)
	}

	if uc.metrics != nil {
		uc.metrics.PaymentsEdited.Inc()
		uc.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}

	return payment, nil
}

// VoidPayment reverses every ledger entry the payment owns and marks it
// voided. Credit the payment granted must still be available; otherwise the
// dependent entry has to be voided first and the failure is reported.
func (uc *PaymentUseCase) VoidPayment(ctx context.Context, id string) (*domain.Payment, error) {
	var payment *domain.Payment
	err := uc.run(ctx, func(txCtx context.Context, tx Transaction) error {
		now := time.Now().UTC()

		p, err := uc.paymentRepo.GetByIDForUpdate(txCtx, tx, id)
		if err != nil {
			return err
		}
		if p.Voided {
			return fmt.Errorf("%w: payment %s", domain.ErrAlreadyVoided, p.ID)
		}
		before := *p

		entries, err := uc.entryRepo.GetByPaymentForUpdate(txCtx, tx, p.ID)
		if err != nil {
			return err
		}

		docs, err := uc.lockDocuments(txCtx, tx, entries, nil)
		if err != nil {
			return err
		}

		// Reversals that restore standing credit must post before the ones
		// that take it back, or voiding a payment that both grants and
		// spends credit would trip the floor mid-void.
		ordered := make([]*domain.LedgerEntry, len(entries))
		copy(ordered, entries)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].CreditDelta().LessThan(ordered[j].CreditDelta())
		})

		for _, e := range ordered {
			if isReversal(e, entries) {
				continue
			}

			switch e.Status {
			case domain.EntryStatusPending:
				// Never applied; no effect to unwind.
				e.Status = domain.EntryStatusFailed
				e.UpdatedAt = now
				if err := uc.entryRepo.Update(txCtx, tx, e); err != nil {
					return err
				}
			case domain.EntryStatusSucceeded:
				reversal := e.Reverse(uc.idGen.Generate(), now)
				if err := uc.entryRepo.Create(txCtx, tx, reversal); err != nil {
					return err
				}
				if err := uc.projector.Apply(txCtx, tx, docs, reversal); err != nil {
					return err
				}
				if delta := reversal.CreditDelta(); !delta.IsZero() {
					_, err := uc.creditLedger.Post(txCtx, tx, e.CustomerID, delta, reversal.ID, now)
					if errors.Is(err, domain.ErrOverspendBlocked) {
						return fmt.Errorf("%w: payment %s, entry %s", domain.ErrDependentCreditConsumed, p.ID, e.ID)
					}
					if err != nil {
						return err
					}
				}
				if err := uc.emitEntry(txCtx, tx, domain.EventTypeEntryCreated, nil, reversal, now); err != nil {
					return err
				}
			}
		}

		p.Voided = true
		p.Balance = p.Amount
		p.UpdatedAt = now
		if err := uc.paymentRepo.Update(txCtx, tx, p); err != nil {
			return err
		}
		if err := uc.emitPayment(txCtx, tx, domain.EventTypePaymentVoided, &before, p, now); err != nil {
			return err
		}

		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if payment.CustomerID != nil {
		uc.creditLedger.InvalidateCached(ctx, *payment.CustomerID)
	}

	if uc.metrics != nil {
		uc.metrics.PaymentsVoided.Inc()
	}

	return payment, nil
}

// DeletePayment removes a voided payment and cascades deletion of every
// ledger entry and credit balance row it produced.
func (uc *PaymentUseCase) DeletePayment(ctx context.Context, id string) error {
	var customerID *string
	err := uc.run(ctx, func(txCtx context.Context, tx Transaction) error {
		now := time.Now().UTC()

		p, err := uc.paymentRepo.GetByIDForUpdate(txCtx, tx, id)
		if err != nil {
			return err
		}
		if !p.Voided {
			return fmt.Errorf("%w: payment %s", domain.ErrNotVoided, p.ID)
		}
		customerID = p.CustomerID

		entries, err := uc.entryRepo.GetByPaymentForUpdate(txCtx, tx, p.ID)
		if err != nil {
			return err
		}

		entryIDs := make([]string, 0, len(entries))
		for _, e := range entries {
			entryIDs = append(entryIDs, e.ID)
		}

		// Entries arrive in (created_at, id) order with the group head first.
		// Children and reversals reference earlier rows, so deletion walks
		// backwards and removes the head last.
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			if err := uc.entryRepo.Delete(txCtx, tx, e.ID); err != nil {
				return err
			}
			if err := uc.emitEntry(txCtx, tx, domain.EventTypeEntryDeleted, e, nil, now); err != nil {
				return err
			}
		}

		if p.CustomerID != nil && len(entryIDs) > 0 {
			if err := uc.creditLedger.Purge(txCtx, tx, *p.CustomerID, entryIDs); err != nil {
				return err
			}
		}

		if err := uc.paymentRepo.Delete(txCtx, tx, p.ID); err != nil {
			return err
		}
		return uc.emitPayment(txCtx, tx, domain.EventTypePaymentDeleted, p, nil, now)
	})
	if err != nil {
		return err
	}

	if customerID != nil {
		uc.creditLedger.InvalidateCached(ctx, *customerID)
	}

	if uc.metrics != nil {
		uc.metrics.PaymentsDeleted.Inc()
	}

	return nil
}

// GetPayment retrieves a payment by ID.
func (uc *PaymentUseCase) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return uc.paymentRepo.GetByID(ctx, id)
}

// ListPaymentsByCustomer lists payments for a customer.
func (uc *PaymentUseCase) ListPaymentsByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.Payment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return uc.paymentRepo.ListByCustomer(ctx, customerID, limit, offset)
}

// run executes fn inside one serializable transaction, retrying on storage
// conflicts.
func (uc *PaymentUseCase) run(ctx context.Context, fn func(context.Context, Transaction) error) error {
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

// applyPlan writes the staged reconciliation to storage. Parent rewrites
// land first so no surviving entry still references a row about to be
// removed; deletions then run newest-row-first and ahead of updates and
// creates, so swaps against the same document do not trip the capacity
// guard mid-flight. Each entry's document and credit effects land exactly
// once per state transition.
func (uc *PaymentUseCase) applyPlan(
	ctx context.Context,
	tx Transaction,
	p *domain.Payment,
	plan *ReconcilePlan,
	docs map[domain.DocumentRef]*domain.Document,
	now time.Time,
) error {
	for _, rw := range plan.ParentRewrites {
		if err := uc.entryRepo.UpdateParent(ctx, tx, rw.EntryID, rw.ParentID, now); err != nil {
			return err
		}
	}

	// Entries read in (created_at, id) order; walking backwards removes
	// children before the group head they reference.
	for i := len(plan.Deletes) - 1; i >= 0; i-- {
		e := plan.Deletes[i]
		if e.Status == domain.EntryStatusSucceeded {
			if err := uc.projector.Reverse(ctx, tx, docs, e); err != nil {
				return err
			}
			if !e.CreditDelta().IsZero() {
				if err := uc.creditLedger.Remove(ctx, tx, e.CustomerID, e.ID); err != nil {
					return err
				}
			}
		}
		if err := uc.entryRepo.Delete(ctx, tx, e.ID); err != nil {
			return err
		}
		if err := uc.emitEntry(ctx, tx, domain.EventTypeEntryDeleted, e, nil, now); err != nil {
			return err
		}
	}

	for _, change := range plan.Updates {
		before, after := change.Before, change.After

		if before.Status == domain.EntryStatusSucceeded {
			if err := uc.projector.Reverse(ctx, tx, docs, before); err != nil {
				return err
			}
			if err := uc.projector.Apply(ctx, tx, docs, after); err != nil {
				return err
			}
			if err := uc.repostCredit(ctx, tx, before, after, now); err != nil {
				return err
			}
		}

		if err := uc.entryRepo.Update(ctx, tx, after); err != nil {
			return err
		}
		if err := uc.emitEntry(ctx, tx, domain.EventTypeEntryUpdated, before, after, now); err != nil {
			return err
		}
	}

	for _, e := range plan.Creates {
		if err := uc.entryRepo.Create(ctx, tx, e); err != nil {
			return err
		}
		if e.Status == domain.EntryStatusSucceeded {
			if err := uc.projector.Apply(ctx, tx, docs, e); err != nil {
				return err
			}
			if delta := e.CreditDelta(); !delta.IsZero() {
				if _, err := uc.creditLedger.Post(ctx, tx, e.CustomerID, delta, e.ID, now); err != nil {
					return err
				}
			}
		}
		if err := uc.emitEntry(ctx, tx, domain.EventTypeEntryCreated, nil, e, now); err != nil {
			return err
		}
	}

	return nil
}

func (uc *PaymentUseCase) repostCredit(ctx context.Context, tx Transaction, before, after *domain.LedgerEntry, now time.Time) error {
	prev, next := before.CreditDelta(), after.CreditDelta()

	switch {
	case prev.IsZero() && next.IsZero():
		return nil
	case prev.IsZero():
		_, err := uc.creditLedger.Post(ctx, tx, after.CustomerID, next, after.ID, now)
		return err
	case next.IsZero():
		return uc.creditLedger.Remove(ctx, tx, before.CustomerID, before.ID)
	default:
		return uc.creditLedger.Reprice(ctx, tx, after.CustomerID, after.ID, next)
	}
}

// lockDocuments loads every document referenced by the existing entries or
// the desired splits under row locks, in sorted reference order to keep
// lock acquisition deadlock-free.
func (uc *PaymentUseCase) lockDocuments(
	ctx context.Context,
	tx Transaction,
	existing []*domain.LedgerEntry,
	splits []domain.Split,
) (map[domain.DocumentRef]*domain.Document, error) {
	seen := make(map[domain.DocumentRef]bool)
	var refs []domain.DocumentRef

	add := func(ref domain.DocumentRef) {
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}

	for _, e := range existing {
		if e.Document != nil {
			add(*e.Document)
		}
		if e.CreditNoteID != nil {
			add(domain.DocumentRef{Type: domain.DocumentTypeCreditNote, ID: *e.CreditNoteID})
		}
	}
	for _, s := range splits {
		if s.Document != nil {
			add(*s.Document)
		}
		if s.CreditNoteID != "" {
			add(domain.DocumentRef{Type: domain.DocumentTypeCreditNote, ID: s.CreditNoteID})
		}
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Type != refs[j].Type {
			return refs[i].Type < refs[j].Type
		}
		return refs[i].ID < refs[j].ID
	})

	docs := make(map[domain.DocumentRef]*domain.Document, len(refs))
	for _, ref := range refs {
		doc, err := uc.docRepo.GetByRefForUpdate(ctx, tx, ref)
		if err != nil {
			return nil, err
		}
		docs[ref] = doc
	}

	return docs, nil
}

func (uc *PaymentUseCase) emitPayment(ctx context.Context, tx Transaction, eventType string, before, after *domain.Payment, now time.Time) error {
	subject := after
	if subject == nil {
		subject = before
	}

	payload := map[string]any{}
	if before != nil {
		payload["before"] = domain.SnapshotPayment(before)
	}
	if after != nil {
		payload["after"] = domain.SnapshotPayment(after)
	}

	return uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   subject.ID,
		AggregateType: domain.AggregateTypePayment,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	})
}

func (uc *PaymentUseCase) emitEntry(ctx context.Context, tx Transaction, eventType string, before, after *domain.LedgerEntry, now time.Time) error {
	subject := after
	if subject == nil {
		subject = before
	}

	payload := map[string]any{}
	if before != nil {
		payload["before"] = domain.SnapshotEntry(before)
	}
	if after != nil {
		payload["after"] = domain.SnapshotEntry(after)
	}

	return uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   subject.ID,
		AggregateType: domain.AggregateTypeEntry,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	})
}

func paymentFieldsChanged(before, after *domain.Payment, metadataChanged bool) bool {
	return !before.Amount.Equal(after.Amount) ||
		!before.Balance.Equal(after.Balance) ||
		before.Currency != after.Currency ||
		metadataChanged
}

// requireCustomer rejects applied lists that need a customer on a payment
// that has none. Unmatched payments may exist without a customer, but they
// cannot touch documents or standing credit.
func requireCustomer(p *domain.Payment, splits []domain.Split) error {
	if p.CustomerID != nil || len(splits) == 0 {
		return nil
	}
	for _, s := range splits {
		if s.Document != nil || s.TargetsCredit() || s.CreditNoteID != "" {
			return fmt.Errorf("%w: payment %s has no customer", domain.ErrMissingRequiredReference, p.ID)
		}
	}
	return nil
}

// isReversal reports whether the entry undoes another entry rather than
// representing a split. Split entries parent only on their group head;
// reversals parent on the entry they reverse.
func isReversal(e *domain.LedgerEntry, all []*domain.LedgerEntry) bool {
	if e.Kind == domain.EntryKindRefund {
		return true
	}
	if e.ParentEntryID == nil {
		return false
	}
	for _, other := range all {
		if other.ID == *e.ParentEntryID {
			// Group heads carry no parent themselves.
			return other.ParentEntryID != nil || other.Kind == domain.EntryKindRefund
		}
	}
	return false
}
