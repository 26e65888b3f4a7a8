package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
)

// Reconciler diffs a payment's desired applied list against its existing
// ledger entries and produces the minimal set of creates, updates, deletes
// and parent rewrites. The plan is pure; applying it is the payment use
// case's job, inside one transaction.
type Reconciler struct {
	idGen IDGenerator
}

// NewReconciler creates a new Reconciler.
func NewReconciler(idGen IDGenerator) *Reconciler {
	return &Reconciler{idGen: idGen}
}

// EntryChange pairs an entry's stored state with its desired state.
type EntryChange struct {
	Before *domain.LedgerEntry
	After  *domain.LedgerEntry
}

// ParentRewrite repoints one entry's parent inside the transaction tree.
type ParentRewrite struct {
	EntryID  string
	ParentID *string
}

// ReconcilePlan is the staged outcome of one reconciliation pass. An empty
// plan (no creates, updates, deletes or rewrites) means the desired list
// matched the stored entries exactly; applying it performs zero writes and
// emits zero events.
type ReconcilePlan struct {
	Creates        []*domain.LedgerEntry
	Updates        []EntryChange
	Deletes        []*domain.LedgerEntry
	ParentRewrites []ParentRewrite

	// Applied is the payment-funded total of the desired list. Splits that
	// spend standing credit are excluded.
	Applied decimal.Decimal
}

// Empty reports whether applying the plan would perform any write.
func (p *ReconcilePlan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0 && len(p.ParentRewrites) == 0
}

// Plan computes the reconciliation of desired splits against the payment's
// existing entries. docs must contain every document referenced by either
// side, keyed by reference; callers load them under row locks first.
func (r *Reconciler) Plan(
	payment *domain.Payment,
	existing []*domain.LedgerEntry,
	desired []domain.Split,
	docs map[domain.DocumentRef]*domain.Document,
	now time.Time,
) (*ReconcilePlan, error) {
	existingByID := make(map[string]*domain.LedgerEntry, len(existing))
	for _, e := range existing {
		existingByID[e.ID] = e
	}

	if err := checkDuplicateReferences(desired); err != nil {
		return nil, err
	}

	plan := &ReconcilePlan{Applied: decimal.Zero}

	// Partition: kept splits update in place, the rest are new.
	kept := make(map[string]bool, len(desired))
	type survivor struct {
		entry   *domain.LedgerEntry
		stored  *domain.LedgerEntry // nil for creates
		changed bool
	}
	survivors := make([]*survivor, 0, len(desired))

	for i, split := range desired {
		// Credit-funded splits never count against the payment amount; a
		// zero-amount payment may still spend standing credit.
		if split.FundedByPayment() {
			plan.Applied = plan.Applied.Add(split.Amount)
		}

		if split.Existing() {
			stored, ok := existingByID[split.EntryID]
			if !ok {
				return nil, fmt.Errorf("%w: split %d references entry %s", domain.ErrEntryNotFound, i, split.EntryID)
			}
			if kept[split.EntryID] {
				return nil, fmt.Errorf("%w: entry %s kept twice", domain.ErrDuplicateDocumentReference, split.EntryID)
			}
			kept[split.EntryID] = true

			next := desiredState(stored, split, now)
			changed := entryDiffers(stored, next)
			if changed && stored.Locked() {
				return nil, fmt.Errorf("%w: entry %s", domain.ErrImmutableChargeField, stored.ID)
			}
			survivors = append(survivors, &survivor{entry: next, stored: stored, changed: changed})
			continue
		}

		created := r.newEntry(payment, split, now)
		if err := created.Validate(); err != nil {
			return nil, err
		}
		survivors = append(survivors, &survivor{entry: created})
	}

	// Entries whose split was dropped are deleted.
	for _, e := range existing {
		if !kept[e.ID] {
			plan.Deletes = append(plan.Deletes, e)
		}
	}

	entries := make([]*domain.LedgerEntry, len(survivors))
	for i, s := range survivors {
		entries[i] = s.entry
	}
	if err := checkDocumentCapacity(entries, existing, docs); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Document != nil {
			if err := e.ValidateAgainstDocument(docs[*e.Document]); err != nil {
				return nil, err
			}
		}
	}

	// Transaction tree: with two or more surviving entries the earliest
	// created one heads the group and every sibling points at it. Removing
	// the head promotes the next earliest inside the same plan.
	assignParents(entries)

	for _, s := range survivors {
		if s.stored == nil {
			plan.Creates = append(plan.Creates, s.entry)
			continue
		}
		if s.changed {
			plan.Updates = append(plan.Updates, EntryChange{Before: s.stored, After: s.entry})
		}
		if !sameParent(s.stored.ParentEntryID, s.entry.ParentEntryID) {
			plan.ParentRewrites = append(plan.ParentRewrites, ParentRewrite{EntryID: s.entry.ID, ParentID: s.entry.ParentEntryID})
		}
	}

	return plan, nil
}

func (r *Reconciler) newEntry(payment *domain.Payment, split domain.Split, now time.Time) *domain.LedgerEntry {
	paymentID := payment.ID
	customerID := ""
	if payment.CustomerID != nil {
		customerID = *payment.CustomerID
	}

	entry := &domain.LedgerEntry{
		ID:         r.idGen.Generate(),
		CustomerID: customerID,
		PaymentID:  &paymentID,
		Currency:   payment.Currency,
		Amount:     split.EntryAmount(),
		Kind:       split.EntryKind(),
		Status:     domain.EntryStatusSucceeded,
		Document:   split.Document,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if split.CreditNoteID != "" {
		id := split.CreditNoteID
		entry.CreditNoteID = &id
	}
	return entry
}

// desiredState projects a kept split onto a copy of its stored entry.
func desiredState(stored *domain.LedgerEntry, split domain.Split, now time.Time) *domain.LedgerEntry {
	next := *stored
	next.Amount = split.EntryAmount()
	next.Kind = split.EntryKind()
	next.Document = split.Document
	next.CreditNoteID = nil
	if split.CreditNoteID != "" {
		id := split.CreditNoteID
		next.CreditNoteID = &id
	}
	if entryDiffers(stored, &next) {
		next.UpdatedAt = now
	}
	return &next
}

// entryDiffers compares the fields a split controls: amount, document
// reference and credit note reference. Anything else never marks a kept
// split dirty, which is what makes identical resubmission a no-op.
func entryDiffers(a, b *domain.LedgerEntry) bool {
	if !a.Amount.Equal(b.Amount) || a.Kind != b.Kind {
		return true
	}
	if (a.Document == nil) != (b.Document == nil) {
		return true
	}
	if a.Document != nil && !a.Document.Equal(*b.Document) {
		return true
	}
	if (a.CreditNoteID == nil) != (b.CreditNoteID == nil) {
		return true
	}
	if a.CreditNoteID != nil && *a.CreditNoteID != *b.CreditNoteID {
		return true
	}
	return false
}

func sameParent(a, b *string) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

// checkDuplicateReferences rejects applying the same document twice in one
// list unless every reference to it is a kept split editing a distinct
// pre-existing entry.
func checkDuplicateReferences(desired []domain.Split) error {
	type refCount struct {
		total int
		new   int
	}
	counts := make(map[domain.DocumentRef]*refCount)

	for _, s := range desired {
		if s.Document == nil {
			continue
		}
		c := counts[*s.Document]
		if c == nil {
			c = &refCount{}
			counts[*s.Document] = c
		}
		c.total++
		if !s.Existing() {
			c.new++
		}
	}

	for ref, c := range counts {
		if c.total > 1 && c.new > 0 {
			return fmt.Errorf("%w: %s %s", domain.ErrDuplicateDocumentReference, ref.Type, ref.ID)
		}
	}
	return nil
}

// checkDocumentCapacity verifies, per referenced document, that the desired
// usage fits what the document still has open once this payment's own stored
// entries are netted out. Credit note value consumed by splits is tracked
// under the note's own reference, so several splits drawing on one note
// share its remaining balance within the pass.
func checkDocumentCapacity(
	entries []*domain.LedgerEntry,
	existing []*domain.LedgerEntry,
	docs map[domain.DocumentRef]*domain.Document,
) error {
	desiredUse := make(map[domain.DocumentRef]decimal.Decimal)
	for _, e := range entries {
		accumulateUse(desiredUse, e)
	}

	storedUse := make(map[domain.DocumentRef]decimal.Decimal)
	for _, e := range existing {
		if e.Status == domain.EntryStatusSucceeded {
			accumulateUse(storedUse, e)
		}
	}

	for ref, use := range desiredUse {
		doc, ok := docs[ref]
		if !ok {
			if ref.Type == domain.DocumentTypeCreditNote {
				return fmt.Errorf("%w: %s", domain.ErrCreditNoteNotFound, ref.ID)
			}
			return fmt.Errorf("%w: %s %s", domain.ErrDocumentNotFound, ref.Type, ref.ID)
		}

		applied := doc.AmountPaid.Add(doc.AmountCredited).Sub(storedUse[ref])
		if use.Add(applied).GreaterThan(doc.Total) {
			return fmt.Errorf("%w: %s %s total %s, applying %s over %s already applied",
				domain.ErrOverAppliedDocument, ref.Type, ref.ID, doc.Total, use, applied)
		}
	}
	return nil
}

func accumulateUse(use map[domain.DocumentRef]decimal.Decimal, e *domain.LedgerEntry) {
	if e.Document != nil {
		paid, credited := e.DocumentEffect()
		use[*e.Document] = use[*e.Document].Add(paid).Add(credited)
	}
	if e.CreditNoteID != nil {
		ref := domain.DocumentRef{Type: domain.DocumentTypeCreditNote, ID: *e.CreditNoteID}
		use[ref] = use[ref].Add(e.CreditNoteEffect())
	}
}

// assignParents recomputes the transaction tree over the surviving entries.
func assignParents(entries []*domain.LedgerEntry) {
	if len(entries) == 0 {
		return
	}
	if len(entries) == 1 {
		entries[0].ParentEntryID = nil
		return
	}

	ordered := make([]*domain.LedgerEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	head := ordered[0]
	head.ParentEntryID = nil
	for _, e := range ordered[1:] {
		id := head.ID
		e.ParentEntryID = &id
	}
}
