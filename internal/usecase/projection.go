package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
)

// DocumentProjector recomputes document balances when ledger entries change
// state. Callers invoke Apply exactly once when an entry's effect lands
// (creation as succeeded, or a pending entry succeeding) and Reverse exactly
// once when it is undone (deletion, or a succeeded entry failing).
type DocumentProjector struct {
	docRepo DocumentRepository
}

// NewDocumentProjector creates a new DocumentProjector.
func NewDocumentProjector(docRepo DocumentRepository) *DocumentProjector {
	return &DocumentProjector{docRepo: docRepo}
}

// Apply lands the entry's effect on its target document and, when the entry
// draws on a credit note, on the note itself. docs holds the row-locked
// documents for the enclosing transaction.
func (p *DocumentProjector) Apply(
	ctx context.Context,
	tx Transaction,
	docs map[domain.DocumentRef]*domain.Document,
	entry *domain.LedgerEntry,
) error {
	return p.project(ctx, tx, docs, entry, false)
}

// Reverse undoes a previously applied effect.
func (p *DocumentProjector) Reverse(
	ctx context.Context,
	tx Transaction,
	docs map[domain.DocumentRef]*domain.Document,
	entry *domain.LedgerEntry,
) error {
	return p.project(ctx, tx, docs, entry, true)
}

func (p *DocumentProjector) project(
	ctx context.Context,
	tx Transaction,
	docs map[domain.DocumentRef]*domain.Document,
	entry *domain.LedgerEntry,
	reverse bool,
) error {
	if entry.Document != nil {
		paid, credited := entry.DocumentEffect()
		if reverse {
			paid, credited = paid.Neg(), credited.Neg()
		}
		if err := p.adjust(ctx, tx, docs, *entry.Document, paid, credited); err != nil {
			return err
		}
	}

	if entry.CreditNoteID != nil {
		consumed := entry.CreditNoteEffect()
		if reverse {
			consumed = consumed.Neg()
		}
		ref := domain.DocumentRef{Type: domain.DocumentTypeCreditNote, ID: *entry.CreditNoteID}
		if err := p.adjust(ctx, tx, docs, ref, decimal.Zero, consumed); err != nil {
			return err
		}
	}

	return nil
}

func (p *DocumentProjector) adjust(
	ctx context.Context,
	tx Transaction,
	docs map[domain.DocumentRef]*domain.Document,
	ref domain.DocumentRef,
	paid, credited decimal.Decimal,
) error {
	doc, ok := docs[ref]
	if !ok {
		return fmt.Errorf("%w: %s %s", domain.ErrDocumentNotFound, ref.Type, ref.ID)
	}

	doc.AmountPaid = doc.AmountPaid.Add(paid)
	doc.AmountCredited = doc.AmountCredited.Add(credited)
	if doc.AmountPaid.Add(doc.AmountCredited).GreaterThan(doc.Total) {
		return fmt.Errorf("%w: %s %s", domain.ErrOverAppliedDocument, ref.Type, ref.ID)
	}
	doc.Recompute()

	return p.docRepo.UpdateTotals(ctx, tx, doc)
}
