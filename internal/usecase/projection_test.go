package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
	"github.com/openbill/arledger/internal/usecase"
	"github.com/openbill/arledger/internal/usecase/mocks"
)

func lockedDocs(docs ...*domain.Document) map[domain.DocumentRef]*domain.Document {
	m := make(map[domain.DocumentRef]*domain.Document, len(docs))
	for _, d := range docs {
		m[d.Ref()] = d
	}
	return m
}

func TestProjectorAppliesPaymentEntry(t *testing.T) {
	docRepo := mocks.NewMockDocumentRepository()
	projector := usecase.NewDocumentProjector(docRepo)

	ctx := context.Background()
	tx := &mocks.MockTransaction{}
	doc := &domain.Document{
		ID: "inv-1", Type: domain.DocumentTypeInvoice, CustomerID: "cust-1",
		Currency: "USD", Total: decimal.NewFromInt(100),
		Balance: decimal.NewFromInt(100),
	}
	docRepo.Seed(doc)

	entry := &domain.LedgerEntry{
		ID: "entry-1", CustomerID: "cust-1", Currency: "USD",
		Amount: decimal.NewFromInt(60), Kind: domain.EntryKindPayment,
		Status: domain.EntryStatusSucceeded, Document: invoiceRef("inv-1"),
	}

	if err := projector.Apply(ctx, tx, lockedDocs(doc), entry); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if !doc.AmountPaid.Equal(decimal.NewFromInt(60)) {
		t.Errorf("amount paid = %s, want 60", doc.AmountPaid)
	}
	if !doc.Balance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("balance = %s, want 40", doc.Balance)
	}
	if doc.Paid {
		t.Error("partially paid document marked paid")
	}
}

func TestProjectorMarksDocumentPaidWhenSettled(t *testing.T) {
	docRepo := mocks.NewMockDocumentRepository()
	projector := usecase.NewDocumentProjector(docRepo)

	ctx := context.Background()
	tx := &mocks.MockTransaction{}
	doc := &domain.Document{
		ID: "inv-1", Type: domain.DocumentTypeInvoice, CustomerID: "cust-1",
		Currency: "USD", Total: decimal.NewFromInt(100),
		Balance: decimal.NewFromInt(100),
	}
	docRepo.Seed(doc)

	entry := &domain.LedgerEntry{
		ID: "entry-1", CustomerID: "cust-1", Currency: "USD",
		Amount: decimal.NewFromInt(100), Kind: domain.EntryKindPayment,
		Status: domain.EntryStatusSucceeded, Document: invoiceRef("inv-1"),
	}

	if err := projector.Apply(ctx, tx, lockedDocs(doc), entry); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if !doc.Paid || !doc.Closed {
		t.Errorf("settled document not closed: paid=%v closed=%v", doc.Paid, doc.Closed)
	}

	if err := projector.Reverse(ctx, tx, lockedDocs(doc), entry); err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if doc.Paid || !doc.AmountPaid.IsZero() {
		t.Errorf("reverse did not restore document: paid=%v amountPaid=%s", doc.Paid, doc.AmountPaid)
	}
}

func TestProjectorRejectsOverApplication(t *testing.T) {
	docRepo := mocks.NewMockDocumentRepository()
	projector := usecase.NewDocumentProjector(docRepo)

	ctx := context.Background()
	tx := &mocks.MockTransaction{}
	doc := &domain.Document{
		ID: "inv-1", Type: domain.DocumentTypeInvoice, CustomerID: "cust-1",
		Currency: "USD", Total: decimal.NewFromInt(50),
		Balance: decimal.NewFromInt(50),
	}

	entry := &domain.LedgerEntry{
		ID: "entry-1", CustomerID: "cust-1", Currency: "USD",
		Amount: decimal.NewFromInt(60), Kind: domain.EntryKindPayment,
		Status: domain.EntryStatusSucceeded, Document: invoiceRef("inv-1"),
	}

	err := projector.Apply(ctx, tx, lockedDocs(doc), entry)
	if !errors.Is(err, domain.ErrOverAppliedDocument) {
		t.Fatalf("expected ErrOverAppliedDocument, got %v", err)
	}
}

func TestProjectorConsumesCreditNote(t *testing.T) {
	docRepo := mocks.NewMockDocumentRepository()
	projector := usecase.NewDocumentProjector(docRepo)

	ctx := context.Background()
	tx := &mocks.MockTransaction{}
	invoice := &domain.Document{
		ID: "inv-1", Type: domain.DocumentTypeInvoice, CustomerID: "cust-1",
		Currency: "USD", Total: decimal.NewFromInt(100),
		Balance: decimal.NewFromInt(100),
	}
	note := &domain.Document{
		ID: "cn-1", Type: domain.DocumentTypeCreditNote, CustomerID: "cust-1",
		Currency: "USD", Total: decimal.NewFromInt(30),
		Balance: decimal.NewFromInt(30),
	}
	docRepo.Seed(invoice)
	docRepo.Seed(note)

	noteID := "cn-1"
	entry := &domain.LedgerEntry{
		ID: "entry-1", CustomerID: "cust-1", Currency: "USD",
		Amount: decimal.NewFromInt(30), Kind: domain.EntryKindAdjustment,
		Status: domain.EntryStatusSucceeded, Document: invoiceRef("inv-1"),
		CreditNoteID: &noteID,
	}

	if err := projector.Apply(ctx, tx, lockedDocs(invoice, note), entry); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if !invoice.AmountCredited.Equal(decimal.NewFromInt(30)) {
		t.Errorf("invoice credited = %s, want 30", invoice.AmountCredited)
	}
	if !note.AmountCredited.Equal(decimal.NewFromInt(30)) || !note.Paid {
		t.Errorf("credit note not consumed: credited=%s paid=%v", note.AmountCredited, note.Paid)
	}
}

func TestProjectorFailsOnUnlockedDocument(t *testing.T) {
	docRepo := mocks.NewMockDocumentRepository()
	projector := usecase.NewDocumentProjector(docRepo)

	entry := &domain.LedgerEntry{
		ID: "entry-1", CustomerID: "cust-1", Currency: "USD",
		Amount: decimal.NewFromInt(10), Kind: domain.EntryKindPayment,
		Status: domain.EntryStatusSucceeded, Document: invoiceRef("inv-1"),
	}

	err := projector.Apply(context.Background(), &mocks.MockTransaction{}, nil, entry)
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
