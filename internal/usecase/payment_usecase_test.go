package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
	"github.com/openbill/arledger/internal/usecase"
	"github.com/openbill/arledger/internal/usecase/mocks"
)

type paymentFixture struct {
	uc           *usecase.PaymentUseCase
	creditLedger *usecase.CreditLedgerUseCase
	txManager    *mocks.MockTransactionManager
	idGen        *mocks.MockIDGenerator
	paymentRepo  *mocks.MockPaymentRepository
	entryRepo    *mocks.MockEntryRepository
	docRepo      *mocks.MockDocumentRepository
	creditRepo   *mocks.MockCreditRepository
	customerRepo *mocks.MockCustomerRepository
	outboxRepo   *mocks.MockOutboxRepository
	cache        *mocks.MockBalanceCache
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		txManager:    mocks.NewMockTransactionManager(),
		idGen:        mocks.NewMockIDGenerator(),
		paymentRepo:  mocks.NewMockPaymentRepository(),
		entryRepo:    mocks.NewMockEntryRepository(),
		docRepo:      mocks.NewMockDocumentRepository(),
		creditRepo:   mocks.NewMockCreditRepository(),
		customerRepo: mocks.NewMockCustomerRepository(),
		outboxRepo:   mocks.NewMockOutboxRepository(),
		cache:        mocks.NewMockBalanceCache(),
	}

	f.creditLedger = usecase.NewCreditLedgerUseCase(f.creditRepo, f.customerRepo, f.cache, f.idGen, decimal.Zero)
	projector := usecase.NewDocumentProjector(f.docRepo)

	f.uc = usecase.NewPaymentUseCase(
		f.txManager,
		mocks.NewMockRetrier(),
		f.paymentRepo,
		f.entryRepo,
		f.docRepo,
		f.outboxRepo,
		f.creditLedger,
		projector,
		f.idGen,
		nil,
	)

	f.customerRepo.Seed(&domain.Customer{ID: "cust-1", Currency: "USD"})
	return f
}

// withRecordingEntries rebuilds the use case over an entry repository that
// logs tree-mutating writes in call order.
func (f *paymentFixture) withRecordingEntries() (*usecase.PaymentUseCase, *entryOpLog) {
	rec := &entryOpLog{MockEntryRepository: f.entryRepo}
	uc := usecase.NewPaymentUseCase(
		f.txManager,
		mocks.NewMockRetrier(),
		f.paymentRepo,
		rec,
		f.docRepo,
		f.outboxRepo,
		f.creditLedger,
		usecase.NewDocumentProjector(f.docRepo),
		f.idGen,
		nil,
	)
	return uc, rec
}

type entryOpLog struct {
	*mocks.MockEntryRepository
	ops []string
}

func (r *entryOpLog) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	r.ops = append(r.ops, "delete "+id)
	return r.MockEntryRepository.Delete(ctx, tx, id)
}

func (r *entryOpLog) UpdateParent(ctx context.Context, tx usecase.Transaction, id string, parentID *string, updatedAt time.Time) error {
	r.ops = append(r.ops, "reparent "+id)
	return r.MockEntryRepository.UpdateParent(ctx, tx, id, parentID, updatedAt)
}

func (f *paymentFixture) seedInvoice(id string, total int64) {
	f.docRepo.Seed(invoiceDoc(id, total))
}

func (f *paymentFixture) seedCreditNote(id string, total int64) {
	f.docRepo.Seed(creditNoteDoc(id, total))
}

func (f *paymentFixture) lookupCredit(t *testing.T, customerID string) decimal.Decimal {
	t.Helper()
	balance, err := f.creditLedger.Lookup(context.Background(), customerID, nil)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	return balance
}

func TestPaymentUseCaseCreatePayment(t *testing.T) {
	f := newPaymentFixture()
	f.seedInvoice("inv-1", 60)

	payment, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(100),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(60), Document: invoiceRef("inv-1")},
			{Type: domain.SplitTypeCredit, Amount: decimal.NewFromInt(40)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	if !payment.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", payment.Balance)
	}
	if !payment.Applied() {
		t.Error("payment not fully applied")
	}

	entries, err := f.entryRepo.GetByPayment(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("GetByPayment: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	doc, err := f.docRepo.GetByRef(context.Background(), *invoiceRef("inv-1"))
	if err != nil {
		t.Fatalf("GetByRef: %v", err)
	}
	if !doc.AmountPaid.Equal(decimal.NewFromInt(60)) {
		t.Errorf("invoice paid = %s, want 60", doc.AmountPaid)
	}
	if !doc.Paid {
		t.Error("invoice not marked paid")
	}

	if balance := f.lookupCredit(t, "cust-1"); !balance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("credit balance = %s, want 40", balance)
	}

	if got := len(f.outboxRepo.EventsOfType(domain.EventTypePaymentCreated)); got != 1 {
		t.Errorf("payment.created events = %d, want 1", got)
	}
	if got := len(f.outboxRepo.EventsOfType(domain.EventTypeEntryCreated)); got != 2 {
		t.Errorf("entry.created events = %d, want 2", got)
	}
}

func TestPaymentUseCaseCreateRejectsOverApplication(t *testing.T) {
	f := newPaymentFixture()
	f.seedInvoice("inv-1", 100)

	_, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(50),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(60), Document: invoiceRef("inv-1")},
		},
	})
	if !errors.Is(err, domain.ErrUnderAppliedAfterReduction) {
		t.Errorf("err = %v, want ErrUnderAppliedAfterReduction", err)
	}
}

func TestPaymentUseCaseCreateRequiresCustomerForDocumentSplits(t *testing.T) {
	f := newPaymentFixture()
	f.seedInvoice("inv-1", 60)

	_, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		Currency: "USD",
		Amount:   decimal.NewFromInt(60),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(60), Document: invoiceRef("inv-1")},
		},
	})
	if !errors.Is(err, domain.ErrMissingRequiredReference) {
		t.Errorf("err = %v, want ErrMissingRequiredReference", err)
	}
}

func TestPaymentUseCaseEditIdenticalResubmissionIsNoOp(t *testing.T) {
	f := newPaymentFixture()
	f.seedInvoice("inv-1", 60)

	payment, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(60),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(60), Document: invoiceRef("inv-1")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	entries, _ := f.entryRepo.GetByPayment(context.Background(), payment.ID)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	// Resubmitting the same split by entry ID must write nothing.
	_, err = f.uc.EditPayment(context.Background(), payment.ID, usecase.EditPaymentInput{
		AppliedTo: []domain.SplitInput{
			{EntryID: entries[0].ID, Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(60), Document: invoiceRef("inv-1")},
		},
	})
	if err != nil {
		t.Fatalf("EditPayment: %v", err)
	}

	// Editing with no applied list keeps the current one.
	if _, err := f.uc.EditPayment(context.Background(), payment.ID, usecase.EditPaymentInput{}); err != nil {
		t.Fatalf("EditPayment: %v", err)
	}

	entries, _ = f.entryRepo.GetByPayment(context.Background(), payment.ID)
	if len(entries) != 1 {
		t.Errorf("got %d entries after resubmission, want 1", len(entries))
	}
	if got := len(f.outboxRepo.EventsOfType(domain.EventTypeEntryCreated)); got != 1 {
		t.Errorf("entry.created events = %d, want 1", got)
	}
	if got := len(f.outboxRepo.EventsOfType(domain.EventTypeEntryUpdated)); got != 0 {
		t.Errorf("entry.updated events = %d, want 0", got)
	}
	if got := len(f.outboxRepo.EventsOfType(domain.EventTypePaymentUpdated)); got != 0 {
		t.Errorf("payment.updated events = %d, want 0", got)
	}
}

func TestPaymentUseCaseEditAmountReduction(t *testing.T) {
	f := newPaymentFixture()
	f.seedInvoice("inv-1", 100)

	payment, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(100),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(100), Document: invoiceRef("inv-1")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	entries, _ := f.entryRepo.GetByPayment(context.Background(), payment.ID)

	// Reducing amount and applied list together succeeds.
	amount := decimal.NewFromInt(60)
	updated, err := f.uc.EditPayment(context.Background(), payment.ID, usecase.EditPaymentInput{
		Amount: &amount,
		AppliedTo: []domain.SplitInput{
			{EntryID: entries[0].ID, Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(60), Document: invoiceRef("inv-1")},
		},
	})
	if err != nil {
		t.Fatalf("EditPayment: %v", err)
	}
	if !updated.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", updated.Balance)
	}

	doc, _ := f.docRepo.GetByRef(context.Background(), *invoiceRef("inv-1"))
	if !doc.AmountPaid.Equal(decimal.NewFromInt(60)) {
		t.Errorf("invoice paid = %s, want 60", doc.AmountPaid)
	}
	if doc.Paid {
		t.Error("invoice still marked paid after reduction")
	}

	// Reducing amount below the standing applied list is reported.
	amount = decimal.NewFromInt(40)
	_, err = f.uc.EditPayment(context.Background(), payment.ID, usecase.EditPaymentInput{Amount: &amount})
	if !errors.Is(err, domain.ErrUnderAppliedAfterReduction) {
		t.Errorf("err = %v, want ErrUnderAppliedAfterReduction", err)
	}
}

func TestPaymentUseCaseEditCurrencyLockedWhileApplied(t *testing.T) {
	f := newPaymentFixture()
	f.seedInvoice("inv-1", 60)

	applied, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(60),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(60), Document: invoiceRef("inv-1")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	currency := "EUR"
	_, err = f.uc.EditPayment(context.Background(), applied.ID, usecase.EditPaymentInput{Currency: &currency})
	if !errors.Is(err, domain.ErrCurrencyLockedWhileApplied) {
		t.Errorf("err = %v, want ErrCurrencyLockedWhileApplied", err)
	}

	// An unapplied payment may change currency freely.
	unapplied, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(25),
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	updated, err := f.uc.EditPayment(context.Background(), unapplied.ID, usecase.EditPaymentInput{Currency: &currency})
	if err != nil {
		t.Fatalf("EditPayment: %v", err)
	}
	if updated.Currency != "EUR" {
		t.Errorf("currency = %s, want EUR", updated.Currency)
	}
}

func TestPaymentUseCaseEditVoidedPayment(t *testing.T) {
	f := newPaymentFixture()

	payment, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if _, err := f.uc.VoidPayment(context.Background(), payment.ID); err != nil {
		t.Fatalf("VoidPayment: %v", err)
	}

	amount := decimal.NewFromInt(20)
	_, err = f.uc.EditPayment(context.Background(), payment.ID, usecase.EditPaymentInput{Amount: &amount})
	if !errors.Is(err, domain.ErrAlreadyVoided) {
		t.Errorf("err = %v, want ErrAlreadyVoided", err)
	}
}

func TestPaymentUseCaseVoidReversesEntriesAndCredit(t *testing.T) {
	f := newPaymentFixture()

	payment, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(100),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeCredit, Amount: decimal.NewFromInt(50)},
			{Type: domain.SplitTypeAppliedCredit, Amount: decimal.NewFromInt(50)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if balance := f.lookupCredit(t, "cust-1"); !balance.IsZero() {
		t.Fatalf("credit balance = %s, want 0", balance)
	}

	voided, err := f.uc.VoidPayment(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("VoidPayment: %v", err)
	}
	if !voided.Voided {
		t.Error("payment not marked voided")
	}
	if !voided.Balance.Equal(voided.Amount) {
		t.Errorf("balance = %s, want %s", voided.Balance, voided.Amount)
	}

	// Grant and spend cancel out; point-in-time balance stays zero.
	if balance := f.lookupCredit(t, "cust-1"); !balance.IsZero() {
		t.Errorf("credit balance after void = %s, want 0", balance)
	}

	entries, _ := f.entryRepo.GetByPayment(context.Background(), payment.ID)
	if len(entries) != 4 {
		t.Errorf("got %d entries after void, want 2 splits + 2 reversals", len(entries))
	}

	if _, err := f.uc.VoidPayment(context.Background(), payment.ID); !errors.Is(err, domain.ErrAlreadyVoided) {
		t.Errorf("second void err = %v, want ErrAlreadyVoided", err)
	}
}

func TestPaymentUseCaseVoidBlockedByDependentCredit(t *testing.T) {
	f := newPaymentFixture()

	grantor, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(50),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeCredit, Amount: decimal.NewFromInt(50)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	// Another payment consumes the granted credit.
	_, err = f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(50),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeAppliedCredit, Amount: decimal.NewFromInt(50)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	_, err = f.uc.VoidPayment(context.Background(), grantor.ID)
	if !errors.Is(err, domain.ErrDependentCreditConsumed) {
		t.Errorf("err = %v, want ErrDependentCreditConsumed", err)
	}
}

func TestPaymentUseCaseDeleteRequiresVoid(t *testing.T) {
	f := newPaymentFixture()

	payment, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	if err := f.uc.DeletePayment(context.Background(), payment.ID); !errors.Is(err, domain.ErrNotVoided) {
		t.Errorf("err = %v, want ErrNotVoided", err)
	}
}

func TestPaymentUseCaseDeleteCascades(t *testing.T) {
	f := newPaymentFixture()

	payment, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(50),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeCredit, Amount: decimal.NewFromInt(50)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if _, err := f.uc.VoidPayment(context.Background(), payment.ID); err != nil {
		t.Fatalf("VoidPayment: %v", err)
	}

	if err := f.uc.DeletePayment(context.Background(), payment.ID); err != nil {
		t.Fatalf("DeletePayment: %v", err)
	}

	if _, err := f.uc.GetPayment(context.Background(), payment.ID); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Errorf("err = %v, want ErrPaymentNotFound", err)
	}
	entries, _ := f.entryRepo.GetByPayment(context.Background(), payment.ID)
	if len(entries) != 0 {
		t.Errorf("got %d entries after delete, want 0", len(entries))
	}
	if balance := f.lookupCredit(t, "cust-1"); !balance.IsZero() {
		t.Errorf("credit balance after delete = %s, want 0", balance)
	}
	rows, _ := f.creditRepo.ListByCustomer(context.Background(), "cust-1")
	if len(rows) != 0 {
		t.Errorf("got %d credit rows after delete, want 0", len(rows))
	}
	if got := len(f.outboxRepo.EventsOfType(domain.EventTypePaymentDeleted)); got != 1 {
		t.Errorf("payment.deleted events = %d, want 1", got)
	}
}

func TestPaymentUseCaseCreateCurrencyMismatch(t *testing.T) {
	f := newPaymentFixture()
	doc := invoiceDoc("inv-1", 60)
	doc.Currency = "EUR"
	f.docRepo.Seed(doc)

	_, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(60),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(60), Document: invoiceRef("inv-1")},
		},
	})
	if !errors.Is(err, domain.ErrCurrencyMismatch) {
		t.Errorf("err = %v, want ErrCurrencyMismatch", err)
	}
}

func TestPaymentUseCaseSwapDocumentTargets(t *testing.T) {
	f := newPaymentFixture()
	f.seedInvoice("inv-1", 50)
	f.seedInvoice("inv-2", 50)

	payment, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(50),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(50), Document: invoiceRef("inv-1")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	entries, _ := f.entryRepo.GetByPayment(context.Background(), payment.ID)
	_, err = f.uc.EditPayment(context.Background(), payment.ID, usecase.EditPaymentInput{
		AppliedTo: []domain.SplitInput{
			{EntryID: entries[0].ID, Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(50), Document: invoiceRef("inv-2")},
		},
	})
	if err != nil {
		t.Fatalf("EditPayment: %v", err)
	}

	docA, _ := f.docRepo.GetByRef(context.Background(), *invoiceRef("inv-1"))
	docB, _ := f.docRepo.GetByRef(context.Background(), *invoiceRef("inv-2"))
	if !docA.AmountPaid.IsZero() {
		t.Errorf("inv-1 paid = %s, want 0", docA.AmountPaid)
	}
	if !docB.AmountPaid.Equal(decimal.NewFromInt(50)) {
		t.Errorf("inv-2 paid = %s, want 50", docB.AmountPaid)
	}
}

func TestPaymentUseCaseZeroAmountPaymentSpendsStandingCredit(t *testing.T) {
	f := newPaymentFixture()
	f.seedInvoice("inv-1", 500)
	f.seedInvoice("inv-2", 50)

	funding, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(550),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(500), Document: invoiceRef("inv-1")},
			{Type: domain.SplitTypeCredit, Amount: decimal.NewFromInt(50)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if balance := f.lookupCredit(t, "cust-1"); !balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("credit balance = %s, want 50", balance)
	}

	// The application is funded entirely by standing credit; the payment
	// itself carries no money and is still fully applied.
	spender, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.Zero,
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeAppliedCredit, Amount: decimal.NewFromInt(50), Document: invoiceRef("inv-2")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if !spender.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", spender.Balance)
	}
	if !spender.Applied() {
		t.Error("payment not fully applied")
	}

	doc, err := f.docRepo.GetByRef(context.Background(), *invoiceRef("inv-2"))
	if err != nil {
		t.Fatalf("GetByRef: %v", err)
	}
	if !doc.AmountCredited.Equal(decimal.NewFromInt(50)) {
		t.Errorf("inv-2 credited = %s, want 50", doc.AmountCredited)
	}
	if balance := f.lookupCredit(t, "cust-1"); !balance.IsZero() {
		t.Errorf("credit balance = %s, want 0", balance)
	}

	// Unwinding spender first, then the funding payment, lands back at zero.
	if _, err := f.uc.VoidPayment(context.Background(), spender.ID); err != nil {
		t.Fatalf("VoidPayment spender: %v", err)
	}
	if balance := f.lookupCredit(t, "cust-1"); !balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("credit balance after spender void = %s, want 50", balance)
	}
	if _, err := f.uc.VoidPayment(context.Background(), funding.ID); err != nil {
		t.Fatalf("VoidPayment funding: %v", err)
	}
	if balance := f.lookupCredit(t, "cust-1"); !balance.IsZero() {
		t.Errorf("credit balance after both voids = %s, want 0", balance)
	}
}

func TestPaymentUseCaseEditRepointsSurvivorsBeforeDelete(t *testing.T) {
	f := newPaymentFixture()
	uc, rec := f.withRecordingEntries()
	for i := 1; i <= 3; i++ {
		f.seedInvoice(fmt.Sprintf("inv-%d", i), 30)
	}

	payment, err := uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(90),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(30), Document: invoiceRef("inv-1")},
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(30), Document: invoiceRef("inv-2")},
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(30), Document: invoiceRef("inv-3")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	entries, _ := rec.GetByPayment(context.Background(), payment.ID)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	head := entries[0]

	// Dropping the group head hands the survivors a new parent. The repoints
	// must land before the head row is removed, or the survivors would still
	// reference a deleted row mid-transaction.
	rec.ops = nil
	amount := decimal.NewFromInt(60)
	_, err = uc.EditPayment(context.Background(), payment.ID, usecase.EditPaymentInput{
		Amount: &amount,
		AppliedTo: []domain.SplitInput{
			{EntryID: entries[1].ID, Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(30), Document: invoiceRef("inv-2")},
			{EntryID: entries[2].ID, Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(30), Document: invoiceRef("inv-3")},
		},
	})
	if err != nil {
		t.Fatalf("EditPayment: %v", err)
	}

	deleteAt := -1
	for i, op := range rec.ops {
		if op == "delete "+head.ID {
			deleteAt = i
		}
	}
	if deleteAt == -1 {
		t.Fatalf("head entry %s never deleted, ops = %v", head.ID, rec.ops)
	}
	for _, survivor := range entries[1:] {
		repointAt := -1
		for i, op := range rec.ops {
			if op == "reparent "+survivor.ID {
				repointAt = i
			}
		}
		if repointAt == -1 || repointAt > deleteAt {
			t.Errorf("entry %s repointed at op %d, head deleted at op %d, ops = %v", survivor.ID, repointAt, deleteAt, rec.ops)
		}
	}

	after, _ := rec.GetByPayment(context.Background(), payment.ID)
	if len(after) != 2 {
		t.Fatalf("got %d entries after edit, want 2", len(after))
	}
	if after[0].ParentEntryID != nil {
		t.Errorf("new head parent = %s, want none", *after[0].ParentEntryID)
	}
	if after[1].ParentEntryID == nil || *after[1].ParentEntryID != after[0].ID {
		t.Error("second entry does not point at the new head")
	}
}

func TestPaymentUseCaseDeleteRemovesChildRowsFirst(t *testing.T) {
	f := newPaymentFixture()
	uc, rec := f.withRecordingEntries()
	f.seedInvoice("inv-1", 30)
	f.seedInvoice("inv-2", 30)

	payment, err := uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(60),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(30), Document: invoiceRef("inv-1")},
			{Type: domain.SplitTypeInvoice, Amount: decimal.NewFromInt(30), Document: invoiceRef("inv-2")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if _, err := uc.VoidPayment(context.Background(), payment.ID); err != nil {
		t.Fatalf("VoidPayment: %v", err)
	}

	entries, _ := rec.GetByPayment(context.Background(), payment.ID)
	if len(entries) != 4 {
		t.Fatalf("got %d entries after void, want 2 splits + 2 reversals", len(entries))
	}

	rec.ops = nil
	if err := uc.DeletePayment(context.Background(), payment.ID); err != nil {
		t.Fatalf("DeletePayment: %v", err)
	}
	if len(rec.ops) != 4 {
		t.Fatalf("got %d delete ops, want 4: %v", len(rec.ops), rec.ops)
	}

	// Every row referencing a parent must be removed before that parent.
	deletedAt := make(map[string]int, len(rec.ops))
	for i, op := range rec.ops {
		deletedAt[strings.TrimPrefix(op, "delete ")] = i
	}
	for _, e := range entries {
		if e.ParentEntryID == nil {
			continue
		}
		if deletedAt[e.ID] > deletedAt[*e.ParentEntryID] {
			t.Errorf("entry %s deleted after its parent %s, ops = %v", e.ID, *e.ParentEntryID, rec.ops)
		}
	}
}

func TestPaymentUseCaseDropsCachedBalanceAfterCommit(t *testing.T) {
	f := newPaymentFixture()

	var ops []string
	f.txManager.BeginFunc = func(ctx context.Context) (usecase.Transaction, error) {
		return &mocks.MockTransaction{CommitFunc: func(ctx context.Context) error {
			ops = append(ops, "commit")
			return nil
		}}, nil
	}
	f.cache.InvalidateFunc = func(ctx context.Context, customerID string) error {
		ops = append(ops, "invalidate "+customerID)
		return nil
	}

	_, err := f.uc.CreatePayment(context.Background(), usecase.CreatePaymentInput{
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(50),
		AppliedTo: []domain.SplitInput{
			{Type: domain.SplitTypeCredit, Amount: decimal.NewFromInt(50)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	// Dropped inside the transaction, a concurrent read could refill the
	// cache with the pre-commit balance and serve it for a full TTL.
	if len(ops) != 2 || ops[0] != "commit" || ops[1] != "invalidate cust-1" {
		t.Errorf("ops = %v, want the cached balance dropped only after commit", ops)
	}
}
