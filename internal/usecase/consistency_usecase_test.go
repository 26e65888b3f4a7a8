package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
	"github.com/openbill/arledger/internal/usecase"
	"github.com/openbill/arledger/internal/usecase/mocks"
)

func TestConsistencyCheckPayment(t *testing.T) {
	paymentRepo := mocks.NewMockPaymentRepository()
	entryRepo := mocks.NewMockEntryRepository()
	creditRepo := mocks.NewMockCreditRepository()
	customerRepo := mocks.NewMockCustomerRepository()
	uc := usecase.NewConsistencyUseCase(paymentRepo, entryRepo, creditRepo, customerRepo)

	ctx := context.Background()
	tx := &mocks.MockTransaction{}
	now := time.Now().UTC()

	payment := &domain.Payment{
		ID:         "pay-1",
		CustomerID: custID("cust-1"),
		Currency:   "USD",
		Amount:     decimal.NewFromInt(100),
		Balance:    decimal.NewFromInt(40),
	}
	_ = paymentRepo.Create(ctx, tx, payment)
	_ = entryRepo.Create(ctx, tx, &domain.LedgerEntry{
		ID: "entry-1", CustomerID: "cust-1", PaymentID: &payment.ID, Currency: "USD",
		Amount: decimal.NewFromInt(60), Kind: domain.EntryKindPayment,
		Status: domain.EntryStatusSucceeded, Document: invoiceRef("inv-1"), CreatedAt: now,
	})

	result, err := uc.CheckPayment(ctx, "pay-1")
	if err != nil {
		t.Fatalf("CheckPayment: %v", err)
	}
	if !result.Consistent {
		t.Errorf("payment flagged inconsistent: %+v", result.Problems)
	}
	if !result.Difference.IsZero() {
		t.Errorf("difference = %s, want 0", result.Difference)
	}

	// Drift the persisted balance and check again.
	payment.Balance = decimal.NewFromInt(99)
	_ = paymentRepo.Update(ctx, tx, payment)

	result, err = uc.CheckPayment(ctx, "pay-1")
	if err != nil {
		t.Fatalf("CheckPayment: %v", err)
	}
	if result.Consistent {
		t.Error("drifted payment passed the check")
	}
	if !result.Difference.Equal(decimal.NewFromInt(59)) {
		t.Errorf("difference = %s, want 59", result.Difference)
	}
}

func TestConsistencyCheckCustomerCredit(t *testing.T) {
	paymentRepo := mocks.NewMockPaymentRepository()
	entryRepo := mocks.NewMockEntryRepository()
	creditRepo := mocks.NewMockCreditRepository()
	customerRepo := mocks.NewMockCustomerRepository()
	uc := usecase.NewConsistencyUseCase(paymentRepo, entryRepo, creditRepo, customerRepo)

	ctx := context.Background()
	tx := &mocks.MockTransaction{}
	t1 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	customerRepo.Seed(&domain.Customer{ID: "cust-1", Currency: "USD", CreditBalance: decimal.NewFromInt(70)})
	_ = creditRepo.Insert(ctx, tx, &domain.CreditBalanceEntry{
		ID: "cb-1", CustomerID: "cust-1", EntryID: "entry-1",
		Amount: decimal.NewFromInt(100), RunningBalance: decimal.NewFromInt(100), Timestamp: t1,
	})
	_ = creditRepo.Insert(ctx, tx, &domain.CreditBalanceEntry{
		ID: "cb-2", CustomerID: "cust-1", EntryID: "entry-2",
		Amount: decimal.NewFromInt(-30), RunningBalance: decimal.NewFromInt(70), Timestamp: t1.Add(time.Hour),
	})

	problems, err := uc.CheckCustomerCredit(ctx, "cust-1")
	if err != nil {
		t.Fatalf("CheckCustomerCredit: %v", err)
	}
	if len(problems) != 0 {
		t.Errorf("problems = %v, want none", problems)
	}

	// Break the chain.
	_ = creditRepo.UpdateAmount(ctx, tx, "cb-2", decimal.NewFromInt(-50))
	problems, err = uc.CheckCustomerCredit(ctx, "cust-1")
	if err != nil {
		t.Fatalf("CheckCustomerCredit: %v", err)
	}
	if len(problems) == 0 {
		t.Error("broken running balance chain passed the check")
	}
}

func TestConsistencyGenerateReport(t *testing.T) {
	paymentRepo := mocks.NewMockPaymentRepository()
	entryRepo := mocks.NewMockEntryRepository()
	creditRepo := mocks.NewMockCreditRepository()
	customerRepo := mocks.NewMockCustomerRepository()
	uc := usecase.NewConsistencyUseCase(paymentRepo, entryRepo, creditRepo, customerRepo)

	ctx := context.Background()
	tx := &mocks.MockTransaction{}

	customerRepo.Seed(&domain.Customer{ID: "cust-1", Currency: "USD"})
	_ = paymentRepo.Create(ctx, tx, &domain.Payment{
		ID: "pay-1", CustomerID: custID("cust-1"), Currency: "USD",
		Amount: decimal.NewFromInt(10), Balance: decimal.NewFromInt(10),
	})

	report, err := uc.GenerateReport(ctx)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if !report.Consistent() {
		t.Errorf("report inconsistent: %+v", report)
	}
	if report.TotalPayments != 1 || report.TotalCustomers != 1 {
		t.Errorf("totals = %d payments, %d customers, want 1 and 1", report.TotalPayments, report.TotalCustomers)
	}
}
