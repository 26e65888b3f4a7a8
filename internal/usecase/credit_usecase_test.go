package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
	"github.com/openbill/arledger/internal/usecase"
	"github.com/openbill/arledger/internal/usecase/mocks"
)

type creditFixture struct {
	uc           *usecase.CreditLedgerUseCase
	creditRepo   *mocks.MockCreditRepository
	customerRepo *mocks.MockCustomerRepository
	cache        *mocks.MockBalanceCache
	tx           *mocks.MockTransaction
}

func newCreditFixture() *creditFixture {
	f := &creditFixture{
		creditRepo:   mocks.NewMockCreditRepository(),
		customerRepo: mocks.NewMockCustomerRepository(),
		cache:        mocks.NewMockBalanceCache(),
		tx:           &mocks.MockTransaction{},
	}
	f.customerRepo.Seed(&domain.Customer{ID: "cust-1", Currency: "USD"})
	f.uc = usecase.NewCreditLedgerUseCase(f.creditRepo, f.customerRepo, f.cache, mocks.NewMockIDGenerator(), decimal.Zero)
	return f
}

func TestCreditLedgerPostAndLookup(t *testing.T) {
	f := newCreditFixture()
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(100), "entry-1", t1); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(-30), "entry-2", t2); err != nil {
		t.Fatalf("Post: %v", err)
	}

	balance, err := f.uc.Lookup(ctx, "cust-1", nil)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(70)) {
		t.Errorf("latest balance = %s, want 70", balance)
	}

	// As of a point between the two movements only the grant counts.
	at := t1.Add(30 * time.Minute)
	balance, err = f.uc.Lookup(ctx, "cust-1", &at)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("as-of balance = %s, want 100", balance)
	}

	// Before any history the balance reads zero.
	at = t1.Add(-time.Minute)
	balance, err = f.uc.Lookup(ctx, "cust-1", &at)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("pre-history balance = %s, want 0", balance)
	}
}

func TestCreditLedgerLookupUnknownCustomerIsZero(t *testing.T) {
	f := newCreditFixture()

	balance, err := f.uc.Lookup(context.Background(), "cust-unknown", nil)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("balance = %s, want 0", balance)
	}
}

func TestCreditLedgerPostBlocksOverspend(t *testing.T) {
	f := newCreditFixture()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(-10), "entry-1", now)
	if !errors.Is(err, domain.ErrOverspendBlocked) {
		t.Errorf("err = %v, want ErrOverspendBlocked", err)
	}

	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(10), "entry-2", now); err != nil {
		t.Fatalf("Post: %v", err)
	}
	_, err = f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(-15), "entry-3", now.Add(time.Second))
	if !errors.Is(err, domain.ErrOverspendBlocked) {
		t.Errorf("err = %v, want ErrOverspendBlocked", err)
	}
}

func TestCreditLedgerRemoveBlockedByDependentSpend(t *testing.T) {
	f := newCreditFixture()
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(100), "entry-1", t1); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(-30), "entry-2", t1.Add(time.Hour)); err != nil {
		t.Fatalf("Post: %v", err)
	}

	// Removing the grant a later spend depends on must be blocked.
	err := f.uc.Remove(ctx, f.tx, "cust-1", "entry-1")
	if !errors.Is(err, domain.ErrOverspendBlocked) {
		t.Errorf("err = %v, want ErrOverspendBlocked", err)
	}
}

func TestCreditLedgerRemoveRebasesHistory(t *testing.T) {
	f := newCreditFixture()
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(100), "entry-1", t1); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(-30), "entry-2", t2); err != nil {
		t.Fatalf("Post: %v", err)
	}

	if err := f.uc.Remove(ctx, f.tx, "cust-1", "entry-2"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	balance, err := f.uc.Lookup(ctx, "cust-1", nil)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance = %s, want 100", balance)
	}
}

func TestCreditLedgerRepriceRebasesHistory(t *testing.T) {
	f := newCreditFixture()
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(100), "entry-1", t1); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(-30), "entry-2", t2); err != nil {
		t.Fatalf("Post: %v", err)
	}

	if err := f.uc.Reprice(ctx, f.tx, "cust-1", "entry-2", decimal.NewFromInt(-50)); err != nil {
		t.Fatalf("Reprice: %v", err)
	}

	balance, err := f.uc.Lookup(ctx, "cust-1", nil)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("balance = %s, want 50", balance)
	}

	customer, _ := f.customerRepo.GetByID(ctx, "cust-1")
	if !customer.CreditBalance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("customer balance = %s, want 50", customer.CreditBalance)
	}

	err = f.uc.Reprice(ctx, f.tx, "cust-1", "entry-404", decimal.NewFromInt(-1))
	if !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("err = %v, want ErrEntryNotFound", err)
	}
}

func TestCreditLedgerPurgeRemovesHistoryWithoutFloorCheck(t *testing.T) {
	f := newCreditFixture()
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(50), "entry-1", t1); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(-50), "entry-2", t1.Add(time.Hour)); err != nil {
		t.Fatalf("Post: %v", err)
	}

	if err := f.uc.Purge(ctx, f.tx, "cust-1", []string{"entry-1", "entry-2", "entry-404"}); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	rows, _ := f.creditRepo.ListByCustomer(ctx, "cust-1")
	if len(rows) != 0 {
		t.Errorf("got %d rows after purge, want 0", len(rows))
	}
	balance, err := f.uc.Lookup(ctx, "cust-1", nil)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("balance = %s, want 0", balance)
	}
}

func TestCreditLedgerLookupServesCache(t *testing.T) {
	f := newCreditFixture()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(40), "entry-1", now); err != nil {
		t.Fatalf("Post: %v", err)
	}

	// First lookup fills the cache.
	if _, err := f.uc.Lookup(ctx, "cust-1", nil); err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	calls := 0
	f.creditRepo.LatestFunc = func(ctx context.Context, customerID string) (*domain.CreditBalanceEntry, error) {
		calls++
		return nil, nil
	}
	balance, err := f.uc.Lookup(ctx, "cust-1", nil)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("balance = %s, want 40", balance)
	}
	if calls != 0 {
		t.Errorf("Latest called %d times, want cache hit", calls)
	}
	f.creditRepo.LatestFunc = nil

	// A write leaves the cache alone while its transaction is open; the
	// cached value keeps serving until the post-commit drop.
	if _, err := f.uc.Post(ctx, f.tx, "cust-1", decimal.NewFromInt(10), "entry-2", now.Add(time.Second)); err != nil {
		t.Fatalf("Post: %v", err)
	}
	balance, err = f.uc.Lookup(ctx, "cust-1", nil)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("balance = %s, want cached 40 before invalidation", balance)
	}

	f.uc.InvalidateCached(ctx, "cust-1")
	balance, err = f.uc.Lookup(ctx, "cust-1", nil)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("balance = %s, want 50 after invalidation", balance)
	}
}
