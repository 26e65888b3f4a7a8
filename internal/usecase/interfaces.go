package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
)

// PaymentRepository defines data access for payments.
type PaymentRepository interface {
	Create(ctx context.Context, tx Transaction, payment *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Payment, error)
	Update(ctx context.Context, tx Transaction, payment *domain.Payment) error
	Delete(ctx context.Context, tx Transaction, id string) error
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.Payment, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Payment, error)
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	Update(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	Delete(ctx context.Context, tx Transaction, id string) error
	GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.LedgerEntry, error)
	GetByPayment(ctx context.Context, paymentID string) ([]*domain.LedgerEntry, error)
	GetByPaymentForUpdate(ctx context.Context, tx Transaction, paymentID string) ([]*domain.LedgerEntry, error)
	GetByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.LedgerEntry, error)
	UpdateParent(ctx context.Context, tx Transaction, id string, parentID *string, updatedAt time.Time) error
}

// DocumentRepository defines read/write access to receivable documents. The
// ledger only adjusts applied totals and status flags; document creation
// lives elsewhere.
type DocumentRepository interface {
	GetByRef(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error)
	GetByRefForUpdate(ctx context.Context, tx Transaction, ref domain.DocumentRef) (*domain.Document, error)
	UpdateTotals(ctx context.Context, tx Transaction, doc *domain.Document) error
}

// CreditRepository defines data access for credit balance entries.
type CreditRepository interface {
	Insert(ctx context.Context, tx Transaction, entry *domain.CreditBalanceEntry) error
	Latest(ctx context.Context, customerID string) (*domain.CreditBalanceEntry, error)
	LatestForUpdate(ctx context.Context, tx Transaction, customerID string) (*domain.CreditBalanceEntry, error)
	AsOf(ctx context.Context, customerID string, at time.Time) (*domain.CreditBalanceEntry, error)
	GetBySourceEntry(ctx context.Context, tx Transaction, entryID string) (*domain.CreditBalanceEntry, error)
	DeleteBySourceEntry(ctx context.Context, tx Transaction, entryID string) error
	UpdateAmount(ctx context.Context, tx Transaction, id string, amount decimal.Decimal) error
	Rebase(ctx context.Context, tx Transaction, customerID string, from time.Time) (decimal.Decimal, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*domain.CreditBalanceEntry, error)
}

// CustomerRepository defines data access for customer read models.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	UpdateCreditBalance(ctx context.Context, tx Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Customer, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle. Mutation entry points
// run under serializable isolation; conflicts surface as retryable errors.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation when the storage layer reports a
// serialization conflict.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// BalanceCache caches customer credit balances for O(1) reads.
type BalanceCache interface {
	GetBalance(ctx context.Context, customerID string) (decimal.Decimal, bool, error)
	SetBalance(ctx context.Context, customerID string, balance decimal.Decimal, ttl time.Duration) error
	Invalidate(ctx context.Context, customerID string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
