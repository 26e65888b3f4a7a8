package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
	"github.com/openbill/arledger/internal/usecase"
)

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	CreateFunc           func(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error
	GetByIDFunc          func(ctx context.Context, id string) (*domain.Payment, error)
	GetByIDForUpdateFunc func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Payment, error)
	UpdateFunc           func(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error
	DeleteFunc           func(ctx context.Context, tx usecase.Transaction, id string) error
	ListByCustomerFunc   func(ctx context.Context, customerID string, limit, offset int) ([]*domain.Payment, error)
	ListFunc             func(ctx context.Context, limit, offset int) ([]*domain.Payment, error)
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *payment
	m.payments[payment.ID] = &cp
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.payments[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *MockPaymentRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Payment, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockPaymentRepository) Update(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	cp := *payment
	m.payments[payment.ID] = &cp
	return nil
}

func (m *MockPaymentRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[id]; !ok {
		return domain.ErrPaymentNotFound
	}
	delete(m.payments, id)
	return nil
}

func (m *MockPaymentRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.Payment, error) {
	if m.ListByCustomerFunc != nil {
		return m.ListByCustomerFunc(ctx, customerID, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var payments []*domain.Payment
	for _, p := range m.payments {
		if p.CustomerID != nil && *p.CustomerID == customerID {
			cp := *p
			payments = append(payments, &cp)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID < payments[j].ID })
	return paginatePayments(payments, limit, offset), nil
}

func (m *MockPaymentRepository) List(ctx context.Context, limit, offset int) ([]*domain.Payment, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var payments []*domain.Payment
	for _, p := range m.payments {
		cp := *p
		payments = append(payments, &cp)
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID < payments[j].ID })
	return paginatePayments(payments, limit, offset), nil
}

func paginatePayments(payments []*domain.Payment, limit, offset int) []*domain.Payment {
	if offset >= len(payments) {
		return nil
	}
	payments = payments[offset:]
	if limit > 0 && limit < len(payments) {
		payments = payments[:limit]
	}
	return payments
}

// MockEntryRepository is a mock implementation of EntryRepository.
type MockEntryRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.LedgerEntry

	CreateFunc                func(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error
	UpdateFunc                func(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error
	DeleteFunc                func(ctx context.Context, tx usecase.Transaction, id string) error
	GetByIDFunc               func(ctx context.Context, id string) (*domain.LedgerEntry, error)
	GetByIDForUpdateFunc      func(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerEntry, error)
	GetByPaymentFunc          func(ctx context.Context, paymentID string) ([]*domain.LedgerEntry, error)
	GetByPaymentForUpdateFunc func(ctx context.Context, tx usecase.Transaction, paymentID string) ([]*domain.LedgerEntry, error)
	GetByCustomerFunc         func(ctx context.Context, customerID string, limit, offset int) ([]*domain.LedgerEntry, error)
	UpdateParentFunc          func(ctx context.Context, tx usecase.Transaction, id string, parentID *string, updatedAt time.Time) error
}

func NewMockEntryRepository() *MockEntryRepository {
	return &MockEntryRepository{
		entries: make(map[string]*domain.LedgerEntry),
	}
}

func (m *MockEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries[entry.ID] = &cp
	return nil
}

func (m *MockEntryRepository) Update(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.ID]; !ok {
		return domain.ErrEntryNotFound
	}
	cp := *entry
	m.entries[entry.ID] = &cp
	return nil
}

func (m *MockEntryRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return domain.ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *MockEntryRepository) GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, domain.ErrEntryNotFound
}

func (m *MockEntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerEntry, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockEntryRepository) GetByPayment(ctx context.Context, paymentID string) ([]*domain.LedgerEntry, error) {
	if m.GetByPaymentFunc != nil {
		return m.GetByPaymentFunc(ctx, paymentID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*domain.LedgerEntry
	for _, e := range m.entries {
		if e.PaymentID != nil && *e.PaymentID == paymentID {
			cp := *e
			entries = append(entries, &cp)
		}
	}
	sortEntries(entries)
	return entries, nil
}

func (m *MockEntryRepository) GetByPaymentForUpdate(ctx context.Context, tx usecase.Transaction, paymentID string) ([]*domain.LedgerEntry, error) {
	if m.GetByPaymentForUpdateFunc != nil {
		return m.GetByPaymentForUpdateFunc(ctx, tx, paymentID)
	}
	return m.GetByPayment(ctx, paymentID)
}

func (m *MockEntryRepository) GetByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	if m.GetByCustomerFunc != nil {
		return m.GetByCustomerFunc(ctx, customerID, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*domain.LedgerEntry
	for _, e := range m.entries {
		if e.CustomerID == customerID {
			cp := *e
			entries = append(entries, &cp)
		}
	}
	sortEntries(entries)
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *MockEntryRepository) UpdateParent(ctx context.Context, tx usecase.Transaction, id string, parentID *string, updatedAt time.Time) error {
	if m.UpdateParentFunc != nil {
		return m.UpdateParentFunc(ctx, tx, id, parentID, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.ErrEntryNotFound
	}
	e.ParentEntryID = parentID
	e.UpdatedAt = updatedAt
	return nil
}

func sortEntries(entries []*domain.LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

// MockDocumentRepository is a mock implementation of DocumentRepository.
type MockDocumentRepository struct {
	mu   sync.RWMutex
	docs map[domain.DocumentRef]*domain.Document

	GetByRefFunc          func(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error)
	GetByRefForUpdateFunc func(ctx context.Context, tx usecase.Transaction, ref domain.DocumentRef) (*domain.Document, error)
	UpdateTotalsFunc      func(ctx context.Context, tx usecase.Transaction, doc *domain.Document) error
}

func NewMockDocumentRepository() *MockDocumentRepository {
	return &MockDocumentRepository{
		docs: make(map[domain.DocumentRef]*domain.Document),
	}
}

// Seed stores a document for test setup.
func (m *MockDocumentRepository) Seed(doc *domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.Ref()] = &cp
}

func (m *MockDocumentRepository) GetByRef(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	if m.GetByRefFunc != nil {
		return m.GetByRefFunc(ctx, ref)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if doc, ok := m.docs[ref]; ok {
		cp := *doc
		return &cp, nil
	}
	return nil, domain.ErrDocumentNotFound
}

func (m *MockDocumentRepository) GetByRefForUpdate(ctx context.Context, tx usecase.Transaction, ref domain.DocumentRef) (*domain.Document, error) {
	if m.GetByRefForUpdateFunc != nil {
		return m.GetByRefForUpdateFunc(ctx, tx, ref)
	}
	return m.GetByRef(ctx, ref)
}

func (m *MockDocumentRepository) UpdateTotals(ctx context.Context, tx usecase.Transaction, doc *domain.Document) error {
	if m.UpdateTotalsFunc != nil {
		return m.UpdateTotalsFunc(ctx, tx, doc)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.Ref()]; !ok {
		return domain.ErrDocumentNotFound
	}
	cp := *doc
	m.docs[doc.Ref()] = &cp
	return nil
}

// MockCreditRepository is a mock implementation of CreditRepository. Rows
// keep insertion order as the tiebreak for equal timestamps, mirroring the
// (timestamp, id) ordering of the real table.
type MockCreditRepository struct {
	mu   sync.RWMutex
	rows []*domain.CreditBalanceEntry

	InsertFunc              func(ctx context.Context, tx usecase.Transaction, entry *domain.CreditBalanceEntry) error
	LatestFunc              func(ctx context.Context, customerID string) (*domain.CreditBalanceEntry, error)
	LatestForUpdateFunc     func(ctx context.Context, tx usecase.Transaction, customerID string) (*domain.CreditBalanceEntry, error)
	AsOfFunc                func(ctx context.Context, customerID string, at time.Time) (*domain.CreditBalanceEntry, error)
	GetBySourceEntryFunc    func(ctx context.Context, tx usecase.Transaction, entryID string) (*domain.CreditBalanceEntry, error)
	DeleteBySourceEntryFunc func(ctx context.Context, tx usecase.Transaction, entryID string) error
	UpdateAmountFunc        func(ctx context.Context, tx usecase.Transaction, id string, amount decimal.Decimal) error
	RebaseFunc              func(ctx context.Context, tx usecase.Transaction, customerID string, from time.Time) (decimal.Decimal, error)
	ListByCustomerFunc      func(ctx context.Context, customerID string) ([]*domain.CreditBalanceEntry, error)
}

func NewMockCreditRepository() *MockCreditRepository {
	return &MockCreditRepository{}
}

func (m *MockCreditRepository) Insert(ctx context.Context, tx usecase.Transaction, entry *domain.CreditBalanceEntry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MockCreditRepository) customerRows(customerID string) []*domain.CreditBalanceEntry {
	var rows []*domain.CreditBalanceEntry
	for _, row := range m.rows {
		if row.CustomerID == customerID {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	return rows
}

func (m *MockCreditRepository) Latest(ctx context.Context, customerID string) (*domain.CreditBalanceEntry, error) {
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx, customerID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.customerRows(customerID)
	if len(rows) == 0 {
		return nil, nil
	}
	cp := *rows[len(rows)-1]
	return &cp, nil
}

func (m *MockCreditRepository) LatestForUpdate(ctx context.Context, tx usecase.Transaction, customerID string) (*domain.CreditBalanceEntry, error) {
	if m.LatestForUpdateFunc != nil {
		return m.LatestForUpdateFunc(ctx, tx, customerID)
	}
	return m.Latest(ctx, customerID)
}

func (m *MockCreditRepository) AsOf(ctx context.Context, customerID string, at time.Time) (*domain.CreditBalanceEntry, error) {
	if m.AsOfFunc != nil {
		return m.AsOfFunc(ctx, customerID, at)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.customerRows(customerID)
	var found *domain.CreditBalanceEntry
	for _, row := range rows {
		if row.Timestamp.After(at) {
			break
		}
		found = row
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (m *MockCreditRepository) GetBySourceEntry(ctx context.Context, tx usecase.Transaction, entryID string) (*domain.CreditBalanceEntry, error) {
	if m.GetBySourceEntryFunc != nil {
		return m.GetBySourceEntryFunc(ctx, tx, entryID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.rows {
		if row.EntryID == entryID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockCreditRepository) DeleteBySourceEntry(ctx context.Context, tx usecase.Transaction, entryID string) error {
	if m.DeleteBySourceEntryFunc != nil {
		return m.DeleteBySourceEntryFunc(ctx, tx, entryID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, row := range m.rows {
		if row.EntryID != entryID {
			kept = append(kept, row)
		}
	}
	m.rows = kept
	return nil
}

func (m *MockCreditRepository) UpdateAmount(ctx context.Context, tx usecase.Transaction, id string, amount decimal.Decimal) error {
	if m.UpdateAmountFunc != nil {
		return m.UpdateAmountFunc(ctx, tx, id, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id {
			row.Amount = amount
			return nil
		}
	}
	return domain.ErrEntryNotFound
}

func (m *MockCreditRepository) Rebase(ctx context.Context, tx usecase.Transaction, customerID string, from time.Time) (decimal.Decimal, error) {
	if m.RebaseFunc != nil {
		return m.RebaseFunc(ctx, tx, customerID, from)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.customerRows(customerID)
	running := decimal.Zero
	for _, row := range rows {
		running = running.Add(row.Amount)
		if !row.Timestamp.Before(from) {
			row.RunningBalance = running
		}
	}
	return running, nil
}

func (m *MockCreditRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domain.CreditBalanceEntry, error) {
	if m.ListByCustomerFunc != nil {
		return m.ListByCustomerFunc(ctx, customerID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.customerRows(customerID)
	out := make([]*domain.CreditBalanceEntry, 0, len(rows))
	for _, row := range rows {
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

// MockCustomerRepository is a mock implementation of CustomerRepository.
type MockCustomerRepository struct {
	mu        sync.RWMutex
	customers map[string]*domain.Customer

	GetByIDFunc             func(ctx context.Context, id string) (*domain.Customer, error)
	UpdateCreditBalanceFunc func(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
	ListFunc                func(ctx context.Context, limit, offset int) ([]*domain.Customer, error)
}

func NewMockCustomerRepository() *MockCustomerRepository {
	return &MockCustomerRepository{
		customers: make(map[string]*domain.Customer),
	}
}

// Seed stores a customer for test setup.
func (m *MockCustomerRepository) Seed(customer *domain.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *customer
	m.customers[customer.ID] = &cp
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.customers[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrCustomerNotFound
}

func (m *MockCustomerRepository) UpdateCreditBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error {
	if m.UpdateCreditBalanceFunc != nil {
		return m.UpdateCreditBalanceFunc(ctx, tx, id, balance, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.customers[id]; ok {
		c.CreditBalance = balance
		c.UpdatedAt = updatedAt
	}
	return nil
}

func (m *MockCustomerRepository) List(ctx context.Context, limit, offset int) ([]*domain.Customer, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var customers []*domain.Customer
	for _, c := range m.customers {
		cp := *c
		customers = append(customers, &cp)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })
	if offset >= len(customers) {
		return nil, nil
	}
	customers = customers[offset:]
	if limit > 0 && limit < len(customers) {
		customers = customers[:limit]
	}
	return customers, nil
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent

	CreateFunc          func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
	GetUnpublishedFunc  func(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublishedFunc   func(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregateFunc  func(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublishedFunc func(ctx context.Context, before time.Time) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

// Events returns every recorded event, in creation order.
func (m *MockOutboxRepository) Events() []*domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.OutboxEvent, len(m.events))
	copy(out, m.events)
	return out
}

// EventsOfType returns recorded events matching the given event type.
func (m *MockOutboxRepository) EventsOfType(eventType string) []*domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.events = append(m.events, &cp)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if m.GetUnpublishedFunc != nil {
		return m.GetUnpublishedFunc(ctx, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if e.PublishedAt == nil {
			cp := *e
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id, publishedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			at := publishedAt
			e.PublishedAt = &at
			return nil
		}
	}
	return nil
}

func (m *MockOutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	if m.GetByAggregateFunc != nil {
		return m.GetByAggregateFunc(ctx, aggregateType, aggregateID, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			cp := *e
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	if m.DeletePublishedFunc != nil {
		return m.DeletePublishedFunc(ctx, before)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, e := range m.events {
		if e.PublishedAt == nil || !e.PublishedAt.Before(before) {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockRetrier is a mock implementation of Retrier. It runs the operation
// once without retrying.
type MockRetrier struct {
	RetryFunc func(ctx context.Context, operation func() error) error
}

func NewMockRetrier() *MockRetrier {
	return &MockRetrier{}
}

func (m *MockRetrier) Retry(ctx context.Context, operation func() error) error {
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, operation)
	}
	return operation()
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("mock-id-%04d", m.counter)
}

// MockBalanceCache is a mock implementation of BalanceCache.
type MockBalanceCache struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal

	GetBalanceFunc func(ctx context.Context, customerID string) (decimal.Decimal, bool, error)
	SetBalanceFunc func(ctx context.Context, customerID string, balance decimal.Decimal, ttl time.Duration) error
	InvalidateFunc func(ctx context.Context, customerID string) error
}

func NewMockBalanceCache() *MockBalanceCache {
	return &MockBalanceCache{
		balances: make(map[string]decimal.Decimal),
	}
}

func (m *MockBalanceCache) GetBalance(ctx context.Context, customerID string) (decimal.Decimal, bool, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc(ctx, customerID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.balances[customerID]; ok {
		return b, true, nil
	}
	return decimal.Zero, false, nil
}

func (m *MockBalanceCache) SetBalance(ctx context.Context, customerID string, balance decimal.Decimal, ttl time.Duration) error {
	if m.SetBalanceFunc != nil {
		return m.SetBalanceFunc(ctx, customerID, balance, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[customerID] = balance
	return nil
}

func (m *MockBalanceCache) Invalidate(ctx context.Context, customerID string) error {
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, customerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.balances, customerID)
	return nil
}
