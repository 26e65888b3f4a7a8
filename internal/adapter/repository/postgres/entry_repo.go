package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openbill/arledger/internal/domain"
	"github.com/openbill/arledger/internal/usecase"
)

const entryColumns = `id, customer_id, payment_id, currency, amount, kind, status,
	document_type, document_id, credit_note_id, parent_entry_id,
	gateway, gateway_id, metadata, created_at, updated_at`

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	pool *pgxpool.Pool
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

// Create creates a new ledger entry within a transaction.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	pgxTx := tx.(*Tx).PgxTx()

	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}

	docType, docID := splitDocumentRef(entry.Document)

	_, err = pgxTx.Exec(ctx, `
		INSERT INTO ledger_entries (id, customer_id, payment_id, currency, amount, kind, status,
			document_type, document_id, credit_note_id, parent_entry_id,
			gateway, gateway_id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		entry.ID,
		entry.CustomerID,
		entry.PaymentID,
		entry.Currency,
		decimalToNumeric(entry.Amount),
		string(entry.Kind),
		string(entry.Status),
		docType,
		docID,
		entry.CreditNoteID,
		entry.ParentEntryID,
		entry.Gateway,
		entry.GatewayID,
		metadata,
		timeToPgTimestamptz(entry.CreatedAt),
		timeToPgTimestamptz(entry.UpdatedAt),
	)

	return err
}

// Update updates a ledger entry within a transaction.
func (r *EntryRepository) Update(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	pgxTx := tx.(*Tx).PgxTx()

	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}

	docType, docID := splitDocumentRef(entry.Document)

	tag, err := pgxTx.Exec(ctx, `
		UPDATE ledger_entries
		SET currency = $2, amount = $3, kind = $4, status = $5,
			document_type = $6, document_id = $7, credit_note_id = $8, parent_entry_id = $9,
			gateway = $10, gateway_id = $11, metadata = $12, updated_at = $13
		WHERE id = $1`,
		entry.ID,
		entry.Currency,
		decimalToNumeric(entry.Amount),
		string(entry.Kind),
		string(entry.Status),
		docType,
		docID,
		entry.CreditNoteID,
		entry.ParentEntryID,
		entry.Gateway,
		entry.GatewayID,
		metadata,
		timeToPgTimestamptz(entry.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// Delete removes a ledger entry within a transaction.
func (r *EntryRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// GetByID retrieves a ledger entry by ID.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)

	return scanEntry(row)
}

// GetByIDForUpdate retrieves a ledger entry by ID with a row lock.
func (r *EntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerEntry, error) {
	pgxTx := tx.(*Tx).PgxTx()
	row := pgxTx.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1 FOR UPDATE`, id)

	return scanEntry(row)
}

// GetByPayment retrieves all entries created from a payment, oldest first.
// The ordering matches the tie-break the reconciler uses to pick the
// transaction tree head.
func (r *EntryRepository) GetByPayment(ctx context.Context, paymentID string) ([]*domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE payment_id = $1
		ORDER BY created_at, id`,
		paymentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// GetByPaymentForUpdate retrieves all entries for a payment with row locks.
func (r *EntryRepository) GetByPaymentForUpdate(ctx context.Context, tx usecase.Transaction, paymentID string) ([]*domain.LedgerEntry, error) {
	pgxTx := tx.(*Tx).PgxTx()
	rows, err := pgxTx.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE payment_id = $1
		ORDER BY created_at, id
		FOR UPDATE`,
		paymentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// GetByCustomer retrieves entries for a customer, newest first.
func (r *EntryRepository) GetByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		customerID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// UpdateParent rewrites an entry's parent pointer within a transaction.
func (r *EntryRepository) UpdateParent(ctx context.Context, tx usecase.Transaction, id string, parentID *string, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE ledger_entries SET parent_entry_id = $2, updated_at = $3 WHERE id = $1`,
		id, parentID, timeToPgTimestamptz(updatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

func splitDocumentRef(ref *domain.DocumentRef) (docType, docID *string) {
	if ref == nil {
		return nil, nil
	}
	t := string(ref.Type)
	id := ref.ID

	return &t, &id
}

func collectEntries(rows pgx.Rows) ([]*domain.LedgerEntry, error) {
	entries := make([]*domain.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*domain.LedgerEntry, error) {
	var (
		e        domain.LedgerEntry
		amount   pgtype.Numeric
		kind     string
		status   string
		docType  *string
		docID    *string
		metadata []byte
	)

	err := row.Scan(
		&e.ID,
		&e.CustomerID,
		&e.PaymentID,
		&e.Currency,
		&amount,
		&kind,
		&status,
		&docType,
		&docID,
		&e.CreditNoteID,
		&e.ParentEntryID,
		&e.Gateway,
		&e.GatewayID,
		&metadata,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}

		return nil, err
	}

	e.Amount = numericToDecimal(amount)
	e.Kind = domain.EntryKind(kind)
	e.Status = domain.EntryStatus(status)
	if docType != nil && docID != nil {
		e.Document = &domain.DocumentRef{Type: domain.DocumentType(*docType), ID: *docID}
	}
	e.Metadata = unmarshalMetadata(metadata)

	return &e, nil
}
