package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openbill/arledger/internal/domain"
	"github.com/openbill/arledger/internal/usecase"
)

const documentColumns = `type, id, customer_id, currency, total, amount_paid, amount_credited,
	balance, paid, closed, created_at, updated_at`

// DocumentRepository implements usecase.DocumentRepository. Documents are
// keyed by (type, id); the ledger writes only their applied totals and
// status flags.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// GetByRef retrieves a document by its typed reference.
func (r *DocumentRepository) GetByRef(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE type = $1 AND id = $2`,
		string(ref.Type), ref.ID,
	)

	return scanDocument(row)
}

// GetByRefForUpdate retrieves a document with a row lock.
func (r *DocumentRepository) GetByRefForUpdate(ctx context.Context, tx usecase.Transaction, ref domain.DocumentRef) (*domain.Document, error) {
	pgxTx := tx.(*Tx).PgxTx()
	row := pgxTx.QueryRow(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE type = $1 AND id = $2 FOR UPDATE`,
		string(ref.Type), ref.ID,
	)

	return scanDocument(row)
}

// UpdateTotals persists the document's applied totals and status flags.
func (r *DocumentRepository) UpdateTotals(ctx context.Context, tx usecase.Transaction, doc *domain.Document) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE documents
		SET amount_paid = $3, amount_credited = $4, balance = $5, paid = $6, closed = $7, updated_at = $8
		WHERE type = $1 AND id = $2`,
		string(doc.Type),
		doc.ID,
		decimalToNumeric(doc.AmountPaid),
		decimalToNumeric(doc.AmountCredited),
		decimalToNumeric(doc.Balance),
		doc.Paid,
		doc.Closed,
		timeToPgTimestamptz(doc.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}

	return nil
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		d        domain.Document
		docType  string
		total    pgtype.Numeric
		paid     pgtype.Numeric
		credited pgtype.Numeric
		balance  pgtype.Numeric
	)

	err := row.Scan(
		&docType,
		&d.ID,
		&d.CustomerID,
		&d.Currency,
		&total,
		&paid,
		&credited,
		&balance,
		&d.Paid,
		&d.Closed,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}

		return nil, err
	}

	d.Type = domain.DocumentType(docType)
	d.Total = numericToDecimal(total)
	d.AmountPaid = numericToDecimal(paid)
	d.AmountCredited = numericToDecimal(credited)
	d.Balance = numericToDecimal(balance)

	return &d, nil
}
