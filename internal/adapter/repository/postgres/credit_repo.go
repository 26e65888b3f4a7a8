package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
	"github.com/openbill/arledger/internal/usecase"
)

const creditColumns = `id, customer_id, entry_id, amount, running_balance, ts`

// CreditRepository implements usecase.CreditRepository over the append-only
// credit balance entry table. Rows are ordered by (ts, id); the running
// balance column is denormalized and rewritten by Rebase after history
// mutations.
type CreditRepository struct {
	pool *pgxpool.Pool
}

// NewCreditRepository creates a new CreditRepository.
func NewCreditRepository(pool *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{pool: pool}
}

// Insert appends a credit balance entry within a transaction.
func (r *CreditRepository) Insert(ctx context.Context, tx usecase.Transaction, entry *domain.CreditBalanceEntry) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		INSERT INTO credit_balance_entries (id, customer_id, entry_id, amount, running_balance, ts)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID,
		entry.CustomerID,
		entry.EntryID,
		decimalToNumeric(entry.Amount),
		decimalToNumeric(entry.RunningBalance),
		timeToPgTimestamptz(entry.Timestamp),
	)

	return err
}

// Latest returns the most recent credit balance entry for a customer, or
// nil when the customer has no credit history.
func (r *CreditRepository) Latest(ctx context.Context, customerID string) (*domain.CreditBalanceEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+creditColumns+` FROM credit_balance_entries
		WHERE customer_id = $1
		ORDER BY ts DESC, id DESC
		LIMIT 1`,
		customerID,
	)

	return scanCreditEntry(row)
}

// LatestForUpdate returns the most recent entry with a row lock.
func (r *CreditRepository) LatestForUpdate(ctx context.Context, tx usecase.Transaction, customerID string) (*domain.CreditBalanceEntry, error) {
	pgxTx := tx.(*Tx).PgxTx()
	row := pgxTx.QueryRow(ctx, `
		SELECT `+creditColumns+` FROM credit_balance_entries
		WHERE customer_id = $1
		ORDER BY ts DESC, id DESC
		LIMIT 1
		FOR UPDATE`,
		customerID,
	)

	return scanCreditEntry(row)
}

// AsOf returns the entry in effect at the given instant, or nil when the
// customer had no credit history yet.
func (r *CreditRepository) AsOf(ctx context.Context, customerID string, at time.Time) (*domain.CreditBalanceEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+creditColumns+` FROM credit_balance_entries
		WHERE customer_id = $1 AND ts <= $2
		ORDER BY ts DESC, id DESC
		LIMIT 1`,
		customerID, timeToPgTimestamptz(at),
	)

	return scanCreditEntry(row)
}

// GetBySourceEntry returns the credit row produced by a ledger entry, or
// nil when the entry never touched standing credit.
func (r *CreditRepository) GetBySourceEntry(ctx context.Context, tx usecase.Transaction, entryID string) (*domain.CreditBalanceEntry, error) {
	pgxTx := tx.(*Tx).PgxTx()
	row := pgxTx.QueryRow(ctx, `
		SELECT `+creditColumns+` FROM credit_balance_entries WHERE entry_id = $1 FOR UPDATE`,
		entryID,
	)

	return scanCreditEntry(row)
}

// DeleteBySourceEntry removes the credit row produced by a ledger entry.
func (r *CreditRepository) DeleteBySourceEntry(ctx context.Context, tx usecase.Transaction, entryID string) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `DELETE FROM credit_balance_entries WHERE entry_id = $1`, entryID)

	return err
}

// UpdateAmount rewrites the signed amount of a credit row. Running balances
// are stale afterwards until Rebase runs.
func (r *CreditRepository) UpdateAmount(ctx context.Context, tx usecase.Transaction, id string, amount decimal.Decimal) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE credit_balance_entries SET amount = $2 WHERE id = $1`,
		id, decimalToNumeric(amount),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// Rebase recomputes the running balance chain from the start of the
// customer's history, rewriting rows at or after the given instant, and
// returns the resulting net balance.
func (r *CreditRepository) Rebase(ctx context.Context, tx usecase.Transaction, customerID string, from time.Time) (decimal.Decimal, error) {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		WITH recomputed AS (
			SELECT id, SUM(amount) OVER (ORDER BY ts, id) AS running
			FROM credit_balance_entries
			WHERE customer_id = $1
		)
		UPDATE credit_balance_entries e
		SET running_balance = r.running
		FROM recomputed r
		WHERE e.id = r.id AND e.ts >= $2`,
		customerID, timeToPgTimestamptz(from),
	)
	if err != nil {
		return decimal.Zero, err
	}

	var total pgtype.Numeric
	err = pgxTx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM credit_balance_entries WHERE customer_id = $1`,
		customerID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(total), nil
}

// ListByCustomer returns the full credit history for a customer in chain
// order.
func (r *CreditRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domain.CreditBalanceEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+creditColumns+` FROM credit_balance_entries
		WHERE customer_id = $1
		ORDER BY ts, id`,
		customerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*domain.CreditBalanceEntry, 0)
	for rows.Next() {
		e, err := scanCreditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanCreditEntry(row rowScanner) (*domain.CreditBalanceEntry, error) {
	var (
		e       domain.CreditBalanceEntry
		amount  pgtype.Numeric
		running pgtype.Numeric
	)

	err := row.Scan(&e.ID, &e.CustomerID, &e.EntryID, &amount, &running, &e.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	e.Amount = numericToDecimal(amount)
	e.RunningBalance = numericToDecimal(running)

	return &e, nil
}
