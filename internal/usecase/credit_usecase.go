package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
)

// CreditLedgerUseCase owns the per-customer running credit balance. Writes
// happen inside the caller's transaction; two payments touching the same
// customer serialize on the newest balance row.
type CreditLedgerUseCase struct {
	creditRepo   CreditRepository
	customerRepo CustomerRepository
	cache        BalanceCache
	idGen        IDGenerator
	floor        decimal.Decimal
}

// NewCreditLedgerUseCase creates a new CreditLedgerUseCase. floor is the
// lowest running balance a customer may reach; zero disallows any overspend.
func NewCreditLedgerUseCase(
	creditRepo CreditRepository,
	customerRepo CustomerRepository,
	cache BalanceCache,
	idGen IDGenerator,
	floor decimal.Decimal,
) *CreditLedgerUseCase {
	return &CreditLedgerUseCase{
		creditRepo:   creditRepo,
		customerRepo: customerRepo,
		cache:        cache,
		idGen:        idGen,
		floor:        floor,
	}
}

// Post appends a signed credit movement for the customer, produced by the
// given ledger entry. The resulting running balance may not fall below the
// configured floor.
func (uc *CreditLedgerUseCase) Post(
	ctx context.Context,
	tx Transaction,
	customerID string,
	delta decimal.Decimal,
	sourceEntryID string,
	ts time.Time,
) (*domain.CreditBalanceEntry, error) {
	current := decimal.Zero
	latest, err := uc.creditRepo.LatestForUpdate(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		current = latest.RunningBalance
	}

	running := current.Add(delta)
	if running.LessThan(uc.floor) {
		return nil, fmt.Errorf("%w: customer %s balance would be %s at %s",
			domain.ErrOverspendBlocked, customerID, running, ts.Format(time.RFC3339))
	}

	entry := &domain.CreditBalanceEntry{
		ID:             uc.idGen.Generate(),
		CustomerID:     customerID,
		EntryID:        sourceEntryID,
		Amount:         delta,
		RunningBalance: running,
		Timestamp:      ts,
	}
	if err := uc.creditRepo.Insert(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := uc.syncCustomer(ctx, tx, customerID, running, ts); err != nil {
		return nil, err
	}

	return entry, nil
}

// Remove deletes the balance row produced by sourceEntryID and rebuilds the
// running balances that followed it.
func (uc *CreditLedgerUseCase) Remove(ctx context.Context, tx Transaction, customerID, sourceEntryID string) error {
	row, err := uc.creditRepo.GetBySourceEntry(ctx, tx, sourceEntryID)
	if err != nil {
		return err
	}
	if row == nil {
		return nil
	}

	if err := uc.creditRepo.DeleteBySourceEntry(ctx, tx, sourceEntryID); err != nil {
		return err
	}

	return uc.rebase(ctx, tx, customerID, row.Timestamp)
}

// Reprice changes the signed amount of the balance row produced by
// sourceEntryID and rebuilds subsequent running balances.
func (uc *CreditLedgerUseCase) Reprice(
	ctx context.Context,
	tx Transaction,
	customerID, sourceEntryID string,
	delta decimal.Decimal,
) error {
	row, err := uc.creditRepo.GetBySourceEntry(ctx, tx, sourceEntryID)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: no balance row for entry %s", domain.ErrEntryNotFound, sourceEntryID)
	}

	if err := uc.creditRepo.UpdateAmount(ctx, tx, row.ID, delta); err != nil {
		return err
	}

	return uc.rebase(ctx, tx, customerID, row.Timestamp)
}

// Purge removes every balance row produced by the given ledger entries and
// rebuilds the customer's running balances once. Used by payment deletion,
// which rewrites history; the floor is not re-checked for rows that were
// valid when written.
func (uc *CreditLedgerUseCase) Purge(ctx context.Context, tx Transaction, customerID string, entryIDs []string) error {
	var earliest *time.Time
	for _, entryID := range entryIDs {
		row, err := uc.creditRepo.GetBySourceEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if row == nil {
			continue
		}
		if err := uc.creditRepo.DeleteBySourceEntry(ctx, tx, entryID); err != nil {
			return err
		}
		if earliest == nil || row.Timestamp.Before(*earliest) {
			ts := row.Timestamp
			earliest = &ts
		}
	}

	if earliest == nil {
		return nil
	}

	balance, err := uc.creditRepo.Rebase(ctx, tx, customerID, *earliest)
	if err != nil {
		return err
	}
	return uc.syncCustomer(ctx, tx, customerID, balance, time.Now().UTC())
}

func (uc *CreditLedgerUseCase) rebase(ctx context.Context, tx Transaction, customerID string, from time.Time) error {
	balance, err := uc.creditRepo.Rebase(ctx, tx, customerID, from)
	if err != nil {
		return err
	}

	if balance.LessThan(uc.floor) {
		return fmt.Errorf("%w: customer %s balance would be %s at %s",
			domain.ErrOverspendBlocked, customerID, balance, from.Format(time.RFC3339))
	}

	return uc.syncCustomer(ctx, tx, customerID, balance, time.Now().UTC())
}

// syncCustomer mirrors the running balance onto the customer row inside the
// same transaction. The read cache is left alone here; it is dropped after
// commit through InvalidateCached.
func (uc *CreditLedgerUseCase) syncCustomer(ctx context.Context, tx Transaction, customerID string, balance decimal.Decimal, at time.Time) error {
	return uc.customerRepo.UpdateCreditBalance(ctx, tx, customerID, balance, at)
}

// InvalidateCached drops the customer's cached balance. Callers run this
// after the transaction that moved the balance commits; dropped any earlier,
// a concurrent read could refill the cache with the pre-commit balance and
// serve it for a full TTL.
func (uc *CreditLedgerUseCase) InvalidateCached(ctx context.Context, customerID string) {
	if uc.cache != nil {
		_ = uc.cache.Invalidate(ctx, customerID)
	}
}

// Lookup returns the customer's credit balance: the latest when at is nil,
// otherwise the balance as of the most recent row at or before that
// instant. Customers with no history read as zero.
func (uc *CreditLedgerUseCase) Lookup(ctx context.Context, customerID string, at *time.Time) (decimal.Decimal, error) {
	if at == nil {
		if uc.cache != nil {
			if balance, ok, err := uc.cache.GetBalance(ctx, customerID); err == nil && ok {
				return balance, nil
			}
		}

		latest, err := uc.creditRepo.Latest(ctx, customerID)
		if err != nil {
			return decimal.Zero, err
		}
		if latest == nil {
			return decimal.Zero, nil
		}

		if uc.cache != nil {
			_ = uc.cache.SetBalance(ctx, customerID, latest.RunningBalance, BalanceCacheTTL)
		}
		return latest.RunningBalance, nil
	}

	row, err := uc.creditRepo.AsOf(ctx, customerID, *at)
	if err != nil {
		return decimal.Zero, err
	}
	if row == nil {
		return decimal.Zero, nil
	}
	return row.RunningBalance, nil
}
