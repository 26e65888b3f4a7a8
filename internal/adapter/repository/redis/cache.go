package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// BalanceCache implements usecase.BalanceCache using Redis. Balances are
// stored as decimal strings; a missing key is a cache miss, never an error.
type BalanceCache struct {
	client *redis.Client
	prefix string
}

// NewBalanceCache creates a new BalanceCache.
func NewBalanceCache(client *redis.Client) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "credit_balance:",
	}
}

// GetBalance retrieves a cached credit balance. The second return value
// reports whether the key was present.
func (c *BalanceCache) GetBalance(ctx context.Context, customerID string) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+customerID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, false, nil
		}

		return decimal.Zero, false, err
	}

	balance, err := decimal.NewFromString(val)
	if err != nil {
		// Corrupt value; treat as a miss so the caller falls back to the
		// credit balance ledger.
		return decimal.Zero, false, nil
	}

	return balance, true, nil
}

// SetBalance stores a credit balance with TTL.
func (c *BalanceCache) SetBalance(ctx context.Context, customerID string, balance decimal.Decimal, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+customerID, balance.String(), ttl).Err()
}

// Invalidate removes a cached balance after a credit mutation.
func (c *BalanceCache) Invalidate(ctx context.Context, customerID string) error {
	return c.client.Del(ctx, c.prefix+customerID).Err()
}
