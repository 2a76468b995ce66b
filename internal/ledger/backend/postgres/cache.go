package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/valueledger/internal/domain/ledger"
	"github.com/R3E-Network/valueledger/internal/ledger/backend"
)

// CachedStore decorates a backend.Backend with a Redis-backed read-through
// cache in front of GetBalance. It is never a source of truth: a cache miss
// or a Redis error always falls through to the wrapped backend, and every
// ExecutePlan that commits invalidates the (asset, owner) pairs it touched
// before returning.
type CachedStore struct {
	backend.Backend
	redis *redis.Client
	ttl   time.Duration
}

var _ backend.Backend = (*CachedStore)(nil)

// NewCachedStore wraps store with a Redis cache. addr is a redis.Options
// Addr (host:port); ttl of zero disables expiry (entries live until
// invalidated).
func NewCachedStore(store backend.Backend, addr string, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Backend: store,
		redis:   redis.NewClient(&redis.Options{Addr: addr}),
		ttl:     ttl,
	}
}

type cachedBalance struct {
	Available int64     `json:"available"`
	Reserved  int64     `json:"reserved"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *CachedStore) cacheKey(assetCode, owner string) string {
	return "valueledger:balance:" + assetCode + ":" + owner
}

// GetBalance serves from Redis when present and valid, otherwise reduces
// through the wrapped backend and populates the cache on the way out.
func (c *CachedStore) GetBalance(ctx context.Context, assetCode, owner string) (ledger.Balance, error) {
	key := c.cacheKey(assetCode, owner)
	if raw, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var cb cachedBalance
		if jsonErr := json.Unmarshal(raw, &cb); jsonErr == nil {
			return ledger.Balance{Available: cb.Available, Reserved: cb.Reserved, UpdatedAt: cb.UpdatedAt}, nil
		}
	}

	bal, err := c.Backend.GetBalance(ctx, assetCode, owner)
	if err != nil {
		return bal, err
	}

	if raw, err := json.Marshal(cachedBalance{Available: bal.Available, Reserved: bal.Reserved, UpdatedAt: bal.UpdatedAt}); err == nil {
		_ = c.redis.Set(ctx, key, raw, c.ttl).Err()
	}
	return bal, nil
}

// ExecutePlan delegates to the wrapped backend, then evicts every
// (asset, owner) pair the plan touched — senders, receivers, and
// reservation authorities — so the next GetBalance reduces fresh.
func (c *CachedStore) ExecutePlan(ctx context.Context, plan ledger.Plan) error {
	if err := c.Backend.ExecutePlan(ctx, plan); err != nil {
		return err
	}

	type pair struct{ assetCode, owner string }
	touched := make(map[pair]bool)
	for _, op := range plan.Operations {
		if op.AssetCode == "" {
			continue
		}
		if op.Owner != "" {
			touched[pair{op.AssetCode, op.Owner}] = true
		}
		if op.To != "" {
			touched[pair{op.AssetCode, op.To}] = true
		}
		if op.Authority != "" {
			touched[pair{op.AssetCode, op.Authority}] = true
		}
	}

	keys := make([]string, 0, len(touched))
	for p := range touched {
		keys = append(keys, c.cacheKey(p.assetCode, p.owner))
	}
	if len(keys) > 0 {
		_ = c.redis.Del(ctx, keys...).Err()
	}
	return nil
}

// Close releases the underlying Redis client.
func (c *CachedStore) Close() error {
	return c.redis.Close()
}
