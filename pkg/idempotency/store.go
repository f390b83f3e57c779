package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store remembers request idempotency keys for a TTL so a retried POST does
// not run the order saga twice.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(buyerID int64, idempotencyKey string) string {
	return fmt.Sprintf("idem:orders:%d:%s", buyerID, idempotencyKey)
}

// Seen atomically records the key and reports whether it already existed.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
