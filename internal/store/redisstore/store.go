package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps the redis client used for cross-process coordination.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

const onceTTL = 24 * time.Hour

// OnceAnalysis claims the per-session analysis slot. It returns true for the
// first caller and false for every later one. A nil store always claims,
// deferring deduplication to the analyzer's completed-session check.
func (s *Store) OnceAnalysis(ctx context.Context, sessionID string) (bool, error) {
	if s == nil || s.rdb == nil {
		return true, nil
	}
	return s.rdb.SetNX(ctx, "analysis:once:"+sessionID, 1, onceTTL).Result()
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
