package confluence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wallet-scout/pkg/upstream"
)

// Member is one wallet observation inside a confluence window.
type Member struct {
	Wallet string
	TS     time.Time
}

// WindowStore holds the sliding-window wallet bag per (chain, side, token)
// key. Implementations must evict members older than the window on Record
// and bound key lifetime to the window.
type WindowStore interface {
	Record(ctx context.Context, key, wallet string, ts time.Time, window time.Duration) error
	Members(ctx context.Context, key string, cutoff time.Time) ([]Member, error)
}

// RedisWindow keeps one sorted set per key: score = event timestamp,
// member = wallet address. The sorted-set ops are atomic server-side, so
// concurrent monitor workers never corrupt a window.
type RedisWindow struct {
	rdb *redis.Client
}

func NewRedisWindow(addr string, dbNum int) *RedisWindow {
	return &RedisWindow{
		rdb: redis.NewClient(&redis.Options{
			Addr:            addr,
			DB:              dbNum,
			DialTimeout:     2 * time.Second,
			ReadTimeout:     2 * time.Second,
			WriteTimeout:    2 * time.Second,
			PoolSize:        16,
			MaxRetries:      2,
			MinRetryBackoff: 50 * time.Millisecond,
			MaxRetryBackoff: 500 * time.Millisecond,
		}),
	}
}

func (r *RedisWindow) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis: %v", upstream.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisWindow) Record(ctx context.Context, key, wallet string, ts time.Time, window time.Duration) error {
	cutoff := ts.Add(-window)
	pipe := r.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(ts.UnixMilli()), Member: wallet})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff.UnixMilli(), 10))
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: redis: %v", upstream.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisWindow) Members(ctx context.Context, key string, cutoff time.Time) ([]Member, error) {
	zs, err := r.rdb.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis: %v", upstream.ErrStoreUnavailable, err)
	}

	members := make([]Member, 0, len(zs))
	for _, z := range zs {
		wallet, ok := z.Member.(string)
		if !ok {
			continue
		}
		members = append(members, Member{
			Wallet: wallet,
			TS:     time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return members, nil
}

// MemoryWindow is an in-process WindowStore with the same eviction
// semantics, used in tests and as a degraded-mode fallback.
type MemoryWindow struct {
	mu   sync.Mutex
	bags map[string][]Member
}

func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{bags: map[string][]Member{}}
}

func (m *MemoryWindow) Record(_ context.Context, key, wallet string, ts time.Time, window time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := ts.Add(-window)
	kept := m.bags[key][:0]
	replaced := false
	for _, mem := range m.bags[key] {
		if mem.TS.Before(cutoff) {
			continue
		}
		if mem.Wallet == wallet {
			if ts.After(mem.TS) {
				mem.TS = ts
			}
			replaced = true
		}
		kept = append(kept, mem)
	}
	if !replaced {
		kept = append(kept, Member{Wallet: wallet, TS: ts})
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].TS.Before(kept[j].TS) })
	m.bags[key] = kept
	return nil
}

func (m *MemoryWindow) Members(_ context.Context, key string, cutoff time.Time) ([]Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Member
	for _, mem := range m.bags[key] {
		if !mem.TS.Before(cutoff) {
			out = append(out, mem)
		}
	}
	return out, nil
}
