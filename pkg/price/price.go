package price

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
	"github.com/wallet-scout/pkg/upstream"
)

const cacheTTL = 60 * time.Second

// Enricher resolves the current USD price of a token: sources in declared
// fallback order, then the last observed trade price, then a miss. Results
// are held in a short process-local cache.
type Enricher struct {
	registry *upstream.Registry
	store    *db.Store

	mu    sync.RWMutex
	cache map[string]cachedPrice
}

type cachedPrice struct {
	price     float64
	expiresAt time.Time
}

func NewEnricher(registry *upstream.Registry, store *db.Store) *Enricher {
	return &Enricher{
		registry: registry,
		store:    store,
		cache:    map[string]cachedPrice{},
	}
}

// PriceOf returns the current USD price or ErrPriceMissing. It never
// fabricates a value.
func (e *Enricher) PriceOf(ctx context.Context, chain config.Chain, token string) (float64, error) {
	key := string(chain) + ":" + token

	e.mu.RLock()
	c, ok := e.cache[key]
	e.mu.RUnlock()
	if ok && time.Now().Before(c.expiresAt) {
		return c.price, nil
	}

	for _, src := range e.registry.Prices(chain) {
		p, err := src.PriceOf(ctx, chain, token)
		if err == nil && p > 0 {
			e.put(key, p)
			return p, nil
		}
		if err != nil && !errors.Is(err, upstream.ErrPriceMissing) {
			log.Debug().Str("source", src.Name()).Str("token", token).Err(err).
				Msg("price source failed, falling through")
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}

	// Stale is better than fabricated: fall back to the price observed on
	// the most recent trade.
	if p, ok := e.store.LastTradePrice(chain, token); ok {
		e.put(key, p)
		return p, nil
	}

	return 0, fmt.Errorf("%s/%s: %w", chain, token, upstream.ErrPriceMissing)
}

func (e *Enricher) put(key string, p float64) {
	e.mu.Lock()
	e.cache[key] = cachedPrice{price: p, expiresAt: time.Now().Add(cacheTTL)}
	e.mu.Unlock()
}
