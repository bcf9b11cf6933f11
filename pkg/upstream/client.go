package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	maxAttempts  = 3
	maxBodyBytes = 10 << 20
)

// client wraps an HTTP endpoint with per-provider pacing, a circuit
// breaker, and bounded retries. All adapters go through it.
type client struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func newClient(name string, minGap time.Duration) *client {
	return &client{
		name: name,
		http: &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(minGap), 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 2,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(n string, from, to gobreaker.State) {
				log.Warn().Str("provider", n).
					Str("from", from.String()).Str("to", to.String()).
					Msg("⚡ circuit breaker state change")
			},
		}),
	}
}

func (c *client) getJSON(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil, headers)
}

func (c *client) postJSON(ctx context.Context, url string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, url, body, headers)
}

func (c *client) do(ctx context.Context, method, url string, body []byte, headers map[string]string) ([]byte, error) {
	// Pacing: callers that would exceed the provider policy wait here.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", c.name, ErrRateLimited, err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.once(ctx, method, url, body, headers)
		})
		if err == nil {
			return out.([]byte), nil
		}
		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w: circuit open", c.name, ErrTransientUpstream)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%s: %w: %v", c.name, ErrTransientUpstream, lastErr)
}

func (c *client) once(ctx context.Context, method, url string, body []byte, headers map[string]string) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("status 429")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// Capped exponential backoff with jitter: 500ms, 1s, 2s plus up to half again.
func sleepBackoff(ctx context.Context, attempt int) error {
	base := 500 * time.Millisecond << (attempt - 1)
	d := base + time.Duration(rand.Int63n(int64(base/2)+1))
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ttlCache is a process-local cache with per-entry expiry, used for prices
// and safety reports.
type ttlCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{entries: map[string]cacheEntry{}, ttl: ttl}
}

func (c *ttlCache) get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *ttlCache) set(key string, v interface{}) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: v, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
