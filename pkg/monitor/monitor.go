package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/confluence"
	"github.com/wallet-scout/pkg/db"
	"github.com/wallet-scout/pkg/discovery"
	"github.com/wallet-scout/pkg/price"
	"github.com/wallet-scout/pkg/upstream"
)

// Monitor polls watched wallets at high frequency, classifies their fresh
// transfers into trades, and feeds every new trade to the confluence
// detector. Wallet failures are isolated; a dead window store
// short-circuits confluence for the remainder of the tick.
type Monitor struct {
	cfg      *config.Config
	store    *db.Store
	registry *upstream.Registry
	prices   *price.Enricher
	detector *confluence.Detector

	storeDownTicks atomic.Int64

	mu      sync.RWMutex
	lastRun time.Time
}

func NewMonitor(cfg *config.Config, store *db.Store, registry *upstream.Registry, prices *price.Enricher, detector *confluence.Detector) *Monitor {
	return &Monitor{
		cfg:      cfg,
		store:    store,
		registry: registry,
		prices:   prices,
		detector: detector,
	}
}

// LastRun is read by the dashboard for freshness reporting.
func (m *Monitor) LastRun() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRun
}

// StoreDownTicks counts ticks where confluence was skipped because the
// window store was unreachable.
func (m *Monitor) StoreDownTicks() int64 {
	return m.storeDownTicks.Load()
}

type watchTarget struct {
	chain  config.Chain
	wallet string
}

func (m *Monitor) Run(ctx context.Context) error {
	targets, err := m.targets()
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	// One store failure disables confluence for the whole tick; trades
	// are still recorded, so nothing is lost but the alert.
	var storeDown atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MonitorPoolSize)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if err := m.pollWallet(gctx, t, &storeDown); err != nil {
				log.Warn().Str("chain", string(t.chain)).Str("wallet", t.wallet).
					Err(err).Msg("wallet poll failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if storeDown.Load() {
		m.storeDownTicks.Add(1)
		log.Error().Msg("window store unreachable, confluence skipped this tick")
	}

	m.mu.Lock()
	m.lastRun = time.Now().UTC()
	m.mu.Unlock()
	return nil
}

// targets is the active watchlist plus the curated always-watch set.
func (m *Monitor) targets() ([]watchTarget, error) {
	seen := map[watchTarget]bool{}
	var out []watchTarget

	for _, chain := range m.cfg.Chains {
		entries, err := m.store.Watchlist(chain, db.WatchStatusActive)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			t := watchTarget{chain: chain, wallet: e.Wallet}
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}

	for _, cw := range m.cfg.AlwaysWatch {
		t := watchTarget{chain: cw.Chain, wallet: cw.Address}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Monitor) pollWallet(ctx context.Context, t watchTarget, storeDown *atomic.Bool) error {
	ts := m.registry.Transfers(t.chain)
	if ts == nil {
		return nil
	}

	// Buys and sells come from separate directional queries.
	for _, dir := range []upstream.Direction{upstream.DirIn, upstream.DirOut} {
		transfers, err := ts.FetchWalletTransfers(ctx, t.chain, t.wallet, dir, m.cfg.MonitorTransferLimit)
		if err != nil {
			return err
		}

		for _, swap := range discovery.ClassifySwaps(t.chain, transfers, m.cfg.PoolSendThreshold) {
			if swap.Wallet != t.wallet {
				continue
			}
			if err := m.handleSwap(ctx, t, swap, storeDown); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Monitor) handleSwap(ctx context.Context, t watchTarget, swap discovery.Swap, storeDown *atomic.Bool) error {
	p, err := m.prices.PriceOf(ctx, t.chain, swap.Transfer.Token)
	if err != nil && !errors.Is(err, upstream.ErrPriceMissing) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	inserted, err := m.store.InsertTrade(db.Trade{
		TxHash:   swap.Transfer.TxHash,
		TS:       swap.Transfer.TS,
		Chain:    t.chain,
		Wallet:   t.wallet,
		Token:    swap.Transfer.Token,
		Side:     swap.Side,
		QtyToken: swap.Transfer.Amount,
		PriceUSD: p,
		USDValue: swap.Transfer.Amount * p,
		Venue:    "monitor",
	})
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	log.Debug().Str("chain", string(t.chain)).Str("wallet", t.wallet).
		Str("side", swap.Side).Str("token", swap.Transfer.Token).
		Msg("watched wallet traded")

	if m.cfg.IsExcludedToken(t.chain, swap.Transfer.Token) {
		return nil
	}
	if storeDown.Load() {
		return nil
	}

	_, err = m.detector.Observe(ctx, confluence.Event{
		Chain:  t.chain,
		Side:   swap.Side,
		Token:  swap.Transfer.Token,
		Wallet: t.wallet,
		TS:     swap.Transfer.TS,
	})
	if errors.Is(err, upstream.ErrStoreUnavailable) {
		storeDown.Store(true)
		return nil
	}
	return err
}
