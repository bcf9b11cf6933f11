package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
	"github.com/wallet-scout/pkg/price"
	"github.com/wallet-scout/pkg/upstream"
)

const transferFetchLimit = 200

// Discoverer walks recent seed tokens, pulls their transfer streams, and
// turns classified swaps into wallets and trades.
type Discoverer struct {
	cfg      *config.Config
	store    *db.Store
	registry *upstream.Registry
	prices   *price.Enricher
}

func NewDiscoverer(cfg *config.Config, store *db.Store, registry *upstream.Registry, prices *price.Enricher) *Discoverer {
	return &Discoverer{cfg: cfg, store: store, registry: registry, prices: prices}
}

func (d *Discoverer) Run(ctx context.Context) error {
	since := time.Now().UTC().Add(-d.cfg.DiscoveryLookback)

	for _, chain := range d.cfg.Chains {
		ts := d.registry.Transfers(chain)
		if ts == nil {
			continue
		}

		seeds, err := d.store.RecentSeeds(chain, since)
		if err != nil {
			return err
		}
		if len(seeds) == 0 {
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.cfg.DiscoveryPoolSize)
		for _, seed := range seeds {
			seed := seed
			g.Go(func() error {
				if err := d.discoverToken(gctx, ts, seed); err != nil {
					log.Warn().Str("chain", string(chain)).
						Str("token", short(seed.TokenAddress)).Err(err).
						Msg("token discovery failed")
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Discoverer) discoverToken(ctx context.Context, ts upstream.TransferSource, seed db.SeedToken) error {
	transfers, err := ts.FetchTokenTransfers(ctx, seed.Chain, seed.TokenAddress, transferFetchLimit)
	if err != nil {
		return err
	}

	swaps := ClassifySwaps(seed.Chain, transfers, d.cfg.PoolSendThreshold)
	if len(swaps) == 0 {
		return nil
	}

	var inserted int
	for _, swap := range swaps {
		if d.cfg.IsExcludedToken(seed.Chain, swap.Transfer.Token) {
			continue
		}

		// Price at observe time; a miss records the trade unpriced rather
		// than dropping it.
		p, err := d.prices.PriceOf(ctx, seed.Chain, swap.Transfer.Token)
		if err != nil && !errors.Is(err, upstream.ErrPriceMissing) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		if err := d.store.UpsertWallet(seed.Chain, swap.Wallet, swap.Transfer.TS); err != nil {
			return err
		}

		ok, err := d.store.InsertTrade(db.Trade{
			TxHash:   swap.Transfer.TxHash,
			TS:       swap.Transfer.TS,
			Chain:    seed.Chain,
			Wallet:   swap.Wallet,
			Token:    swap.Transfer.Token,
			Side:     swap.Side,
			QtyToken: swap.Transfer.Amount,
			PriceUSD: p,
			USDValue: swap.Transfer.Amount * p,
			Venue:    seed.Source,
		})
		if err != nil {
			return err
		}
		if ok {
			inserted++
		}
	}

	if inserted > 0 {
		log.Info().Str("chain", string(seed.Chain)).Str("token", short(seed.TokenAddress)).
			Int("swaps", len(swaps)).Int("new_trades", inserted).
			Msg("🔍 discovered wallet activity")
	}
	return nil
}

func short(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:10] + "…"
}
