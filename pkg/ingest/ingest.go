package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
	"github.com/wallet-scout/pkg/upstream"
)

// Ingestor pulls trending feeds per chain, gates tokens for safety, and
// writes Token rows plus append-only seed snapshots.
type Ingestor struct {
	cfg      *config.Config
	store    *db.Store
	registry *upstream.Registry
}

func NewIngestor(cfg *config.Config, store *db.Store, registry *upstream.Registry) *Ingestor {
	return &Ingestor{cfg: cfg, store: store, registry: registry}
}

func (i *Ingestor) Run(ctx context.Context) error {
	snapshotTS := time.Now().UTC()

	for _, chain := range i.cfg.Chains {
		for _, src := range i.registry.Trending(chain) {
			count, err := i.ingestSource(ctx, chain, src, snapshotTS)
			if err != nil {
				log.Warn().Str("chain", string(chain)).Str("source", src.Name()).
					Err(err).Msg("trending fetch failed")
				continue
			}
			if count > 0 {
				log.Info().Str("chain", string(chain)).Str("source", src.Name()).
					Int("tokens", count).Msg("📈 ingested trending tokens")
			}
		}
	}
	return nil
}

func (i *Ingestor) ingestSource(ctx context.Context, chain config.Chain, src upstream.TrendingSource, snapshotTS time.Time) (int, error) {
	snaps, err := src.FetchTrending(ctx, chain)
	if err != nil {
		return 0, err
	}

	count := 0
	for rank, snap := range snaps {
		addr := config.NormalizeAddress(chain, snap.Address)
		if addr == "" {
			continue
		}

		if err := i.store.UpsertToken(db.Token{
			Chain:        chain,
			Address:      addr,
			Symbol:       snap.Symbol,
			LiquidityUSD: snap.LiquidityUSD,
			Volume24hUSD: snap.Volume24hUSD,
			LastPriceUSD: snap.PriceUSD,
			FirstSeenAt:  snapshotTS,
		}); err != nil {
			return count, err
		}

		if reason := i.gate(ctx, chain, addr, snap); reason != "" {
			log.Debug().Str("chain", string(chain)).Str("token", addr).
				Str("reason", reason).Msg("token rejected by safety gate")
			continue
		}

		if err := i.store.InsertSeed(db.SeedToken{
			Chain:        chain,
			TokenAddress: addr,
			Source:       src.Name(),
			SnapshotTS:   snapshotTS,
			Rank24h:      rank + 1,
			Vol24hUSD:    snap.Volume24hUSD,
			PctChange24h: snap.PctChange24h,
		}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// gate returns a rejection reason, or "" when the token may seed discovery.
func (i *Ingestor) gate(ctx context.Context, chain config.Chain, addr string, snap upstream.TokenSnapshot) string {
	if i.cfg.IsExcludedToken(chain, addr) {
		return "excluded token"
	}
	if snap.LiquidityUSD < i.cfg.MinLiquidityUSD {
		return fmt.Sprintf("liquidity %.0f below floor", snap.LiquidityUSD)
	}
	if snap.Volume24hUSD < i.cfg.MinVolume24hUSD {
		return fmt.Sprintf("volume %.0f below floor", snap.Volume24hUSD)
	}

	if safety := i.registry.Safety(chain); safety != nil {
		report, err := safety.SafetyCheck(ctx, chain, addr)
		if err != nil {
			// An unreachable checker must not stall ingestion; the token
			// passes on thresholds alone.
			log.Debug().Str("token", addr).Err(err).Msg("safety check unavailable")
			return ""
		}
		_ = i.store.UpdateTokenSafety(chain, addr, report.BuyTaxPct, report.SellTaxPct, report.IsHoneypot)
		if report.IsHoneypot {
			return "honeypot"
		}
		if report.BuyTaxPct > i.cfg.MaxTaxPct || report.SellTaxPct > i.cfg.MaxTaxPct {
			return fmt.Sprintf("tax %.1f/%.1f above cap", report.BuyTaxPct, report.SellTaxPct)
		}
	}
	return ""
}
