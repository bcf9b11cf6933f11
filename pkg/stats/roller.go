package stats

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wallet-scout/pkg/analytics"
	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
	"github.com/wallet-scout/pkg/price"
	"github.com/wallet-scout/pkg/upstream"
)

const statsWindow = 30 * 24 * time.Hour

// Roller recomputes every active wallet's 30-day aggregates from scratch.
// Full recomputation keeps the stats drift-free; the wallet set is small
// enough that incremental bookkeeping is not worth the bugs.
type Roller struct {
	cfg    *config.Config
	store  *db.Store
	prices *price.Enricher
	now    func() time.Time

	mu      sync.RWMutex
	lastRun time.Time
}

func NewRoller(cfg *config.Config, store *db.Store, prices *price.Enricher) *Roller {
	return &Roller{
		cfg:    cfg,
		store:  store,
		prices: prices,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the roller's time source.
func (r *Roller) SetClock(now func() time.Time) { r.now = now }

// LastRun is read by the dashboard for freshness reporting.
func (r *Roller) LastRun() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRun
}

func (r *Roller) Run(ctx context.Context) error {
	since := r.now().Add(-statsWindow)

	for _, chain := range r.cfg.Chains {
		wallets, err := r.store.ActiveWallets(chain, since)
		if err != nil {
			return err
		}

		for _, w := range wallets {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := r.rollWallet(ctx, chain, w.Address, since); err != nil {
				log.Warn().Str("chain", string(chain)).Str("wallet", w.Address).
					Err(err).Msg("stats roll failed for wallet")
			}
		}

		if len(wallets) > 0 {
			log.Info().Str("chain", string(chain)).Int("wallets", len(wallets)).
				Msg("📊 rolled 30d wallet stats")
		}
	}

	r.mu.Lock()
	r.lastRun = r.now()
	r.mu.Unlock()
	return nil
}

func (r *Roller) rollWallet(ctx context.Context, chain config.Chain, wallet string, since time.Time) error {
	trades, err := r.store.TradesForWallet(chain, wallet, since)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		return nil
	}

	res := analytics.ComputeWalletFIFO(trades)
	if res.ClampedQty > 0 {
		log.Warn().Str("chain", string(chain)).Str("wallet", wallet).
			Float64("clamped_qty", res.ClampedQty).
			Msg("sells exceeded observed buys, matched at zero cost")
	}

	unrealized, lastTS := r.materializePositions(ctx, chain, wallet, res)

	bot := analytics.IsBot(trades, statsWindow)
	if err := r.store.SetWalletBot(chain, wallet, bot); err != nil {
		return err
	}

	// updated_at derives from the trade history so an unchanged wallet
	// rolls to an identical row.
	return r.store.UpsertStats(db.WalletStats{
		Chain:             chain,
		Wallet:            wallet,
		TradeCount:        len(trades),
		RealizedUSD:       res.RealizedUSD,
		UnrealizedUSD:     unrealized,
		BestTradeMultiple: res.BestMultiple,
		EarlyScoreMedian:  r.earlyMedian(chain, trades),
		MaxDrawdownPct:    analytics.MaxDrawdownPct(res.Series),
		UpdatedAt:         lastTS,
	})
}

// materializePositions writes open lots per token and returns the wallet's
// total unrealized PnL plus its latest trade timestamp.
func (r *Roller) materializePositions(ctx context.Context, chain config.Chain, wallet string, res analytics.WalletFIFOResult) (float64, time.Time) {
	var total float64
	var lastTS time.Time

	for token, ts := range res.LastTradeTS {
		if ts.After(lastTS) {
			lastTS = ts
		}
		lots := res.LotsByToken[token]

		p, err := r.prices.PriceOf(ctx, chain, token)
		priceKnown := err == nil
		if err != nil && !errors.Is(err, upstream.ErrPriceMissing) && ctx.Err() != nil {
			return total, lastTS
		}

		unrealized := analytics.UnrealizedPnL(lots, p, priceKnown)
		total += unrealized

		_ = r.store.UpsertPosition(db.Position{
			Chain:         chain,
			Wallet:        wallet,
			Token:         token,
			Qty:           analytics.OpenQty(lots),
			CostBasisUSD:  analytics.CostBasis(lots),
			UnrealizedUSD: unrealized,
			LastPriceUSD:  p,
			LastTradeTS:   ts,
			UpdatedAt:     ts,
		})
	}
	return total, lastTS
}

// earlyMedian scores each buy by rank among the token's buyers, market cap
// proxy, and volume participation, then takes the wallet's median.
func (r *Roller) earlyMedian(chain config.Chain, trades []db.Trade) float64 {
	var scores []float64
	for _, t := range trades {
		if t.Side != db.SideBuy {
			continue
		}

		in := analytics.EarlyInput{BuyUSD: t.USDValue}

		before, err1 := r.store.DistinctBuyersBefore(chain, t.Token, t.TS)
		total, err2 := r.store.DistinctBuyers(chain, t.Token)
		if err1 == nil && err2 == nil && total > 0 {
			in.RankPct = float64(before) / float64(total)
		}

		if tok, err := r.store.GetToken(chain, t.Token); err == nil {
			in.Volume24hUSD = tok.Volume24hUSD
			if tok.LiquidityUSD > 0 {
				in.MarketCapUSD = tok.LiquidityUSD * 3
				in.HasMarketCap = true
			}
		}

		scores = append(scores, analytics.EarlyScore(in))
	}
	return analytics.Median(scores)
}
