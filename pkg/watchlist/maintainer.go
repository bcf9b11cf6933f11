package watchlist

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wallet-scout/pkg/analytics"
	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
)

// Maintainer applies the add/remove rules against fresh composite scores,
// once a day. The active set per chain never exceeds the top-N cap.
type Maintainer struct {
	cfg     *config.Config
	store   *db.Store
	weights *WeightController
	now     func() time.Time
}

func NewMaintainer(cfg *config.Config, store *db.Store, weights *WeightController) *Maintainer {
	return &Maintainer{
		cfg:     cfg,
		store:   store,
		weights: weights,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the maintainer's time source.
func (m *Maintainer) SetClock(now func() time.Time) { m.now = now }

func (m *Maintainer) Run(ctx context.Context) error {
	now := m.now()
	m.weights.Evaluate(ctx, now)
	w := m.weights.Current()

	for _, chain := range m.cfg.Chains {
		if err := m.maintainChain(chain, w, now); err != nil {
			return err
		}
	}
	return nil
}

func (m *Maintainer) maintainChain(chain config.Chain, w config.Weights, now time.Time) error {
	stats, err := m.store.RankableStats(chain)
	if err != nil {
		return err
	}

	scored := CompositeScores(stats, w)

	existing := map[string]db.WatchlistEntry{}
	entries, err := m.store.AllWatchlist(chain)
	if err != nil {
		return err
	}
	for _, e := range entries {
		existing[e.Wallet] = e
	}

	var activated, demoted, removed int
	for i, sw := range scored {
		prev, known := existing[sw.Wallet]
		delete(existing, sw.Wallet)

		inTopN := i < m.cfg.WatchlistTopN
		status, reason := m.decide(chain, sw, inTopN, prev, known, now)

		if err := m.store.UpsertWatchlist(db.WatchlistEntry{
			Chain:           chain,
			Wallet:          sw.Wallet,
			Score:           sw.Score,
			Status:          status,
			AddedAt:         now,
			LastEvaluatedAt: now,
		}); err != nil {
			return err
		}

		switch {
		case status == db.WatchStatusActive && (!known || prev.Status != db.WatchStatusActive):
			activated++
			log.Info().Str("chain", string(chain)).Str("wallet", sw.Wallet).
				Float64("score", sw.Score).Msg("⭐ wallet activated on watchlist")
		case status != db.WatchStatusActive && known && prev.Status == db.WatchStatusActive:
			if status == db.WatchStatusRemoved {
				removed++
			} else {
				demoted++
			}
			log.Info().Str("chain", string(chain)).Str("wallet", sw.Wallet).
				Str("reason", reason).Msg("watchlist wallet deactivated")
		}
	}

	// Wallets with entries but no rankable stats anymore: no trades in the
	// window, which is itself a removal rule.
	for wallet, prev := range existing {
		if prev.Status != db.WatchStatusActive {
			continue
		}
		if m.inConfluenceGrace(prev, now) {
			continue
		}
		removed++
		if err := m.store.UpsertWatchlist(db.WatchlistEntry{
			Chain:           chain,
			Wallet:          wallet,
			Score:           prev.Score,
			Status:          db.WatchStatusRemoved,
			AddedAt:         prev.AddedAt,
			LastEvaluatedAt: now,
		}); err != nil {
			return err
		}
	}

	if activated+demoted+removed > 0 {
		log.Info().Str("chain", string(chain)).
			Int("activated", activated).Int("demoted", demoted).Int("removed", removed).
			Msg("🧹 watchlist maintenance complete")
	}
	return nil
}

// decide returns the entry's next status and, for deactivations, the rule
// that triggered it.
func (m *Maintainer) decide(chain config.Chain, sw ScoredWallet, inTopN bool, prev db.WatchlistEntry, known bool, now time.Time) (string, string) {
	active := known && prev.Status == db.WatchStatusActive

	if active {
		if reason := m.removeReason(chain, sw.Stats, now); reason != "" {
			// Never yank a wallet mid-confluence; defer to the next run.
			if m.inConfluenceGrace(prev, now) {
				return db.WatchStatusActive, ""
			}
			return db.WatchStatusRemoved, reason
		}
		if !inTopN {
			if m.inConfluenceGrace(prev, now) {
				return db.WatchStatusActive, ""
			}
			return db.WatchStatusPending, "fell out of top-N"
		}
		return db.WatchStatusActive, ""
	}

	// Add rule.
	if inTopN &&
		sw.Stats.TradeCount >= m.cfg.MinTrades &&
		sw.Stats.BestTradeMultiple >= m.cfg.MinMultiple {
		return db.WatchStatusActive, ""
	}
	if known {
		return prev.Status, ""
	}
	return db.WatchStatusPending, ""
}

func (m *Maintainer) removeReason(chain config.Chain, st db.WalletStats, now time.Time) string {
	if st.UnrealizedUSD < m.cfg.NegPnLThreshold {
		return fmt.Sprintf("unrealized pnl %.0f below threshold", st.UnrealizedUSD)
	}
	if st.TradeCount == 0 {
		return "no trades in 30d"
	}
	if st.EarlyScoreMedian < m.cfg.EarlyMedianFloor {
		return fmt.Sprintf("early median %.0f below floor", st.EarlyScoreMedian)
	}
	if st.BestTradeMultiple < m.cfg.MultipleFloor {
		return fmt.Sprintf("best multiple %.1fx below floor", st.BestTradeMultiple)
	}
	if m.weekSlump(chain, st.Wallet, now) {
		return "7d pnl under half of prior daily average"
	}
	return ""
}

func (m *Maintainer) inConfluenceGrace(e db.WatchlistEntry, now time.Time) bool {
	return !e.LastConfluenceAt.IsZero() && now.Sub(e.LastConfluenceAt) < m.cfg.ConfluenceWindow
}

// weekSlump compares realized PnL of the last 7 days against the daily
// average of the prior 23.
func (m *Maintainer) weekSlump(chain config.Chain, wallet string, now time.Time) bool {
	trades, err := m.store.TradesForWallet(chain, wallet, now.Add(-30*24*time.Hour))
	if err != nil || len(trades) == 0 {
		return false
	}

	cutoff := now.Add(-7 * 24 * time.Hour)
	var before, after []db.Trade
	for _, t := range trades {
		if t.TS.Before(cutoff) {
			before = append(before, t)
		} else {
			after = append(after, t)
		}
	}
	if len(before) == 0 {
		return false
	}

	priorDaily := analytics.ComputeWalletFIFO(before).RealizedUSD / 23
	if priorDaily <= 0 {
		return false
	}
	recent := analytics.ComputeWalletFIFO(trades).RealizedUSD - analytics.ComputeWalletFIFO(before).RealizedUSD
	return recent < 0.5*priorDaily*7
}
