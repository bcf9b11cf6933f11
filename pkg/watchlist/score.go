package watchlist

import (
	"sort"

	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
)

// ScoredWallet pairs a wallet's stats with its composite score.
type ScoredWallet struct {
	Wallet string
	Score  float64
	Stats  db.WalletStats
}

// PercentileRank places x within the sample, scaled to [0, 100]. Ties get
// half credit so identical values share a rank.
func PercentileRank(values []float64, x float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var below, equal float64
	for _, v := range values {
		switch {
		case v < x:
			below++
		case v == x:
			equal++
		}
	}
	return (below + equal/2) / float64(len(values)) * 100
}

// CompositeScores blends percentile ranks of unrealized PnL, activity, and
// Being-Early under the given weights. Scores are in [0, 100] as long as
// the weights sum to 1.
func CompositeScores(stats []db.WalletStats, w config.Weights) []ScoredWallet {
	pnls := make([]float64, len(stats))
	counts := make([]float64, len(stats))
	earlies := make([]float64, len(stats))
	for i, s := range stats {
		pnls[i] = s.UnrealizedUSD
		counts[i] = float64(s.TradeCount)
		earlies[i] = s.EarlyScoreMedian
	}

	scored := make([]ScoredWallet, len(stats))
	for i, s := range stats {
		score := w.PnL*PercentileRank(pnls, s.UnrealizedUSD) +
			w.Activity*PercentileRank(counts, float64(s.TradeCount)) +
			w.Early*PercentileRank(earlies, s.EarlyScoreMedian)
		scored[i] = ScoredWallet{Wallet: s.Wallet, Score: score, Stats: s}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Wallet < scored[j].Wallet
	})
	return scored
}
