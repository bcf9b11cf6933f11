package analytics

import (
	"time"

	"github.com/wallet-scout/pkg/db"
)

const (
	botMaxTradesPerDay = 100
	botQuickFlipGap    = 60 * time.Second
	botQuickFlipShare  = 0.30
	// Block timestamps are not carried on trades; two trades this close
	// are treated as same-block.
	botSameBlockGap = 15 * time.Second
)

// IsBot flags automated wallets. Any single heuristic is enough: trade
// volume no human sustains, systematic sub-minute buy/sell flips, or a
// history made solely of single same-block round-trips.
func IsBot(trades []db.Trade, window time.Duration) bool {
	if len(trades) == 0 {
		return false
	}
	SortTrades(trades)

	days := window.Hours() / 24
	if days > 0 && float64(len(trades))/days > botMaxTradesPerDay {
		return true
	}

	if quickFlipRatio(trades) > botQuickFlipShare {
		return true
	}

	return allSingleRoundTrips(trades)
}

// quickFlipRatio is the share of trades that belong to a buy/sell pair of
// the same token separated by less than a minute.
func quickFlipRatio(trades []db.Trade) float64 {
	byToken := map[string][]db.Trade{}
	for _, t := range trades {
		byToken[t.Token] = append(byToken[t.Token], t)
	}

	var flipped int
	for _, ts := range byToken {
		for i := 0; i < len(ts)-1; i++ {
			if ts[i].Side == db.SideBuy && ts[i+1].Side == db.SideSell &&
				ts[i+1].TS.Sub(ts[i].TS) < botQuickFlipGap {
				flipped += 2
			}
		}
	}
	return float64(flipped) / float64(len(trades))
}

// allSingleRoundTrips reports whether every token position is exactly one
// buy immediately closed by one sell in the same block.
func allSingleRoundTrips(trades []db.Trade) bool {
	byToken := map[string][]db.Trade{}
	for _, t := range trades {
		byToken[t.Token] = append(byToken[t.Token], t)
	}

	for _, ts := range byToken {
		if len(ts) != 2 {
			return false
		}
		if ts[0].Side != db.SideBuy || ts[1].Side != db.SideSell {
			return false
		}
		if ts[1].TS.Sub(ts[0].TS) > botSameBlockGap {
			return false
		}
	}
	return true
}
