package analytics

import "sort"

// EarlyInput carries the observables for one buy.
type EarlyInput struct {
	// RankPct is the wallet's 0-based rank among all observed buyers of
	// the token, divided by the total buyer count.
	RankPct float64
	// MarketCapUSD at buy time; liquidity x3 serves as a proxy when no
	// explicit cap is available.
	MarketCapUSD float64
	HasMarketCap bool
	BuyUSD       float64
	Volume24hUSD float64
}

// EarlyScore rates how early and how meaningfully a wallet bought,
// within [0, 100]: 40 points for buyer rank, 40 for market cap at entry,
// 20 for volume participation.
func EarlyScore(in EarlyInput) float64 {
	rankTerm := 40 * (1 - clip(in.RankPct, 0, 1))

	// Unknown market cap earns half credit rather than rewarding missing data.
	capTerm := 20.0
	if in.HasMarketCap {
		capTerm = 40 * clip((1e6-in.MarketCapUSD)/1e6, 0, 1)
	}

	var participation float64
	if in.Volume24hUSD > 0 {
		participation = clip(in.BuyUSD/in.Volume24hUSD, 0, 1)
	}

	return clip(rankTerm+capTerm+20*participation, 0, 100)
}

// Median of a sample; zero for an empty one.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
