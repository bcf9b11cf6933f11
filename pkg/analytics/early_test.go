package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEarlyScoreBounds(t *testing.T) {
	cases := []EarlyInput{
		{},
		{RankPct: 0, MarketCapUSD: 0, HasMarketCap: true, BuyUSD: 1e9, Volume24hUSD: 1},
		{RankPct: 1, MarketCapUSD: 1e12, HasMarketCap: true},
		{RankPct: -0.5, MarketCapUSD: -100, HasMarketCap: true, BuyUSD: -5, Volume24hUSD: 10},
	}
	for _, in := range cases {
		score := EarlyScore(in)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
	}
}

func TestEarlyScoreFirstBuyerSmallCap(t *testing.T) {
	score := EarlyScore(EarlyInput{
		RankPct:      0,
		MarketCapUSD: 0,
		HasMarketCap: true,
		BuyUSD:       50,
		Volume24hUSD: 100,
	})
	// 40 rank + 40 cap + 10 participation.
	assert.InDelta(t, 90.0, score, 1e-9)
}

func TestEarlyScoreLateBuyerLargeCap(t *testing.T) {
	score := EarlyScore(EarlyInput{
		RankPct:      1,
		MarketCapUSD: 5e6,
		HasMarketCap: true,
		BuyUSD:       0,
		Volume24hUSD: 1e6,
	})
	assert.Zero(t, score)
}

func TestEarlyScoreUnknownMarketCapIsNeutral(t *testing.T) {
	known := EarlyScore(EarlyInput{RankPct: 0.5, MarketCapUSD: 5e5, HasMarketCap: true})
	unknown := EarlyScore(EarlyInput{RankPct: 0.5})

	// Missing data earns the midpoint of the cap term, not the maximum.
	assert.InDelta(t, 40.0, unknown, 1e-9)
	assert.Equal(t, known, 20+20.0)
}

func TestMedian(t *testing.T) {
	assert.Zero(t, Median(nil))
	assert.Equal(t, 5.0, Median([]float64{5}))
	assert.Equal(t, 4.0, Median([]float64{7, 1, 4}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 2, 3}))
}
