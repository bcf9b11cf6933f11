package watchlist

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
)

func testMaintainer(t *testing.T, topN int) (*Maintainer, *db.Store, time.Time) {
	t.Helper()

	store, err := db.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Chains:           []config.Chain{"eth"},
		WatchlistTopN:    topN,
		ScoreWeights:     config.Weights{PnL: 0.30, Activity: 0.30, Early: 0.40},
		MinTrades:        1,
		MinMultiple:      1.0,
		NegPnLThreshold:  0,
		EarlyMedianFloor: 20,
		MultipleFloor:    2.0,
		ConfluenceWindow: 30 * time.Minute,
	}

	m := NewMaintainer(cfg, store, NewWeightController(cfg, store))
	now := time.Date(2026, 8, 1, 4, 10, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })
	return m, store, now
}

// seedWallet writes a wallet row plus healthy 30-day stats scaled by rank.
func seedWallet(t *testing.T, store *db.Store, wallet string, quality int, now time.Time) {
	t.Helper()
	require.NoError(t, store.UpsertWallet("eth", wallet, now))
	require.NoError(t, store.UpsertStats(db.WalletStats{
		Chain:             "eth",
		Wallet:            wallet,
		TradeCount:        quality,
		RealizedUSD:       float64(quality * 50),
		UnrealizedUSD:     float64(quality * 100),
		BestTradeMultiple: 2.0 + float64(quality),
		EarlyScoreMedian:  20 + float64(quality),
		UpdatedAt:         now,
	}))
}

func activeSet(t *testing.T, store *db.Store) map[string]bool {
	t.Helper()
	entries, err := store.Watchlist("eth", db.WatchStatusActive)
	require.NoError(t, err)
	set := map[string]bool{}
	for _, e := range entries {
		set[e.Wallet] = true
	}
	return set
}

func TestMaintainerCapsActiveAtTopN(t *testing.T) {
	m, store, now := testMaintainer(t, 5)

	for i := 0; i < 40; i++ {
		seedWallet(t, store, fmt.Sprintf("0xw%02d", i), i+1, now)
	}

	require.NoError(t, m.Run(context.Background()))

	active := activeSet(t, store)
	assert.Len(t, active, 5)
	for i := 35; i < 40; i++ {
		assert.True(t, active[fmt.Sprintf("0xw%02d", i)])
	}

	// The rest sit in pending, not active.
	pending, err := store.Watchlist("eth", db.WatchStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 35)
}

func TestMaintainerDemotesOutOfTopN(t *testing.T) {
	m, store, now := testMaintainer(t, 2)

	seedWallet(t, store, "0xaaa", 10, now)
	seedWallet(t, store, "0xbbb", 8, now)
	require.NoError(t, m.Run(context.Background()))
	require.True(t, activeSet(t, store)["0xbbb"])

	// Two stronger wallets arrive and push 0xbbb out of the top two.
	seedWallet(t, store, "0xccc", 20, now)
	seedWallet(t, store, "0xddd", 15, now)
	require.NoError(t, m.Run(context.Background()))

	active := activeSet(t, store)
	assert.Len(t, active, 2)
	assert.False(t, active["0xbbb"])

	pending, err := store.Watchlist("eth", db.WatchStatusPending)
	require.NoError(t, err)
	found := false
	for _, e := range pending {
		if e.Wallet == "0xbbb" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMaintainerRemovesOnNegativeUnrealized(t *testing.T) {
	m, store, now := testMaintainer(t, 5)

	seedWallet(t, store, "0xaaa", 10, now)
	require.NoError(t, m.Run(context.Background()))
	require.True(t, activeSet(t, store)["0xaaa"])

	require.NoError(t, store.UpsertStats(db.WalletStats{
		Chain:             "eth",
		Wallet:            "0xaaa",
		TradeCount:        10,
		UnrealizedUSD:     -500,
		BestTradeMultiple: 12,
		EarlyScoreMedian:  30,
		UpdatedAt:         now,
	}))
	require.NoError(t, m.Run(context.Background()))

	assert.False(t, activeSet(t, store)["0xaaa"])
	removed, err := store.Watchlist("eth", db.WatchStatusRemoved)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "0xaaa", removed[0].Wallet)
}

func TestMaintainerRemovesOnLowMultiple(t *testing.T) {
	m, store, now := testMaintainer(t, 5)

	seedWallet(t, store, "0xaaa", 10, now)
	require.NoError(t, m.Run(context.Background()))

	// Still above the add bar of 1x but below the retention floor of 2x.
	require.NoError(t, store.UpsertStats(db.WalletStats{
		Chain:             "eth",
		Wallet:            "0xaaa",
		TradeCount:        10,
		UnrealizedUSD:     100,
		BestTradeMultiple: 1.5,
		EarlyScoreMedian:  30,
		UpdatedAt:         now,
	}))
	require.NoError(t, m.Run(context.Background()))

	assert.False(t, activeSet(t, store)["0xaaa"])
}

func TestMaintainerConfluenceGraceDefersRemoval(t *testing.T) {
	m, store, now := testMaintainer(t, 5)

	seedWallet(t, store, "0xaaa", 10, now)
	require.NoError(t, m.Run(context.Background()))

	require.NoError(t, store.UpsertStats(db.WalletStats{
		Chain:         "eth",
		Wallet:        "0xaaa",
		TradeCount:    10,
		UnrealizedUSD: -500,
		UpdatedAt:     now,
	}))
	// The wallet is inside a live confluence window; removal waits.
	require.NoError(t, store.TouchConfluence("eth", "0xaaa", now.Add(-5*time.Minute)))

	require.NoError(t, m.Run(context.Background()))
	assert.True(t, activeSet(t, store)["0xaaa"])

	// Once the window lapses the rule applies.
	m.SetClock(func() time.Time { return now.Add(time.Hour) })
	require.NoError(t, m.Run(context.Background()))
	assert.False(t, activeSet(t, store)["0xaaa"])
}

func TestMaintainerSkipsBotWallets(t *testing.T) {
	m, store, now := testMaintainer(t, 5)

	seedWallet(t, store, "0xbot", 20, now)
	require.NoError(t, store.SetWalletBot("eth", "0xbot", true))
	seedWallet(t, store, "0xhuman", 5, now)

	require.NoError(t, m.Run(context.Background()))

	active := activeSet(t, store)
	assert.False(t, active["0xbot"])
	assert.True(t, active["0xhuman"])
}
