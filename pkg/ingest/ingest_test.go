package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
	"github.com/wallet-scout/pkg/upstream"
)

type fakeTrending struct {
	snaps []upstream.TokenSnapshot
}

func (f *fakeTrending) Name() string { return "fake-trending" }

func (f *fakeTrending) FetchTrending(context.Context, config.Chain) ([]upstream.TokenSnapshot, error) {
	return f.snaps, nil
}

type fakeSafety struct {
	reports map[string]upstream.SafetyReport
}

func (f *fakeSafety) Name() string { return "fake-safety" }

func (f *fakeSafety) SafetyCheck(_ context.Context, _ config.Chain, token string) (upstream.SafetyReport, error) {
	return f.reports[token], nil
}

func TestIngestSafetyGate(t *testing.T) {
	store, err := db.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Chains = []config.Chain{config.ChainEthereum}

	usdc := "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	trending := &fakeTrending{snaps: []upstream.TokenSnapshot{
		{Address: "0xGOOD000000000000000000000000000000000001", Symbol: "GOOD", PriceUSD: 1, LiquidityUSD: 100000, Volume24hUSD: 200000},
		{Address: usdc, Symbol: "USDC", PriceUSD: 1, LiquidityUSD: 9e9, Volume24hUSD: 9e9},
		{Address: "0xthin000000000000000000000000000000000002", Symbol: "THIN", PriceUSD: 1, LiquidityUSD: 1000, Volume24hUSD: 200000},
		{Address: "0xpot0000000000000000000000000000000000003", Symbol: "POT", PriceUSD: 1, LiquidityUSD: 100000, Volume24hUSD: 200000},
		{Address: "0xtaxy000000000000000000000000000000000004", Symbol: "TAXY", PriceUSD: 1, LiquidityUSD: 100000, Volume24hUSD: 200000},
	}}
	safety := &fakeSafety{reports: map[string]upstream.SafetyReport{
		"0xpot0000000000000000000000000000000000003":  {IsHoneypot: true},
		"0xtaxy000000000000000000000000000000000004": {BuyTaxPct: 25},
	}}

	registry := upstream.NewRegistry()
	registry.RegisterTrending(config.ChainEthereum, trending)
	registry.RegisterSafety(config.ChainEthereum, safety)

	ing := NewIngestor(cfg, store, registry)
	require.NoError(t, ing.Run(context.Background()))

	seeds, err := store.RecentSeeds(config.ChainEthereum, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, "0xgood000000000000000000000000000000000001", seeds[0].TokenAddress)
	assert.Equal(t, 1, seeds[0].Rank24h)

	// Gated tokens still get a token row; the gate only blocks seeding.
	tok, err := store.GetToken(config.ChainEthereum, "0xthin000000000000000000000000000000000002")
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, tok.LiquidityUSD, 1e-9)

	pot, err := store.GetToken(config.ChainEthereum, "0xpot0000000000000000000000000000000000003")
	require.NoError(t, err)
	assert.True(t, pot.IsHoneypot)
}
