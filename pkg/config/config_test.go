package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.IngestInterval)
	assert.Equal(t, 2*time.Minute, cfg.MonitorInterval)
	assert.Equal(t, 30*time.Minute, cfg.ConfluenceWindow)
	assert.Equal(t, 2, cfg.MinConfluence)
	assert.Equal(t, 2, cfg.PoolSendThreshold)
	assert.Equal(t, 30, cfg.WatchlistTopN)
	assert.InDelta(t, 0.30, cfg.ScoreWeights.PnL, 1e-9)
	assert.InDelta(t, 0.30, cfg.ScoreWeights.Activity, 1e-9)
	assert.InDelta(t, 0.40, cfg.ScoreWeights.Early, 1e-9)
	assert.Equal(t, AllChains(), cfg.Chains)
}

func TestIsExcludedTokenDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	// Built-in stablecoins and wrapped natives, case-insensitive on EVM.
	assert.True(t, cfg.IsExcludedToken(ChainEthereum, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"))
	assert.True(t, cfg.IsExcludedToken(ChainEthereum, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"))
	assert.True(t, cfg.IsExcludedToken(ChainBase, "0x4200000000000000000000000000000000000006"))
	assert.True(t, cfg.IsExcludedToken(ChainSolana, "So11111111111111111111111111111111111111112"))

	assert.False(t, cfg.IsExcludedToken(ChainEthereum, "0x1234567890abcdef1234567890abcdef12345678"))
	// Solana addresses are case-sensitive.
	assert.False(t, cfg.IsExcludedToken(ChainSolana, "so11111111111111111111111111111111111111112"))
}

func TestIsExcludedTokenExtras(t *testing.T) {
	t.Setenv("STABLECOIN_EXCLUSIONS", "eth:0xDEADbeef00000000000000000000000000000000, base:0xcafe000000000000000000000000000000000000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsExcludedToken(ChainEthereum, "0xdeadbeef00000000000000000000000000000000"))
	assert.True(t, cfg.IsExcludedToken(ChainBase, "0xCAFE000000000000000000000000000000000000"))
	assert.False(t, cfg.IsExcludedToken(ChainArbitrum, "0xdeadbeef00000000000000000000000000000000"))
}

func TestAlwaysWatchParsing(t *testing.T) {
	t.Setenv("ALWAYS_WATCH", "0xABC0000000000000000000000000000000000001:eth:degen_god,SoLWaLLeT111:solana,malformed")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.AlwaysWatch, 2)

	assert.Equal(t, "0xabc0000000000000000000000000000000000001", cfg.AlwaysWatch[0].Address)
	assert.Equal(t, ChainEthereum, cfg.AlwaysWatch[0].Chain)
	assert.Equal(t, "degen_god", cfg.AlwaysWatch[0].Label)

	assert.Equal(t, "SoLWaLLeT111", cfg.AlwaysWatch[1].Address)
	assert.Equal(t, ChainSolana, cfg.AlwaysWatch[1].Chain)
	assert.Empty(t, cfg.AlwaysWatch[1].Label)
}

func TestChainSelection(t *testing.T) {
	t.Setenv("CHAINS", "base, solana")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []Chain{ChainBase, ChainSolana}, cfg.Chains)
}

func TestValidateRequiresKeys(t *testing.T) {
	t.Setenv("CHAINS", "eth")
	t.Setenv("ALCHEMY_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	t.Setenv("ALCHEMY_API_KEY", "test-key")
	cfg, err = Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestIsDEXRouter(t *testing.T) {
	assert.True(t, IsDEXRouter(ChainEthereum, "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"))
	assert.True(t, IsDEXRouter(ChainSolana, "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"))
	assert.False(t, IsDEXRouter(ChainEthereum, "0x0000000000000000000000000000000000000001"))
	assert.False(t, IsDEXRouter(ChainSolana, "jup6lkbzbjs1jkkwapdhny74zcz3tluzoi5qnyvtav4"))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef", NormalizeAddress(ChainEthereum, "  0xABCdef "))
	assert.Equal(t, "MiXeDcAsE", NormalizeAddress(ChainSolana, "MiXeDcAsE"))
}
