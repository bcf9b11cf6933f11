package price

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

type fakePriceSource struct {
	name   string
	price  float64
	err    error
	calls  int
}

func (f *fakePriceSource) Name() string { return f.name }

func (f *fakePriceSource) PriceOf(_ context.Context, _ config.Chain, _ string) (float64, error) {
	f.calls++
	return f.price, f.err
}

func testEnricher(t *testing.T, sources ...upstream.PriceSource) (*Enricher, *db.Store) {
	t.Helper()
	store, err := db.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := upstream.NewRegistry()
	for _, s := range sources {
		registry.RegisterPrices("eth", s)
	}
	return NewEnricher(registry, store), store
}

func TestPriceOfFallbackOrder(t *testing.T) {
	primary := &fakePriceSource{name: "primary", err: upstream.ErrPriceMissing}
	secondary := &fakePriceSource{name: "secondary", price: 1.25}
	e, _ := testEnricher(t, primary, secondary)

	p, err := e.PriceOf(context.Background(), "eth", "0xtoken")
	require.NoError(t, err)
	assert.InDelta(t, 1.25, p, 1e-9)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestPriceOfCaches(t *testing.T) {
	src := &fakePriceSource{name: "src", price: 2.0}
	e, _ := testEnricher(t, src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := e.PriceOf(ctx, "eth", "0xtoken")
		require.NoError(t, err)
		assert.InDelta(t, 2.0, p, 1e-9)
	}
	assert.Equal(t, 1, src.calls)
}

func TestPriceOfLastTradeFallback(t *testing.T) {
	src := &fakePriceSource{name: "src", err: upstream.ErrPriceMissing}
	e, store := testEnricher(t, src)

	_, err := store.InsertTrade(db.Trade{
		TxHash: "0xabc", Chain: "eth", TS: time.Now().UTC(),
		Wallet: "0xw", Token: "0xtoken", Side: db.SideBuy,
		QtyToken: 10, PriceUSD: 0.5, USDValue: 5,
	})
	require.NoError(t, err)

	p, err := e.PriceOf(context.Background(), "eth", "0xtoken")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-9)
}

func TestPriceOfMissIsAnError(t *testing.T) {
	src := &fakePriceSource{name: "src", err: upstream.ErrPriceMissing}
	e, _ := testEnricher(t, src)

	_, err := e.PriceOf(context.Background(), "eth", "0xtoken")
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream.ErrPriceMissing)
}

func TestPriceOfIgnoresZeroQuotes(t *testing.T) {
	zero := &fakePriceSource{name: "zero", price: 0}
	good := &fakePriceSource{name: "good", price: 3.5}
	e, _ := testEnricher(t, zero, good)

	p, err := e.PriceOf(context.Background(), "eth", "0xtoken")
	require.NoError(t, err)
	assert.InDelta(t, 3.5, p, 1e-9)
}
