package confluence

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-scout/pkg/alerts"
	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
)

type recordingAlerter struct {
	mu    sync.Mutex
	sent  []alerts.Alert
	fail  bool
	calls int
}

func (r *recordingAlerter) EmitAlert(_ context.Context, a alerts.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail {
		return assert.AnError
	}
	r.sent = append(r.sent, a)
	return nil
}

func testDetector(t *testing.T) (*Detector, *db.Store, *recordingAlerter, *time.Time) {
	t.Helper()

	store, err := db.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		ConfluenceWindow: 30 * time.Minute,
		MinConfluence:    2,
	}

	rec := &recordingAlerter{}
	weights := func() config.Weights {
		return config.Weights{PnL: 0.30, Activity: 0.30, Early: 0.40}
	}

	d := NewDetector(cfg, NewMemoryWindow(), store, rec, weights)

	// Align the clock to a bucket boundary so events a few minutes apart
	// stay in one bucket.
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Truncate(30 * time.Minute)
	d.SetClock(func() time.Time { return now })
	return d, store, rec, &now
}

func buyEvent(wallet string, ts time.Time) Event {
	return Event{Chain: "eth", Side: db.SideBuy, Token: "0xtoken", Wallet: wallet, TS: ts}
}

func TestObserveTwoWalletsFireOnce(t *testing.T) {
	d, store, rec, now := testDetector(t)
	ctx := context.Background()

	fired, err := d.Observe(ctx, buyEvent("0xw1", *now))
	require.NoError(t, err)
	assert.False(t, fired)

	*now = now.Add(2 * time.Minute)
	fired, err = d.Observe(ctx, buyEvent("0xw2", *now))
	require.NoError(t, err)
	assert.True(t, fired)

	require.Len(t, rec.sent, 1)
	a := rec.sent[0]
	assert.Equal(t, alerts.KindBuyConfluence, a.Kind)
	require.Len(t, a.Wallets, 2)
	assert.Equal(t, int64(2*time.Minute/time.Millisecond), a.WindowMS)

	recorded, err := store.RecentAlerts(10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.ElementsMatch(t, []string{"0xw1", "0xw2"}, recorded[0].Wallets)
	assert.Contains(t, recorded[0].Weights, `"early":0.40`)
}

func TestObserveReplaySuppressed(t *testing.T) {
	d, store, rec, now := testDetector(t)
	ctx := context.Background()

	_, err := d.Observe(ctx, buyEvent("0xw1", *now))
	require.NoError(t, err)
	*now = now.Add(2 * time.Minute)
	fired, err := d.Observe(ctx, buyEvent("0xw2", *now))
	require.NoError(t, err)
	require.True(t, fired)

	// Replaying the same events must not produce a second alert.
	for _, w := range []string{"0xw1", "0xw2"} {
		fired, err = d.Observe(ctx, buyEvent(w, *now))
		require.NoError(t, err)
		assert.False(t, fired)
	}

	recorded, err := store.RecentAlerts(10)
	require.NoError(t, err)
	assert.Len(t, recorded, 1)
	assert.Len(t, rec.sent, 1)
}

func TestObserveBelowThreshold(t *testing.T) {
	d, _, rec, now := testDetector(t)
	ctx := context.Background()

	fired, err := d.Observe(ctx, buyEvent("0xw1", *now))
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Empty(t, rec.sent)

	state, err := d.State(ctx, "eth", db.SideBuy, "0xtoken")
	require.NoError(t, err)
	assert.Equal(t, StatePartial, state)
}

func TestObserveWindowEdgeEvicts(t *testing.T) {
	d, _, rec, now := testDetector(t)
	ctx := context.Background()

	_, err := d.Observe(ctx, buyEvent("0xw1", *now))
	require.NoError(t, err)

	// Second wallet arrives just past the window; the first is evicted.
	*now = now.Add(30*time.Minute + time.Second)
	fired, err := d.Observe(ctx, buyEvent("0xw2", *now))
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Empty(t, rec.sent)
}

func TestObserveJustInsideWindowFires(t *testing.T) {
	d, _, rec, now := testDetector(t)
	ctx := context.Background()

	_, err := d.Observe(ctx, buyEvent("0xw1", *now))
	require.NoError(t, err)

	*now = now.Add(30*time.Minute - time.Second)
	fired, err := d.Observe(ctx, buyEvent("0xw2", *now))
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Len(t, rec.sent, 1)
}

func TestObserveSellConfluence(t *testing.T) {
	d, _, rec, now := testDetector(t)
	ctx := context.Background()

	sell := func(w string) Event {
		return Event{Chain: "eth", Side: db.SideSell, Token: "0xtoken", Wallet: w, TS: *now}
	}

	_, err := d.Observe(ctx, sell("0xw1"))
	require.NoError(t, err)
	fired, err := d.Observe(ctx, sell("0xw2"))
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, alerts.KindSellConfluence, rec.sent[0].Kind)
}

func TestObserveSidesTrackedSeparately(t *testing.T) {
	d, _, rec, now := testDetector(t)
	ctx := context.Background()

	_, err := d.Observe(ctx, buyEvent("0xw1", *now))
	require.NoError(t, err)
	fired, err := d.Observe(ctx, Event{Chain: "eth", Side: db.SideSell, Token: "0xtoken", Wallet: "0xw2", TS: *now})
	require.NoError(t, err)

	// One buyer plus one seller is not a confluence on either side.
	assert.False(t, fired)
	assert.Empty(t, rec.sent)
}

func TestObserveLargerSetFiresAgain(t *testing.T) {
	d, store, _, now := testDetector(t)
	ctx := context.Background()

	_, err := d.Observe(ctx, buyEvent("0xw1", *now))
	require.NoError(t, err)
	fired, err := d.Observe(ctx, buyEvent("0xw2", *now))
	require.NoError(t, err)
	require.True(t, fired)

	// A third wallet changes the set identity within the same bucket.
	fired, err = d.Observe(ctx, buyEvent("0xw3", *now))
	require.NoError(t, err)
	assert.True(t, fired)

	recorded, err := store.RecentAlerts(10)
	require.NoError(t, err)
	assert.Len(t, recorded, 2)
}

func TestObserveDeliveryFailureKeepsLedgerRow(t *testing.T) {
	d, store, rec, now := testDetector(t)
	rec.fail = true
	ctx := context.Background()

	_, err := d.Observe(ctx, buyEvent("0xw1", *now))
	require.NoError(t, err)
	fired, err := d.Observe(ctx, buyEvent("0xw2", *now))
	require.NoError(t, err)

	// Transport failure is non-fatal and the ledger row blocks retries from
	// duplicating the alert.
	assert.True(t, fired)
	recorded, err := store.RecentAlerts(10)
	require.NoError(t, err)
	assert.Len(t, recorded, 1)

	fired, err = d.Observe(ctx, buyEvent("0xw2", *now))
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, 1, rec.calls)
}

func TestStateTransitions(t *testing.T) {
	d, _, _, now := testDetector(t)
	ctx := context.Background()

	state, err := d.State(ctx, "eth", db.SideBuy, "0xtoken")
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, state)

	_, err = d.Observe(ctx, buyEvent("0xw1", *now))
	require.NoError(t, err)
	state, _ = d.State(ctx, "eth", db.SideBuy, "0xtoken")
	assert.Equal(t, StatePartial, state)

	_, err = d.Observe(ctx, buyEvent("0xw2", *now))
	require.NoError(t, err)
	state, _ = d.State(ctx, "eth", db.SideBuy, "0xtoken")
	assert.Equal(t, StateFired, state)
}

func TestDedupKeyOrderInsensitive(t *testing.T) {
	a := DedupKey("eth", db.SideBuy, "0xtoken", []string{"0xw2", "0xw1"}, 7)
	b := DedupKey("eth", db.SideBuy, "0xtoken", []string{"0xw1", "0xw2"}, 7)
	c := DedupKey("eth", db.SideBuy, "0xtoken", []string{"0xw1", "0xw2"}, 8)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
