package confluence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wallet-scout/pkg/alerts"
	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
)

// Key states, in escalation order.
const (
	StateEmpty   = "empty"
	StatePartial = "partial"
	StateArmed   = "armed"
	StateFired   = "fired"
)

// Event is one classified trade by a watched wallet.
type Event struct {
	Chain  config.Chain
	Side   string
	Token  string
	Wallet string
	TS     time.Time
}

// Detector maintains sliding windows of watched-wallet activity per
// (chain, side, token) and emits at most one alert per distinct wallet set
// per window bucket.
type Detector struct {
	cfg     *config.Config
	windows WindowStore
	ledger  *db.Store
	alerter alerts.Alerter
	weights func() config.Weights
	now     func() time.Time
}

func NewDetector(cfg *config.Config, windows WindowStore, ledger *db.Store, alerter alerts.Alerter, weights func() config.Weights) *Detector {
	return &Detector{
		cfg:     cfg,
		windows: windows,
		ledger:  ledger,
		alerter: alerter,
		weights: weights,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the detector's time source.
func (d *Detector) SetClock(now func() time.Time) { d.now = now }

func windowKey(chain config.Chain, side, token string) string {
	return fmt.Sprintf("confluence:%s:%s:%s", chain, side, token)
}

// DedupKey hashes the alert identity: same chain, side, token, wallet set,
// and window bucket always collapse to one alert.
func DedupKey(chain config.Chain, side, token string, wallets []string, bucket int64) string {
	sorted := make([]string, len(wallets))
	copy(sorted, wallets)
	sort.Strings(sorted)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d", chain, side, token, strings.Join(sorted, ","), bucket)
	return hex.EncodeToString(h.Sum(nil))
}

// Observe records the event and evaluates the window. Returns true when a
// new alert was emitted.
func (d *Detector) Observe(ctx context.Context, ev Event) (bool, error) {
	key := windowKey(ev.Chain, ev.Side, ev.Token)
	now := d.now()

	if err := d.windows.Record(ctx, key, ev.Wallet, ev.TS, d.cfg.ConfluenceWindow); err != nil {
		return false, err
	}

	members, err := d.windows.Members(ctx, key, now.Add(-d.cfg.ConfluenceWindow))
	if err != nil {
		return false, err
	}

	distinct := distinctWallets(members)
	if len(distinct) < d.cfg.MinConfluence {
		return false, nil
	}

	bucket := now.Unix() / int64(d.cfg.ConfluenceWindow.Seconds())
	dedup := DedupKey(ev.Chain, ev.Side, ev.Token, distinct, bucket)

	kind := alerts.KindBuyConfluence
	if ev.Side == db.SideSell {
		kind = alerts.KindSellConfluence
	}

	weights := d.weights()
	weightsJSON := fmt.Sprintf(`{"pnl":%.2f,"activity":%.2f,"early":%.2f}`,
		weights.PnL, weights.Activity, weights.Early)

	inserted, err := d.ledger.InsertAlert(db.AlertRecord{
		DedupKey:  dedup,
		Kind:      kind,
		Chain:     ev.Chain,
		Token:     ev.Token,
		Side:      ev.Side,
		Wallets:   distinct,
		WindowMS:  windowSpanMS(members),
		Weights:   weightsJSON,
		CreatedAt: now,
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		// Same wallet set, same bucket: already fired.
		return false, nil
	}

	for _, w := range distinct {
		_ = d.ledger.TouchConfluence(ev.Chain, w, now)
	}

	log.Info().Str("chain", string(ev.Chain)).Str("side", ev.Side).
		Str("token", ev.Token).Strs("wallets", distinct).
		Msg("🚨 confluence detected")

	if d.alerter != nil {
		if err := d.alerter.EmitAlert(ctx, d.buildAlert(kind, ev, distinct, members, dedup)); err != nil {
			// The ledger row already exists, so a transport failure cannot
			// cause a duplicate on retry; surface it and move on.
			log.Warn().Err(err).Str("dedup", dedup[:12]).Msg("alert delivery failed")
		}
	}
	return true, nil
}

// State reports the current key state for dashboards and tests.
func (d *Detector) State(ctx context.Context, chain config.Chain, side, token string) (string, error) {
	now := d.now()
	members, err := d.windows.Members(ctx, windowKey(chain, side, token), now.Add(-d.cfg.ConfluenceWindow))
	if err != nil {
		return "", err
	}

	distinct := distinctWallets(members)
	switch {
	case len(distinct) == 0:
		return StateEmpty, nil
	case len(distinct) < d.cfg.MinConfluence:
		return StatePartial, nil
	}

	bucket := now.Unix() / int64(d.cfg.ConfluenceWindow.Seconds())
	if d.ledgerHas(DedupKey(chain, side, token, distinct, bucket)) {
		return StateFired, nil
	}
	// Bucket rollover degrades fired back to armed.
	return StateArmed, nil
}

func (d *Detector) ledgerHas(dedup string) bool {
	recent, err := d.ledger.RecentAlerts(200)
	if err != nil {
		return false
	}
	for _, a := range recent {
		if a.DedupKey == dedup {
			return true
		}
	}
	return false
}

func (d *Detector) buildAlert(kind string, ev Event, wallets []string, members []Member, dedup string) alerts.Alert {
	a := alerts.Alert{
		Kind:     kind,
		Chain:    ev.Chain,
		Token:    ev.Token,
		Side:     ev.Side,
		WindowMS: windowSpanMS(members),
		DedupKey: dedup,
	}

	if tok, err := d.ledger.GetToken(ev.Chain, ev.Token); err == nil {
		a.TokenSymbol = tok.Symbol
		a.PriceUSD = tok.LastPriceUSD
	}
	if a.PriceUSD == 0 {
		if p, ok := d.ledger.LastTradePrice(ev.Chain, ev.Token); ok {
			a.PriceUSD = p
		}
	}

	for _, w := range wallets {
		snap := alerts.WalletSnapshot{Address: w}
		if st, err := d.ledger.GetStats(ev.Chain, w); err == nil {
			snap.TradeCount = st.TradeCount
			snap.RealizedUSD = st.RealizedUSD
			snap.UnrealizedUSD = st.UnrealizedUSD
			snap.BestMultiple = st.BestTradeMultiple
			snap.EarlyMedian = st.EarlyScoreMedian
		}
		a.Wallets = append(a.Wallets, snap)
	}
	return a
}

func distinctWallets(members []Member) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range members {
		if !seen[m.Wallet] {
			seen[m.Wallet] = true
			out = append(out, m.Wallet)
		}
	}
	sort.Strings(out)
	return out
}

// windowSpanMS is the spread between the earliest and latest member.
func windowSpanMS(members []Member) int64 {
	if len(members) == 0 {
		return 0
	}
	min, max := members[0].TS, members[0].TS
	for _, m := range members[1:] {
		if m.TS.Before(min) {
			min = m.TS
		}
		if m.TS.After(max) {
			max = m.TS
		}
	}
	return max.Sub(min).Milliseconds()
}
