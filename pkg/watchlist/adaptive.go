package watchlist

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
)

const (
	maxWeightStep  = 0.05
	minWeight      = 0.05
	outcomeWindow  = 7 * 24 * time.Hour
	adjustInterval = 24 * time.Hour
)

// FactorSignal is a per-factor performance reading in [-1, 1]: positive
// when the factor separated winning alerted wallets from losing ones.
type FactorSignal struct {
	PnL      float64
	Activity float64
	Early    float64
}

// WeightController owns the composite weights. When adaptive mode is on it
// nudges them from recent alert outcomes, at most 0.05 per weight per day,
// always renormalized to sum 1.
type WeightController struct {
	cfg   *config.Config
	store *db.Store

	mu         sync.RWMutex
	current    config.Weights
	lastAdjust time.Time
}

func NewWeightController(cfg *config.Config, store *db.Store) *WeightController {
	return &WeightController{cfg: cfg, store: store, current: cfg.ScoreWeights}
}

func (w *WeightController) Current() config.Weights {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Evaluate reads alert outcomes and adjusts the weights. A no-op unless
// adaptive mode is enabled and a day has passed since the last move.
func (w *WeightController) Evaluate(ctx context.Context, now time.Time) {
	if !w.cfg.AdaptiveWeights {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if now.Sub(w.lastAdjust) < adjustInterval {
		return
	}

	signal, samples := w.measure(now)
	if samples < 3 {
		return
	}

	prev := w.current
	w.current = AdjustWeights(prev, signal)
	w.lastAdjust = now

	log.Info().
		Float64("pnl", w.current.PnL).
		Float64("activity", w.current.Activity).
		Float64("early", w.current.Early).
		Int("samples", samples).
		Msg("⚖️ adjusted composite weights")
}

// measure splits wallets from recent alerts into winners and losers by
// total PnL, then compares each factor's mean between the groups.
func (w *WeightController) measure(now time.Time) (FactorSignal, int) {
	alerts, err := w.store.AlertsSince(now.Add(-outcomeWindow))
	if err != nil {
		return FactorSignal{}, 0
	}

	type sample struct {
		win              bool
		pnl, act, early  float64
	}
	seen := map[string]bool{}
	var samples []sample

	for _, a := range alerts {
		for _, wallet := range a.Wallets {
			key := string(a.Chain) + ":" + wallet
			if seen[key] {
				continue
			}
			seen[key] = true

			st, err := w.store.GetStats(a.Chain, wallet)
			if err != nil {
				continue
			}
			samples = append(samples, sample{
				win:   st.RealizedUSD+st.UnrealizedUSD > 0,
				pnl:   st.UnrealizedUSD,
				act:   float64(st.TradeCount),
				early: st.EarlyScoreMedian,
			})
		}
	}
	if len(samples) == 0 {
		return FactorSignal{}, 0
	}

	var winN, loseN float64
	var win, lose sample
	for _, s := range samples {
		if s.win {
			winN++
			win.pnl += s.pnl
			win.act += s.act
			win.early += s.early
		} else {
			loseN++
			lose.pnl += s.pnl
			lose.act += s.act
			lose.early += s.early
		}
	}
	if winN == 0 || loseN == 0 {
		return FactorSignal{}, len(samples)
	}

	return FactorSignal{
		PnL:      sign(win.pnl/winN - lose.pnl/loseN),
		Activity: sign(win.act/winN - lose.act/loseN),
		Early:    sign(win.early/winN - lose.early/loseN),
	}, len(samples)
}

// AdjustWeights moves each weight by at most maxWeightStep in the signal's
// direction while keeping the sum at 1. Steps are centered so they cancel
// out, then scaled down if any single move would exceed the bound.
func AdjustWeights(prev config.Weights, s FactorSignal) config.Weights {
	steps := []float64{
		maxWeightStep * s.PnL,
		maxWeightStep * s.Activity,
		maxWeightStep * s.Early,
	}
	mean := (steps[0] + steps[1] + steps[2]) / 3
	var maxAbs float64
	for i := range steps {
		steps[i] -= mean
		if a := abs(steps[i]); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs > maxWeightStep {
		scale := maxWeightStep / maxAbs
		for i := range steps {
			steps[i] *= scale
		}
	}

	next := config.Weights{
		PnL:      prev.PnL + steps[0],
		Activity: prev.Activity + steps[1],
		Early:    prev.Early + steps[2],
	}

	// Floor, then renormalize the residual.
	if next.PnL < minWeight {
		next.PnL = minWeight
	}
	if next.Activity < minWeight {
		next.Activity = minWeight
	}
	if next.Early < minWeight {
		next.Early = minWeight
	}
	sum := next.PnL + next.Activity + next.Early
	next.PnL /= sum
	next.Activity /= sum
	next.Early /= sum
	return next
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
