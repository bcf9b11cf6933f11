package analytics

import (
	"sort"
	"time"

	"github.com/wallet-scout/pkg/db"
)

// Lot is an open FIFO entry for one token position.
type Lot struct {
	Qty        float64
	UnitCost   float64
	AcquiredTS time.Time
}

// FIFOResult is the outcome of replaying one wallet's trades on one token.
type FIFOResult struct {
	RealizedUSD  float64
	OpenLots     []Lot
	BestMultiple float64
	// ClampedQty is sell quantity that exceeded open lots and was matched
	// at zero cost. Nonzero means the observed history is partial.
	ClampedQty float64
	// Series is cumulative realized PnL after each trade, for drawdown.
	Series []float64
}

// SortTrades orders trades deterministically before FIFO replay.
func SortTrades(trades []db.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].TS.Equal(trades[j].TS) {
			return trades[i].TS.Before(trades[j].TS)
		}
		return trades[i].TxHash < trades[j].TxHash
	})
}

// ComputeFIFO replays buys and sells of a single token through a FIFO lot
// queue. A sell pops from the head; matched quantity realizes
// (sell_price - lot_cost). Sells beyond open quantity match at zero cost.
func ComputeFIFO(trades []db.Trade) FIFOResult {
	SortTrades(trades)

	var res FIFOResult
	var lots []Lot

	for _, t := range trades {
		switch t.Side {
		case db.SideBuy:
			lots = append(lots, Lot{Qty: t.QtyToken, UnitCost: t.PriceUSD, AcquiredTS: t.TS})
		case db.SideSell:
			remaining := t.QtyToken
			for remaining > 0 && len(lots) > 0 {
				lot := &lots[0]
				matched := remaining
				if lot.Qty < matched {
					matched = lot.Qty
				}
				res.RealizedUSD += matched * (t.PriceUSD - lot.UnitCost)
				if lot.UnitCost > 0 {
					if m := t.PriceUSD / lot.UnitCost; m > res.BestMultiple {
						res.BestMultiple = m
					}
				}
				lot.Qty -= matched
				remaining -= matched
				if lot.Qty <= 0 {
					lots = lots[1:]
				}
			}
			if remaining > 0 {
				res.RealizedUSD += remaining * t.PriceUSD
				res.ClampedQty += remaining
			}
		}
		res.Series = append(res.Series, res.RealizedUSD)
	}

	res.OpenLots = lots
	return res
}

// WalletFIFOResult is the outcome of replaying all of a wallet's trades,
// across tokens, in one time-ordered pass.
type WalletFIFOResult struct {
	RealizedUSD  float64
	BestMultiple float64
	ClampedQty   float64
	Series       []float64
	LotsByToken  map[string][]Lot
	LastTradeTS  map[string]time.Time
}

// ComputeWalletFIFO interleaves every token's FIFO queue so the realized
// PnL series reflects the wallet's actual trade order.
func ComputeWalletFIFO(trades []db.Trade) WalletFIFOResult {
	SortTrades(trades)

	res := WalletFIFOResult{
		LotsByToken: map[string][]Lot{},
		LastTradeTS: map[string]time.Time{},
	}

	for _, t := range trades {
		lots := res.LotsByToken[t.Token]
		switch t.Side {
		case db.SideBuy:
			lots = append(lots, Lot{Qty: t.QtyToken, UnitCost: t.PriceUSD, AcquiredTS: t.TS})
		case db.SideSell:
			remaining := t.QtyToken
			for remaining > 0 && len(lots) > 0 {
				lot := &lots[0]
				matched := remaining
				if lot.Qty < matched {
					matched = lot.Qty
				}
				res.RealizedUSD += matched * (t.PriceUSD - lot.UnitCost)
				if lot.UnitCost > 0 {
					if m := t.PriceUSD / lot.UnitCost; m > res.BestMultiple {
						res.BestMultiple = m
					}
				}
				lot.Qty -= matched
				remaining -= matched
				if lot.Qty <= 0 {
					lots = lots[1:]
				}
			}
			if remaining > 0 {
				res.RealizedUSD += remaining * t.PriceUSD
				res.ClampedQty += remaining
			}
		}
		res.LotsByToken[t.Token] = lots
		res.LastTradeTS[t.Token] = t.TS
		res.Series = append(res.Series, res.RealizedUSD)
	}

	for token, lots := range res.LotsByToken {
		if len(lots) == 0 {
			delete(res.LotsByToken, token)
		}
	}
	return res
}

// UnrealizedPnL values open lots at the current price. priceKnown=false
// contributes zero rather than a fabricated gain.
func UnrealizedPnL(lots []Lot, price float64, priceKnown bool) float64 {
	if !priceKnown {
		return 0
	}
	var pnl float64
	for _, lot := range lots {
		pnl += lot.Qty * (price - lot.UnitCost)
	}
	return pnl
}

func OpenQty(lots []Lot) float64 {
	var qty float64
	for _, lot := range lots {
		qty += lot.Qty
	}
	return qty
}

func CostBasis(lots []Lot) float64 {
	var cost float64
	for _, lot := range lots {
		cost += lot.Qty * lot.UnitCost
	}
	return cost
}

// MaxDrawdownPct is the worst peak-to-trough drop of a cumulative realized
// PnL series, as a percentage of the peak. Zero when the series never
// reaches a positive peak.
func MaxDrawdownPct(series []float64) float64 {
	var peak, maxDD float64
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
