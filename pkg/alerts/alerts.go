package alerts

import (
	"context"

	"github.com/wallet-scout/pkg/config"
)

const (
	KindBuyConfluence  = "buy_confluence"
	KindSellConfluence = "sell_confluence"
)

// WalletSnapshot is a wallet's 30-day stats at alert time.
type WalletSnapshot struct {
	Address       string
	TradeCount    int
	RealizedUSD   float64
	UnrealizedUSD float64
	BestMultiple  float64
	EarlyMedian   float64
}

// Alert is the outbound payload for one confluence event.
type Alert struct {
	Kind        string
	Chain       config.Chain
	Token       string
	TokenSymbol string
	Side        string
	Wallets     []WalletSnapshot
	WindowMS    int64
	PriceUSD    float64
	DedupKey    string
}

// Alerter delivers alerts to a chat transport. Implementations report
// transient failures as errors; the caller owns retries and dedup.
type Alerter interface {
	EmitAlert(ctx context.Context, a Alert) error
}

// NopAlerter swallows alerts when no transport is configured.
type NopAlerter struct{}

func (NopAlerter) EmitAlert(context.Context, Alert) error { return nil }
