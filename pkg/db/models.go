package db

import (
	"time"

	"github.com/wallet-scout/pkg/config"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

const (
	WatchStatusActive  = "active"
	WatchStatusRemoved = "removed"
	WatchStatusPending = "pending"
)

type Token struct {
	Chain        config.Chain
	Address      string
	Symbol       string
	Name         string
	LiquidityUSD float64
	Volume24hUSD float64
	LastPriceUSD float64
	BuyTaxPct    float64
	SellTaxPct   float64
	IsHoneypot   bool
	FirstSeenAt  time.Time
}

type SeedToken struct {
	ID           int64
	Chain        config.Chain
	TokenAddress string
	Source       string
	SnapshotTS   time.Time
	Rank24h      int
	Vol24hUSD    float64
	PctChange24h float64
}

type Wallet struct {
	Chain        config.Chain
	Address      string
	Labels       []string
	IsBot        bool
	FirstSeenAt  time.Time
	LastActiveAt time.Time
}

type Trade struct {
	TxHash   string
	TS       time.Time
	Chain    config.Chain
	Wallet   string
	Token    string
	Side     string
	QtyToken float64
	PriceUSD float64
	USDValue float64
	Venue    string
}

type Position struct {
	Chain         config.Chain
	Wallet        string
	Token         string
	Qty           float64
	CostBasisUSD  float64
	RealizedUSD   float64
	UnrealizedUSD float64
	LastPriceUSD  float64
	LastTradeTS   time.Time
	UpdatedAt     time.Time
}

type WalletStats struct {
	Chain             config.Chain
	Wallet            string
	TradeCount        int
	RealizedUSD       float64
	UnrealizedUSD     float64
	BestTradeMultiple float64
	EarlyScoreMedian  float64
	MaxDrawdownPct    float64
	UpdatedAt         time.Time
}

type WatchlistEntry struct {
	Chain            config.Chain
	Wallet           string
	Score            float64
	Status           string
	AddedAt          time.Time
	LastEvaluatedAt  time.Time
	LastConfluenceAt time.Time
}

type AlertRecord struct {
	ID        int64
	DedupKey  string
	Kind      string
	Chain     config.Chain
	Token     string
	Side      string
	Wallets   []string
	WindowMS  int64
	Weights   string
	CreatedAt time.Time
}
