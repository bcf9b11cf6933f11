package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/wallet-scout/pkg/config"
)

// Error kinds shared by every adapter. Callers match with errors.Is and
// react per kind; none of these are fatal to a job.
var (
	ErrTransientUpstream = errors.New("transient upstream failure")
	ErrUpstreamSchema    = errors.New("malformed upstream payload")
	ErrRateLimited       = errors.New("rate limited")
	ErrPriceMissing      = errors.New("no price available")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrPolicyReject      = errors.New("rejected by policy")
)

// TokenSnapshot is one row of a trending feed.
type TokenSnapshot struct {
	Address      string
	Symbol       string
	PriceUSD     float64
	LiquidityUSD float64
	Volume24hUSD float64
	PctChange24h float64
	Venue        string
}

// Transfer is a raw token movement before swap classification.
type Transfer struct {
	TxHash  string
	From    string
	To      string
	Token   string
	Amount  float64
	Block   int64
	TS      time.Time
}

type Direction string

const (
	DirIn  Direction = "in"
	DirOut Direction = "out"
)

type SafetyReport struct {
	BuyTaxPct  float64
	SellTaxPct float64
	IsHoneypot bool
}

type TrendingSource interface {
	Name() string
	FetchTrending(ctx context.Context, chain config.Chain) ([]TokenSnapshot, error)
}

type TransferSource interface {
	Name() string
	FetchTokenTransfers(ctx context.Context, chain config.Chain, token string, limit int) ([]Transfer, error)
	FetchWalletTransfers(ctx context.Context, chain config.Chain, wallet string, dir Direction, limit int) ([]Transfer, error)
}

type PriceSource interface {
	Name() string
	PriceOf(ctx context.Context, chain config.Chain, token string) (float64, error)
}

type SafetySource interface {
	Name() string
	SafetyCheck(ctx context.Context, chain config.Chain, token string) (SafetyReport, error)
}

// Registry maps chains to adapters. Built once at startup and read-only
// afterwards; fallback order is the registration order.
type Registry struct {
	trending  map[config.Chain][]TrendingSource
	transfers map[config.Chain]TransferSource
	prices    map[config.Chain][]PriceSource
	safety    map[config.Chain]SafetySource
}

func NewRegistry() *Registry {
	return &Registry{
		trending:  map[config.Chain][]TrendingSource{},
		transfers: map[config.Chain]TransferSource{},
		prices:    map[config.Chain][]PriceSource{},
		safety:    map[config.Chain]SafetySource{},
	}
}

func (r *Registry) RegisterTrending(chain config.Chain, src TrendingSource) {
	r.trending[chain] = append(r.trending[chain], src)
}

func (r *Registry) RegisterTransfers(chain config.Chain, src TransferSource) {
	r.transfers[chain] = src
}

func (r *Registry) RegisterPrices(chain config.Chain, src PriceSource) {
	r.prices[chain] = append(r.prices[chain], src)
}

func (r *Registry) RegisterSafety(chain config.Chain, src SafetySource) {
	r.safety[chain] = src
}

func (r *Registry) Trending(chain config.Chain) []TrendingSource {
	return r.trending[chain]
}

func (r *Registry) Transfers(chain config.Chain) TransferSource {
	return r.transfers[chain]
}

func (r *Registry) Prices(chain config.Chain) []PriceSource {
	return r.prices[chain]
}

func (r *Registry) Safety(chain config.Chain) SafetySource {
	return r.safety[chain]
}
