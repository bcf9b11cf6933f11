package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wallet-scout/pkg/config"
)

// Birdeye covers Solana trending and prices. Keyed; free tier wants one
// call per second.
type Birdeye struct {
	c      *client
	apiKey string
	cache  *ttlCache
}

func NewBirdeye(apiKey string) *Birdeye {
	return &Birdeye{
		c:      newClient("birdeye", time.Second),
		apiKey: apiKey,
		cache:  newTTLCache(5 * time.Minute),
	}
}

func (b *Birdeye) Name() string { return "birdeye" }

func (b *Birdeye) headers() map[string]string {
	return map[string]string{
		"X-API-KEY": b.apiKey,
		"x-chain":   "solana",
	}
}

func (b *Birdeye) FetchTrending(ctx context.Context, chain config.Chain) ([]TokenSnapshot, error) {
	if chain != config.ChainSolana {
		return nil, fmt.Errorf("birdeye: %w: unsupported chain %s", ErrPolicyReject, chain)
	}

	url := "https://public-api.birdeye.so/defi/token_trending?sort_by=rank&sort_type=asc&limit=20"
	body, err := b.c.getJSON(ctx, url, b.headers())
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Tokens []struct {
				Address   string  `json:"address"`
				Symbol    string  `json:"symbol"`
				Price     float64 `json:"price"`
				Liquidity float64 `json:"liquidity"`
				Volume24h float64 `json:"volume24hUSD"`
			} `json:"tokens"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("birdeye: %w: %v", ErrUpstreamSchema, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("birdeye: %w: success=false", ErrTransientUpstream)
	}

	var out []TokenSnapshot
	for _, t := range resp.Data.Tokens {
		if t.Address == "" {
			continue
		}
		out = append(out, TokenSnapshot{
			Address:      t.Address,
			Symbol:       t.Symbol,
			PriceUSD:     t.Price,
			LiquidityUSD: t.Liquidity,
			Volume24hUSD: t.Volume24h,
		})
	}
	return out, nil
}

func (b *Birdeye) PriceOf(ctx context.Context, chain config.Chain, token string) (float64, error) {
	if chain != config.ChainSolana {
		return 0, fmt.Errorf("birdeye: %w", ErrPriceMissing)
	}

	if v, ok := b.cache.get(token); ok {
		return v.(float64), nil
	}

	url := fmt.Sprintf("https://public-api.birdeye.so/defi/price?address=%s", token)
	body, err := b.c.getJSON(ctx, url, b.headers())
	if err != nil {
		return 0, err
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Value float64 `json:"value"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("birdeye: %w: %v", ErrUpstreamSchema, err)
	}
	if !resp.Success || resp.Data.Value <= 0 {
		return 0, fmt.Errorf("birdeye: %w", ErrPriceMissing)
	}

	b.cache.set(token, resp.Data.Value)
	return resp.Data.Value, nil
}
