package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wallet-scout/pkg/config"
)

// GeckoTerminal is the second trending feed and a price fallback. Free
// tier is 30 calls/min.
type GeckoTerminal struct {
	c     *client
	cache *ttlCache
}

func NewGeckoTerminal() *GeckoTerminal {
	return &GeckoTerminal{
		c:     newClient("geckoterminal", 2*time.Second),
		cache: newTTLCache(5 * time.Minute),
	}
}

func (g *GeckoTerminal) Name() string { return "geckoterminal" }

var geckoNetworks = map[config.Chain]string{
	config.ChainEthereum: "eth",
	config.ChainBase:     "base",
	config.ChainArbitrum: "arbitrum",
	config.ChainSolana:   "solana",
}

type gtPool struct {
	Attributes struct {
		Name              string `json:"name"`
		BaseTokenPriceUSD string `json:"base_token_price_usd"`
		ReserveUSD        string `json:"reserve_in_usd"`
		VolumeUSD         struct {
			H24 string `json:"h24"`
		} `json:"volume_usd"`
		PriceChangePct struct {
			H24 string `json:"h24"`
		} `json:"price_change_percentage"`
	} `json:"attributes"`
	Relationships struct {
		BaseToken struct {
			Data struct {
				ID string `json:"id"` // "<network>_<address>"
			} `json:"data"`
		} `json:"base_token"`
		Dex struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"dex"`
	} `json:"relationships"`
}

func (g *GeckoTerminal) FetchTrending(ctx context.Context, chain config.Chain) ([]TokenSnapshot, error) {
	network, ok := geckoNetworks[chain]
	if !ok {
		return nil, fmt.Errorf("geckoterminal: %w: unsupported chain %s", ErrPolicyReject, chain)
	}

	url := fmt.Sprintf("https://api.geckoterminal.com/api/v2/networks/%s/trending_pools", network)
	body, err := g.c.getJSON(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []gtPool `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("geckoterminal: %w: %v", ErrUpstreamSchema, err)
	}

	var out []TokenSnapshot
	for _, pool := range resp.Data {
		addr := tokenAddrFromID(pool.Relationships.BaseToken.Data.ID)
		if addr == "" {
			continue
		}
		symbol := pool.Attributes.Name
		if i := strings.Index(symbol, " /"); i > 0 {
			symbol = symbol[:i]
		}
		out = append(out, TokenSnapshot{
			Address:      config.NormalizeAddress(chain, addr),
			Symbol:       symbol,
			PriceUSD:     parseF(pool.Attributes.BaseTokenPriceUSD),
			LiquidityUSD: parseF(pool.Attributes.ReserveUSD),
			Volume24hUSD: parseF(pool.Attributes.VolumeUSD.H24),
			PctChange24h: parseF(pool.Attributes.PriceChangePct.H24),
			Venue:        pool.Relationships.Dex.Data.ID,
		})
	}
	return out, nil
}

func (g *GeckoTerminal) PriceOf(ctx context.Context, chain config.Chain, token string) (float64, error) {
	network, ok := geckoNetworks[chain]
	if !ok {
		return 0, fmt.Errorf("geckoterminal: %w", ErrPriceMissing)
	}

	cacheKey := string(chain) + ":" + token
	if v, ok := g.cache.get(cacheKey); ok {
		return v.(float64), nil
	}

	url := fmt.Sprintf("https://api.geckoterminal.com/api/v2/simple/networks/%s/token_price/%s", network, token)
	body, err := g.c.getJSON(ctx, url, nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Data struct {
			Attributes struct {
				TokenPrices map[string]string `json:"token_prices"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("geckoterminal: %w: %v", ErrUpstreamSchema, err)
	}

	for _, v := range resp.Data.Attributes.TokenPrices {
		if price := parseF(v); price > 0 {
			g.cache.set(cacheKey, price)
			return price, nil
		}
	}
	return 0, fmt.Errorf("geckoterminal: %w", ErrPriceMissing)
}

// tokenAddrFromID strips the network prefix from "eth_0xabc..." style IDs.
func tokenAddrFromID(id string) string {
	if i := strings.Index(id, "_"); i >= 0 {
		return id[i+1:]
	}
	return id
}

func parseF(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
