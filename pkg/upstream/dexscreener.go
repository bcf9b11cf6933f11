package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/wallet-scout/pkg/config"
)

// DexScreener serves trending feeds and prices for every chain, no key
// required. Free tier allows roughly one call per 2s per endpoint family.
type DexScreener struct {
	c     *client
	cache *ttlCache
}

func NewDexScreener() *DexScreener {
	return &DexScreener{
		c:     newClient("dexscreener", 2*time.Second),
		cache: newTTLCache(5 * time.Minute),
	}
}

func (d *DexScreener) Name() string { return "dexscreener" }

var dexScreenerChainIDs = map[config.Chain]string{
	config.ChainEthereum: "ethereum",
	config.ChainBase:     "base",
	config.ChainArbitrum: "arbitrum",
	config.ChainSolana:   "solana",
}

type dsPair struct {
	ChainID   string `json:"chainId"`
	DexID     string `json:"dexId"`
	PriceUSD  string `json:"priceUsd"`
	BaseToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
}

func (d *DexScreener) FetchTrending(ctx context.Context, chain config.Chain) ([]TokenSnapshot, error) {
	chainID, ok := dexScreenerChainIDs[chain]
	if !ok {
		return nil, fmt.Errorf("dexscreener: %w: unsupported chain %s", ErrPolicyReject, chain)
	}

	// Token boosts surface the currently promoted/trending set; pair
	// lookups fill in liquidity and volume.
	body, err := d.c.getJSON(ctx, "https://api.dexscreener.com/token-boosts/top/v1", nil)
	if err != nil {
		return nil, err
	}

	var boosts []struct {
		ChainID      string `json:"chainId"`
		TokenAddress string `json:"tokenAddress"`
	}
	if err := json.Unmarshal(body, &boosts); err != nil {
		return nil, fmt.Errorf("dexscreener: %w: %v", ErrUpstreamSchema, err)
	}

	var out []TokenSnapshot
	for _, b := range boosts {
		if b.ChainID != chainID || b.TokenAddress == "" {
			continue
		}
		snap, err := d.tokenSnapshot(ctx, chain, b.TokenAddress)
		if err != nil {
			continue
		}
		out = append(out, snap)
		if len(out) >= 25 {
			break
		}
	}
	return out, nil
}

func (d *DexScreener) tokenSnapshot(ctx context.Context, chain config.Chain, token string) (TokenSnapshot, error) {
	pairs, err := d.pairsFor(ctx, chain, token)
	if err != nil {
		return TokenSnapshot{}, err
	}
	if len(pairs) == 0 {
		return TokenSnapshot{}, fmt.Errorf("dexscreener: %w", ErrPriceMissing)
	}
	p := pairs[0]
	var price float64
	fmt.Sscanf(p.PriceUSD, "%f", &price)
	return TokenSnapshot{
		Address:      config.NormalizeAddress(chain, p.BaseToken.Address),
		Symbol:       p.BaseToken.Symbol,
		PriceUSD:     price,
		LiquidityUSD: p.Liquidity.USD,
		Volume24hUSD: p.Volume.H24,
		PctChange24h: p.PriceChange.H24,
		Venue:        p.DexID,
	}, nil
}

// pairsFor returns the token's pairs on the chain, deepest liquidity first.
func (d *DexScreener) pairsFor(ctx context.Context, chain config.Chain, token string) ([]dsPair, error) {
	cacheKey := string(chain) + ":" + token
	if v, ok := d.cache.get(cacheKey); ok {
		return v.([]dsPair), nil
	}

	url := fmt.Sprintf("https://api.dexscreener.com/latest/dex/tokens/%s", token)
	body, err := d.c.getJSON(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Pairs []dsPair `json:"pairs"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener: %w: %v", ErrUpstreamSchema, err)
	}

	chainID := dexScreenerChainIDs[chain]
	var pairs []dsPair
	for _, p := range resp.Pairs {
		if p.ChainID == chainID {
			pairs = append(pairs, p)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Liquidity.USD > pairs[j].Liquidity.USD
	})

	d.cache.set(cacheKey, pairs)
	return pairs, nil
}

func (d *DexScreener) PriceOf(ctx context.Context, chain config.Chain, token string) (float64, error) {
	pairs, err := d.pairsFor(ctx, chain, token)
	if err != nil {
		return 0, err
	}
	for _, p := range pairs {
		var price float64
		if _, err := fmt.Sscanf(p.PriceUSD, "%f", &price); err == nil && price > 0 {
			return price, nil
		}
	}
	return 0, fmt.Errorf("dexscreener: %w", ErrPriceMissing)
}
