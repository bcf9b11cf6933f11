package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wallet-scout/pkg/config"
)

// HoneypotIs checks EVM tokens for honeypot behavior and buy/sell taxes.
// Reports are cached; a token's tax profile rarely changes within minutes.
type HoneypotIs struct {
	c     *client
	cache *ttlCache
}

func NewHoneypotIs() *HoneypotIs {
	return &HoneypotIs{
		c:     newClient("honeypot.is", 2*time.Second),
		cache: newTTLCache(5 * time.Minute),
	}
}

func (h *HoneypotIs) Name() string { return "honeypot.is" }

var honeypotChainIDs = map[config.Chain]int{
	config.ChainEthereum: 1,
	config.ChainBase:     8453,
	config.ChainArbitrum: 42161,
}

func (h *HoneypotIs) SafetyCheck(ctx context.Context, chain config.Chain, token string) (SafetyReport, error) {
	chainID, ok := honeypotChainIDs[chain]
	if !ok {
		return SafetyReport{}, fmt.Errorf("honeypot.is: %w: unsupported chain %s", ErrPolicyReject, chain)
	}

	cacheKey := string(chain) + ":" + token
	if v, ok := h.cache.get(cacheKey); ok {
		return v.(SafetyReport), nil
	}

	url := fmt.Sprintf("https://api.honeypot.is/v2/IsHoneypot?address=%s&chainID=%d", token, chainID)
	body, err := h.c.getJSON(ctx, url, nil)
	if err != nil {
		return SafetyReport{}, err
	}

	var resp struct {
		HoneypotResult struct {
			IsHoneypot bool `json:"isHoneypot"`
		} `json:"honeypotResult"`
		SimulationResult struct {
			BuyTax  float64 `json:"buyTax"`
			SellTax float64 `json:"sellTax"`
		} `json:"simulationResult"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return SafetyReport{}, fmt.Errorf("honeypot.is: %w: %v", ErrUpstreamSchema, err)
	}

	report := SafetyReport{
		BuyTaxPct:  resp.SimulationResult.BuyTax,
		SellTaxPct: resp.SimulationResult.SellTax,
		IsHoneypot: resp.HoneypotResult.IsHoneypot,
	}
	h.cache.set(cacheKey, report)
	return report, nil
}
