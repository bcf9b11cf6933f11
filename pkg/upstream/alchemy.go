package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/wallet-scout/pkg/config"
)

// Alchemy serves ERC-20 transfer history for the EVM chains through
// alchemy_getAssetTransfers.
type Alchemy struct {
	c          *client
	apiKey     string
	blockRange map[config.Chain]int64
}

func NewAlchemy(apiKey string, blockRange map[config.Chain]int64) *Alchemy {
	return &Alchemy{
		c:          newClient("alchemy", 250*time.Millisecond),
		apiKey:     apiKey,
		blockRange: blockRange,
	}
}

func (a *Alchemy) Name() string { return "alchemy" }

var alchemyHosts = map[config.Chain]string{
	config.ChainEthereum: "eth-mainnet",
	config.ChainBase:     "base-mainnet",
	config.ChainArbitrum: "arb-mainnet",
}

func (a *Alchemy) endpoint(chain config.Chain) (string, error) {
	host, ok := alchemyHosts[chain]
	if !ok {
		return "", fmt.Errorf("alchemy: %w: unsupported chain %s", ErrPolicyReject, chain)
	}
	return fmt.Sprintf("https://%s.g.alchemy.com/v2/%s", host, a.apiKey), nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (a *Alchemy) call(ctx context.Context, chain config.Chain, method string, params []interface{}, result interface{}) error {
	url, err := a.endpoint(chain)
	if err != nil {
		return err
	}
	payload, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	body, err := a.c.postJSON(ctx, url, payload, nil)
	if err != nil {
		return err
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("alchemy: %w: %v", ErrUpstreamSchema, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("alchemy: %w: rpc %d %s", ErrTransientUpstream, resp.Error.Code, resp.Error.Message)
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("alchemy: %w: %v", ErrUpstreamSchema, err)
	}
	return nil
}

func (a *Alchemy) headBlock(ctx context.Context, chain config.Chain) (int64, error) {
	var hexNum string
	if err := a.call(ctx, chain, "eth_blockNumber", []interface{}{}, &hexNum); err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(hexNum, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("alchemy: %w: bad block number %q", ErrUpstreamSchema, hexNum)
	}
	return n, nil
}

type assetTransfer struct {
	Hash        string   `json:"hash"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Value       *float64 `json:"value"`
	BlockNum    string   `json:"blockNum"`
	RawContract struct {
		Address string `json:"address"`
	} `json:"rawContract"`
	Metadata struct {
		BlockTimestamp string `json:"blockTimestamp"`
	} `json:"metadata"`
}

func (a *Alchemy) getTransfers(ctx context.Context, chain config.Chain, params map[string]interface{}) ([]Transfer, error) {
	var result struct {
		Transfers []assetTransfer `json:"transfers"`
	}
	if err := a.call(ctx, chain, "alchemy_getAssetTransfers", []interface{}{params}, &result); err != nil {
		return nil, err
	}

	var out []Transfer
	for _, t := range result.Transfers {
		if t.Hash == "" || t.Value == nil {
			continue
		}
		block, _ := strconv.ParseInt(t.BlockNum, 0, 64)
		ts, _ := time.Parse(time.RFC3339, t.Metadata.BlockTimestamp)
		out = append(out, Transfer{
			TxHash: t.Hash,
			From:   config.NormalizeAddress(chain, t.From),
			To:     config.NormalizeAddress(chain, t.To),
			Token:  config.NormalizeAddress(chain, t.RawContract.Address),
			Amount: *t.Value,
			Block:  block,
			TS:     ts,
		})
	}
	return out, nil
}

func (a *Alchemy) FetchTokenTransfers(ctx context.Context, chain config.Chain, token string, limit int) ([]Transfer, error) {
	head, err := a.headBlock(ctx, chain)
	if err != nil {
		return nil, err
	}
	fromBlock := head - a.blockRange[chain]
	if fromBlock < 0 {
		fromBlock = 0
	}

	return a.getTransfers(ctx, chain, map[string]interface{}{
		"fromBlock":         fmt.Sprintf("0x%x", fromBlock),
		"toBlock":           "latest",
		"contractAddresses": []string{token},
		"category":          []string{"erc20"},
		"withMetadata":      true,
		"maxCount":          fmt.Sprintf("0x%x", limit),
		"order":             "desc",
	})
}

func (a *Alchemy) FetchWalletTransfers(ctx context.Context, chain config.Chain, wallet string, dir Direction, limit int) ([]Transfer, error) {
	params := map[string]interface{}{
		"fromBlock":    "0x0",
		"toBlock":      "latest",
		"category":     []string{"erc20"},
		"withMetadata": true,
		"maxCount":     fmt.Sprintf("0x%x", limit),
		"order":        "desc",
	}
	if dir == DirIn {
		params["toAddress"] = wallet
	} else {
		params["fromAddress"] = wallet
	}
	return a.getTransfers(ctx, chain, params)
}
