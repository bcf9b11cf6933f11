package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wallet-scout/pkg/config"
)

// Helius serves parsed Solana transaction history; SWAP-typed transactions
// carry the token movements we care about.
type Helius struct {
	c      *client
	apiKey string
}

func NewHelius(apiKey string) *Helius {
	return &Helius{
		c:      newClient("helius", 200*time.Millisecond),
		apiKey: apiKey,
	}
}

func (h *Helius) Name() string { return "helius" }

type heliusTx struct {
	Signature      string `json:"signature"`
	Timestamp      int64  `json:"timestamp"`
	Slot           int64  `json:"slot"`
	Source         string `json:"source"`
	TokenTransfers []struct {
		FromUserAccount string  `json:"fromUserAccount"`
		ToUserAccount   string  `json:"toUserAccount"`
		Mint            string  `json:"mint"`
		TokenAmount     float64 `json:"tokenAmount"`
	} `json:"tokenTransfers"`
}

func (h *Helius) fetchAddressTxs(ctx context.Context, address string, limit int) ([]heliusTx, error) {
	url := fmt.Sprintf("https://api.helius.xyz/v0/addresses/%s/transactions?api-key=%s&type=SWAP&limit=%d",
		address, h.apiKey, limit)
	body, err := h.c.getJSON(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	var txs []heliusTx
	if err := json.Unmarshal(body, &txs); err != nil {
		return nil, fmt.Errorf("helius: %w: %v", ErrUpstreamSchema, err)
	}
	return txs, nil
}

func transfersFromTxs(txs []heliusTx, token string) []Transfer {
	var out []Transfer
	for _, tx := range txs {
		for _, tt := range tx.TokenTransfers {
			if token != "" && tt.Mint != token {
				continue
			}
			if tt.Mint == "" || tt.TokenAmount <= 0 {
				continue
			}
			out = append(out, Transfer{
				TxHash: tx.Signature,
				From:   tt.FromUserAccount,
				To:     tt.ToUserAccount,
				Token:  tt.Mint,
				Amount: tt.TokenAmount,
				Block:  tx.Slot,
				TS:     time.Unix(tx.Timestamp, 0).UTC(),
			})
		}
	}
	return out
}

func (h *Helius) FetchTokenTransfers(ctx context.Context, chain config.Chain, token string, limit int) ([]Transfer, error) {
	if chain != config.ChainSolana {
		return nil, fmt.Errorf("helius: %w: unsupported chain %s", ErrPolicyReject, chain)
	}
	txs, err := h.fetchAddressTxs(ctx, token, limit)
	if err != nil {
		return nil, err
	}
	return transfersFromTxs(txs, token), nil
}

func (h *Helius) FetchWalletTransfers(ctx context.Context, chain config.Chain, wallet string, dir Direction, limit int) ([]Transfer, error) {
	if chain != config.ChainSolana {
		return nil, fmt.Errorf("helius: %w: unsupported chain %s", ErrPolicyReject, chain)
	}
	txs, err := h.fetchAddressTxs(ctx, wallet, limit)
	if err != nil {
		return nil, err
	}

	// Helius returns both directions in one stream; keep only the side
	// the caller asked for.
	var out []Transfer
	for _, t := range transfersFromTxs(txs, "") {
		switch dir {
		case DirIn:
			if t.To == wallet {
				out = append(out, t)
			}
		case DirOut:
			if t.From == wallet {
				out = append(out, t)
			}
		}
	}
	return out, nil
}
