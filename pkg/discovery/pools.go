package discovery

import (
	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
	"github.com/wallet-scout/pkg/upstream"
)

// Swap is a transfer that passed DEX classification.
type Swap struct {
	Side     string
	Wallet   string
	Pool     string
	Transfer upstream.Transfer
}

// PoolAddresses tallies outgoing transfers per sender within the window.
// Addresses sending the token more than threshold times are treated as
// liquidity pools.
func PoolAddresses(transfers []upstream.Transfer, threshold int) map[string]bool {
	sends := map[string]int{}
	for _, t := range transfers {
		sends[t.From]++
	}
	pools := map[string]bool{}
	for addr, n := range sends {
		if n > threshold {
			pools[addr] = true
		}
	}
	return pools
}

// ClassifySwaps applies the pool heuristic to a raw transfer stream. A
// transfer from a pool is a buy (the receiver is the buyer); a transfer
// into a pool is a sell (the sender is the seller). Anything else, and
// anything whose counterparty wallet is itself a pool or a known router,
// is discarded.
func ClassifySwaps(chain config.Chain, transfers []upstream.Transfer, threshold int) []Swap {
	pools := PoolAddresses(transfers, threshold)

	var swaps []Swap
	for _, t := range transfers {
		switch {
		case pools[t.From] && !pools[t.To]:
			if skipWallet(chain, t.To) {
				continue
			}
			swaps = append(swaps, Swap{Side: db.SideBuy, Wallet: t.To, Pool: t.From, Transfer: t})
		case pools[t.To] && !pools[t.From]:
			if skipWallet(chain, t.From) {
				continue
			}
			swaps = append(swaps, Swap{Side: db.SideSell, Wallet: t.From, Pool: t.To, Transfer: t})
		}
	}
	return swaps
}

func skipWallet(chain config.Chain, addr string) bool {
	return addr == "" || config.IsDEXRouter(chain, addr)
}
