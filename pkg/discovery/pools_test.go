package discovery

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
	"github.com/wallet-scout/pkg/upstream"
)

func xfer(from, to string, i int) upstream.Transfer {
	return upstream.Transfer{
		TxHash: fmt.Sprintf("0xtx%03d", i),
		From:   from,
		To:     to,
		Token:  "0xtoken",
		Amount: 100,
		Block:  int64(1000 + i),
		TS:     time.Date(2026, 8, 1, 12, 0, i, 0, time.UTC),
	}
}

func TestPoolAddresses(t *testing.T) {
	var transfers []upstream.Transfer
	for i := 0; i < 10; i++ {
		transfers = append(transfers, xfer("0xaaa", fmt.Sprintf("0xb%02d", i), i))
	}
	transfers = append(transfers, xfer("0xaaa", "0xccc", 10))
	transfers = append(transfers, xfer("0xddd", "0xb00", 11))

	pools := PoolAddresses(transfers, 2)

	require.Len(t, pools, 1)
	assert.True(t, pools["0xaaa"])
	assert.False(t, pools["0xddd"])
}

func TestClassifySwapsBuysFromPool(t *testing.T) {
	var transfers []upstream.Transfer
	for i := 0; i < 10; i++ {
		transfers = append(transfers, xfer("0xaaa", "0xbbb", i))
	}
	transfers = append(transfers, xfer("0xaaa", "0xccc", 10))
	transfers = append(transfers, xfer("0xddd", "0xbbb", 11))

	swaps := ClassifySwaps("eth", transfers, 2)

	// All eleven sends out of the pool classify as buys; the transfer from
	// the non-pool sender is discarded.
	require.Len(t, swaps, 11)
	buyers := map[string]int{}
	for _, s := range swaps {
		assert.Equal(t, db.SideBuy, s.Side)
		assert.Equal(t, "0xaaa", s.Pool)
		buyers[s.Wallet]++
	}
	assert.Equal(t, 10, buyers["0xbbb"])
	assert.Equal(t, 1, buyers["0xccc"])
	assert.Zero(t, buyers["0xddd"])
}

func TestClassifySwapsSellsIntoPool(t *testing.T) {
	var transfers []upstream.Transfer
	for i := 0; i < 3; i++ {
		transfers = append(transfers, xfer("0xpool", fmt.Sprintf("0xw%02d", i), i))
	}
	transfers = append(transfers, xfer("0xseller", "0xpool", 3))

	swaps := ClassifySwaps("eth", transfers, 2)

	require.Len(t, swaps, 4)
	var sells []Swap
	for _, s := range swaps {
		if s.Side == db.SideSell {
			sells = append(sells, s)
		}
	}
	require.Len(t, sells, 1)
	assert.Equal(t, "0xseller", sells[0].Wallet)
	assert.Equal(t, "0xpool", sells[0].Pool)
}

func TestClassifySwapsExcludesRouters(t *testing.T) {
	router := "0x7a250d5630b4cf539739df2c5dacb4c659f2488d" // uniswap v2

	var transfers []upstream.Transfer
	for i := 0; i < 3; i++ {
		transfers = append(transfers, xfer("0xpool", router, i))
	}
	transfers = append(transfers, xfer("0xpool", "0xhuman", 3))

	require.True(t, config.IsDEXRouter("eth", router))

	swaps := ClassifySwaps("eth", transfers, 2)

	require.Len(t, swaps, 1)
	assert.Equal(t, "0xhuman", swaps[0].Wallet)
}

func TestClassifySwapsPoolToPoolDiscarded(t *testing.T) {
	var transfers []upstream.Transfer
	for i := 0; i < 3; i++ {
		transfers = append(transfers, xfer("0xpoolA", "0xnobody", i))
		transfers = append(transfers, xfer("0xpoolB", "0xnobody", 10+i))
	}
	transfers = append(transfers, xfer("0xpoolA", "0xpoolB", 20))

	swaps := ClassifySwaps("eth", transfers, 2)

	for _, s := range swaps {
		assert.NotEqual(t, "0xpoolB", s.Wallet)
		assert.NotEqual(t, "0xpoolA", s.Wallet)
	}
}
