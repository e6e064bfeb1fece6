package selector

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/textileio/flashbid/auction"
	"github.com/textileio/flashbid/chainapi"
)

var (
	ctx     = context.Background()
	chainID = big.NewInt(901)
	to      = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

type fakeChain struct {
	lk        sync.Mutex
	waits     []time.Time
	deadlines []time.Time
	waitErr   error
	block     bool
	bids      []auction.Bid
	listErr   error
}

var _ chainapi.ChainAPI = (*fakeChain)(nil)

func (c *fakeChain) WaitPastPerfectTime(ctx context.Context, t time.Time) error {
	c.lk.Lock()
	c.waits = append(c.waits, t)
	block, err := c.block, c.waitErr
	c.lk.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (c *fakeChain) BidsForDeadline(_ context.Context, deadline time.Time) ([]auction.Bid, error) {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.deadlines = append(c.deadlines, deadline)
	return c.bids, c.listErr
}

func dialerOf(api chainapi.ChainAPI) Dialer {
	return func(context.Context) (chainapi.ChainAPI, error) {
		return api, nil
	}
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

// dynamicFeeTx returns an encoded EIP-1559 transaction with the given tip.
func dynamicFeeTx(t *testing.T, key *ecdsa.PrivateKey, chain *big.Int, nonce uint64, tip int64) []byte {
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(chain), &types.DynamicFeeTx{
		ChainID:   chain,
		Nonce:     nonce,
		GasTipCap: big.NewInt(tip),
		GasFeeCap: big.NewInt(tip + 1_000_000_000),
		Gas:       21_000,
		To:        &to,
		Value:     big.NewInt(1),
	})
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return raw
}

func legacyTx(t *testing.T, key *ecdsa.PrivateKey, nonce uint64) []byte {
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(chainID), &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21_000,
		To:       &to,
		Value:    big.NewInt(1),
	})
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return raw
}

// bid returns a bid whose payload declares a priority fee equal to amount.
func bid(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, amount int64) auction.Bid {
	return auction.Bid{
		Amount: uint256.NewInt(uint64(amount)),
		Data:   dynamicFeeTx(t, key, chainID, nonce, amount),
	}
}

func bidsOf(txs *Transactions) []uint64 {
	var out []uint64
	for {
		tx, ok := txs.Next()
		if !ok {
			return out
		}
		out = append(out, tx.Bid.Uint64())
	}
}

func keyAddress(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

func mustMarshal(t *testing.T, tx *auction.Transaction) []byte {
	raw, err := tx.Tx.MarshalBinary()
	require.NoError(t, err)
	return raw
}
