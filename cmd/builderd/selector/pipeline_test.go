package selector

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/textileio/flashbid/auction"
	"github.com/textileio/flashbid/logging/logtest"
	"go.uber.org/zap/zapcore"
)

func TestSelectOrdersByBid(t *testing.T) {
	t.Parallel()
	p, err := NewPipeline(chainID)
	require.NoError(t, err)

	a, b, c := newKey(t), newKey(t), newKey(t)
	txs := p.Select([]auction.Bid{bid(t, a, 0, 10), bid(t, b, 0, 5), bid(t, c, 0, 20)})
	require.Equal(t, 3, txs.Len())
	assert.Equal(t, []uint64{20, 10, 5}, bidsOf(txs))
}

func TestSelectKeepsProviderOrderOnTies(t *testing.T) {
	t.Parallel()
	p, err := NewPipeline(chainID)
	require.NoError(t, err)

	a, b := newKey(t), newKey(t)
	first, second := bid(t, a, 0, 7), bid(t, b, 0, 7)
	txs := p.Select([]auction.Bid{first, second, bid(t, a, 1, 9)})

	tx, ok := txs.Next()
	require.True(t, ok)
	assert.EqualValues(t, 9, tx.Bid.Uint64())
	tx, ok = txs.Next()
	require.True(t, ok)
	assert.Equal(t, len(first.Data), tx.Size)
	assert.Equal(t, first.Data, mustMarshal(t, tx))
	tx, ok = txs.Next()
	require.True(t, ok)
	assert.Equal(t, second.Data, mustMarshal(t, tx))
}

func TestSelectEmpty(t *testing.T) {
	t.Parallel()
	p, err := NewPipeline(chainID)
	require.NoError(t, err)

	txs := p.Select(nil)
	assert.Equal(t, 0, txs.Len())
	_, ok := txs.Next()
	assert.False(t, ok)
}

func TestSelectDropsUndecodableBids(t *testing.T) {
	t.Parallel()
	log, logs := logtest.New()
	p, err := NewPipeline(chainID, WithLogger(log))
	require.NoError(t, err)

	key := newKey(t)
	txs := p.Select([]auction.Bid{
		bid(t, key, 0, 10),
		{Amount: uint256.NewInt(50), Data: []byte{0x02, 0xde, 0xad}},
		{Amount: uint256.NewInt(40), Data: dynamicFeeTx(t, key, big.NewInt(1), 1, 40)},
		{Amount: nil, Data: dynamicFeeTx(t, key, chainID, 2, 30)},
		bid(t, key, 3, 5),
	})
	assert.Equal(t, []uint64{10, 5}, bidsOf(txs))
	assert.Equal(t, 3, logtest.Count(logs, zapcore.WarnLevel, "failed to decode transaction from pod"))
}

func TestSelectNetworkEncoding(t *testing.T) {
	t.Parallel()
	log, logs := logtest.New()
	p, err := NewPipeline(chainID, WithLogger(log))
	require.NoError(t, err)

	key := newKey(t)
	tx := new(types.Transaction)
	require.NoError(t, tx.UnmarshalBinary(dynamicFeeTx(t, key, chainID, 0, 25)))
	wrapped, err := rlp.EncodeToBytes(tx)
	require.NoError(t, err)
	require.Greater(t, wrapped[0], byte(0x7f))

	txs := p.Select([]auction.Bid{{Amount: uint256.NewInt(25), Data: wrapped}, bid(t, key, 1, 10)})
	got, ok := txs.Next()
	require.True(t, ok)
	assert.Equal(t, tx.Hash(), got.Hash())
	assert.Equal(t, keyAddress(key), got.Sender)
	assert.EqualValues(t, 25, got.PriorityFee.Uint64())
	assert.Equal(t, 1, txs.Len())
	assert.Equal(t, 0, logtest.Count(logs, zapcore.WarnLevel, "failed to decode"))

	// A string wrapping something other than a typed envelope is still rejected.
	junk, err := rlp.EncodeToBytes([]byte{0x02, 0xde, 0xad})
	require.NoError(t, err)
	txs = p.Select([]auction.Bid{{Amount: uint256.NewInt(1), Data: junk}})
	assert.Equal(t, 0, txs.Len())
}

func TestSelectFeeMismatch(t *testing.T) {
	t.Parallel()
	key := newKey(t)
	bids := []auction.Bid{
		{Amount: uint256.NewInt(100), Data: dynamicFeeTx(t, key, chainID, 0, 1)},
		bid(t, key, 1, 50),
		{Amount: uint256.NewInt(70), Data: legacyTx(t, key, 2)},
	}

	log, logs := logtest.New()
	p, err := NewPipeline(chainID, WithLogger(log))
	require.NoError(t, err)
	txs := p.Select(bids)
	assert.Equal(t, []uint64{100, 70, 50}, bidsOf(txs))
	assert.Equal(t, 2, logtest.Count(logs, zapcore.ErrorLevel, "doesn't match bid amount"))

	strictLog, strictLogs := logtest.New()
	strict, err := NewPipeline(chainID, WithLogger(strictLog), WithStrictFeeCheck(true))
	require.NoError(t, err)
	txs = strict.Select(bids)
	assert.Equal(t, []uint64{50}, bidsOf(txs))
	assert.Equal(t, 2, logtest.Count(strictLogs, zapcore.ErrorLevel, "doesn't match bid amount"))
}

func TestSelectDecodedFields(t *testing.T) {
	t.Parallel()
	p, err := NewPipeline(chainID)
	require.NoError(t, err)

	key := newKey(t)
	txs := p.Select([]auction.Bid{
		bid(t, key, 4, 12),
		{Amount: uint256.NewInt(0), Data: legacyTx(t, key, 5)},
	})

	tx, ok := txs.Next()
	require.True(t, ok)
	assert.Equal(t, keyAddress(key), tx.Sender)
	assert.EqualValues(t, 4, tx.Nonce())
	assert.EqualValues(t, 12, tx.PriorityFee.Uint64())

	tx, ok = txs.Next()
	require.True(t, ok)
	assert.EqualValues(t, 5, tx.Nonce())
	assert.True(t, tx.PriorityFee.IsZero())
}

func TestNewPipelineChainID(t *testing.T) {
	t.Parallel()
	_, err := NewPipeline(nil)
	require.Error(t, err)
	_, err = NewPipeline(big.NewInt(0))
	require.Error(t, err)
}
