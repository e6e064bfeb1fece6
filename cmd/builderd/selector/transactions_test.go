package selector

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/textileio/flashbid/auction"
	"github.com/textileio/flashbid/logging/logtest"
	"go.uber.org/zap/zapcore"
)

var (
	alice = common.HexToAddress("0x0a")
	bob   = common.HexToAddress("0x0b")
)

func cursorTx(sender common.Address, nonce uint64, amount uint64) *auction.Transaction {
	return &auction.Transaction{
		Tx:          types.NewTx(&types.LegacyTx{Nonce: nonce}),
		Sender:      sender,
		Bid:         uint256.NewInt(amount),
		PriorityFee: uint256.NewInt(amount),
	}
}

func TestTransactionsExhaustion(t *testing.T) {
	t.Parallel()
	txs := NewTransactions([]*auction.Transaction{cursorTx(alice, 0, 2), cursorTx(bob, 0, 1)}, nil)
	require.Equal(t, 2, txs.Len())

	assert.Equal(t, []uint64{2, 1}, bidsOf(txs))
	for i := 0; i < 3; i++ {
		tx, ok := txs.Next()
		assert.False(t, ok)
		assert.Nil(t, tx)
	}
	assert.Equal(t, 0, txs.Len())
}

func TestMarkInvalid(t *testing.T) {
	t.Parallel()
	log, logs := logtest.New()
	txs := NewTransactions([]*auction.Transaction{
		cursorTx(alice, 3, 60),
		cursorTx(bob, 7, 50),
		cursorTx(alice, 5, 40),
		cursorTx(alice, 4, 30),
		cursorTx(bob, 8, 20),
		cursorTx(alice, 2, 10),
	}, log)

	tx, ok := txs.Next()
	require.True(t, ok)
	require.Equal(t, alice, tx.Sender)

	// alice's nonce 3 failed, so nonces 4 and 5 can't execute either.
	assert.Equal(t, 2, txs.MarkInvalid(alice, 3))
	assert.Equal(t, 3, txs.Len())
	assert.Equal(t, 1, logtest.Count(logs, zapcore.WarnLevel, "marked invalid"))

	assert.Equal(t, 0, txs.MarkInvalid(common.HexToAddress("0x0c"), 0))
	assert.Equal(t, []uint64{50, 20, 10}, bidsOf(txs))
}

func TestMarkInvalidExhausted(t *testing.T) {
	t.Parallel()
	txs := NewTransactions(nil, nil)
	assert.Equal(t, 0, txs.MarkInvalid(alice, 0))
	_, ok := txs.Next()
	assert.False(t, ok)
}
