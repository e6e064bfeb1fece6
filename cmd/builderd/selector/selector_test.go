package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/textileio/flashbid/auction"
	"github.com/textileio/flashbid/chainapi"
)

func TestBestTransactions(t *testing.T) {
	t.Parallel()
	a, b := newKey(t), newKey(t)
	api := &fakeChain{bids: []auction.Bid{
		bid(t, a, 0, 10),
		{Data: []byte("garbage")},
		bid(t, b, 0, 30),
		bid(t, a, 1, 20),
	}}
	s, err := New(dialerOf(api), chainID)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	txs, err := s.BestTransactions(ctx, time.Unix(1700000010, 0))
	require.NoError(t, err)
	require.Equal(t, 3, txs.Len())

	tx, ok := txs.Next()
	require.True(t, ok)
	assert.EqualValues(t, 30, tx.Bid.Uint64())
	assert.Equal(t, keyAddress(b), tx.Sender)

	// a's first transaction failed, the later one goes with it.
	assert.Equal(t, 2, txs.MarkInvalid(keyAddress(a), 0))
	_, ok = txs.Next()
	assert.False(t, ok)
}

func TestBestTransactionsDegradesToEmpty(t *testing.T) {
	t.Parallel()
	api := &fakeChain{listErr: errors.New("rate limited")}
	s, err := New(dialerOf(api), chainID)
	require.NoError(t, err)

	txs, err := s.BestTransactions(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, txs.Len())
}

func TestBestTransactionsErrors(t *testing.T) {
	t.Parallel()
	s, err := New(func(context.Context) (chainapi.ChainAPI, error) {
		return nil, errors.New("dial tcp: connection refused")
	}, chainID)
	require.NoError(t, err)
	_, err = s.BestTransactions(ctx, time.Now())
	require.ErrorIs(t, err, ErrClientInit)

	s, err = New(dialerOf(&fakeChain{waitErr: errors.New("eof")}), chainID)
	require.NoError(t, err)
	_, err = s.BestTransactions(ctx, time.Now())
	require.ErrorIs(t, err, ErrDeadlineSync)
}

func TestNewOptions(t *testing.T) {
	t.Parallel()
	_, err := New(dialerOf(&fakeChain{}), chainID, WithLogger(nil))
	require.Error(t, err)
	_, err = New(dialerOf(&fakeChain{}), chainID, WithComparator(nil))
	require.Error(t, err)
	_, err = New(nil, chainID)
	require.Error(t, err)
}
