package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/textileio/flashbid/logging/logtest"
	"go.uber.org/zap/zapcore"
)

func TestAuctionDeadline(t *testing.T) {
	t.Parallel()
	s, err := NewSynchronizer()
	require.NoError(t, err)

	cutoff := time.Unix(1700000010, 0)
	deadline := s.AuctionDeadline(cutoff)
	assert.Equal(t, time.Unix(1700000008, 0), deadline)
	assert.Equal(t, time.Unix(1700000003, 200_000_000), s.WaitTarget(deadline))
}

func TestSynchronizerOptions(t *testing.T) {
	t.Parallel()
	s, err := NewSynchronizer(WithDeadlineMargin(time.Second), WithOracleCompensation(3*time.Second, 0))
	require.NoError(t, err)
	deadline := s.AuctionDeadline(time.Unix(100, 0))
	assert.Equal(t, time.Unix(99, 0), deadline)
	assert.Equal(t, time.Unix(96, 0), s.WaitTarget(deadline))

	_, err = NewSynchronizer(WithDeadlineMargin(-time.Second))
	require.Error(t, err)
	_, err = NewSynchronizer(WithOracleCompensation(time.Second, 2*time.Second))
	require.Error(t, err)
}

func TestAwait(t *testing.T) {
	t.Parallel()
	log, logs := logtest.New()
	s, err := NewSynchronizer(WithLogger(log))
	require.NoError(t, err)
	oracle := &fakeChain{}

	deadline, err := s.Await(ctx, oracle, time.Unix(1700000010, 0))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000008, 0), deadline)
	require.Len(t, oracle.waits, 1)
	assert.Equal(t, time.Unix(1700000003, 200_000_000), oracle.waits[0])
	assert.Equal(t, 1, logtest.Count(logs, zapcore.InfoLevel, "past perfect time reached"))
}

func TestAwaitOracleFailure(t *testing.T) {
	t.Parallel()
	s, err := NewSynchronizer()
	require.NoError(t, err)
	oracle := &fakeChain{waitErr: errors.New("connection reset")}

	_, err = s.Await(ctx, oracle, time.Now())
	require.ErrorIs(t, err, ErrDeadlineSync)
	require.Contains(t, err.Error(), "connection reset")
}

func TestAwaitCanceled(t *testing.T) {
	t.Parallel()
	s, err := NewSynchronizer()
	require.NoError(t, err)
	oracle := &fakeChain{block: true}

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = s.Await(cctx, oracle, time.Now())
	require.ErrorIs(t, err, ErrDeadlineSync)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
