package selector

import (
	"context"
	"fmt"
	"time"

	"github.com/textileio/flashbid/auction"
	"github.com/textileio/flashbid/chainapi"
	"github.com/textileio/flashbid/logging"
	"github.com/textileio/flashbid/metrics"
	"go.opentelemetry.io/otel/metric"
)

// Synchronizer waits until the auction of a block is over, as attested by the
// companion chain time oracle.
type Synchronizer struct {
	margin     time.Duration
	waitOffset time.Duration
	correction time.Duration
	log        logging.Logger

	metricWait metric.Int64Histogram
}

// NewSynchronizer returns a new Synchronizer.
func NewSynchronizer(opts ...Option) (*Synchronizer, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	s := &Synchronizer{
		margin:     cfg.deadlineMargin,
		waitOffset: cfg.oracleWaitOffset,
		correction: cfg.oracleCorrection,
		log:        cfg.log,
	}
	s.initMetrics()
	return s, nil
}

// AuctionDeadline returns the deadline of the auction filling a block whose
// target time is cutoff.
func (s *Synchronizer) AuctionDeadline(cutoff time.Time) time.Time {
	return auction.Deadline(cutoff, s.margin)
}

// WaitTarget returns the time sent to the oracle when waiting for deadline.
func (s *Synchronizer) WaitTarget(deadline time.Time) time.Time {
	return deadline.Add(-s.waitOffset).Add(s.correction)
}

// Await blocks until the oracle attests that the auction for cutoff is over
// and returns its deadline. Failures are wrapped in ErrDeadlineSync.
func (s *Synchronizer) Await(ctx context.Context, oracle chainapi.TimeOracle, cutoff time.Time) (time.Time, error) {
	deadline := s.AuctionDeadline(cutoff)
	target := s.WaitTarget(deadline)
	s.log.Debugf("waiting for past perfect time %d (auction deadline %d)", target.UnixMicro(), deadline.UnixMicro())

	start := time.Now()
	err := oracle.WaitPastPerfectTime(ctx, target)
	metrics.RecordMillisSince(ctx, err, s.metricWait, start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return time.Time{}, fmt.Errorf("%w: %w", ErrDeadlineSync, ctxErr)
		}
		return time.Time{}, fmt.Errorf("%w: waiting for auction end (past perfect time): %s", ErrDeadlineSync, err)
	}
	s.log.Infof("past perfect time reached")
	return deadline, nil
}
