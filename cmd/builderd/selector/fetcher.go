package selector

import (
	"context"
	"fmt"
	"time"

	"github.com/textileio/flashbid/auction"
	"github.com/textileio/flashbid/logging"
	"github.com/textileio/flashbid/metrics"
	"go.opentelemetry.io/otel/metric"
)

// Fetcher retrieves the settled bids of an auction.
type Fetcher struct {
	client *Client
	sync   *Synchronizer
	log    logging.Logger

	metricFetches metric.Int64Counter
	metricBids    metric.Int64Counter
}

// NewFetcher returns a new Fetcher.
func NewFetcher(client *Client, sync *Synchronizer, opts ...Option) (*Fetcher, error) {
	if client == nil || sync == nil {
		return nil, fmt.Errorf("client and synchronizer are required")
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	f := &Fetcher{
		client: client,
		sync:   sync,
		log:    cfg.log,
	}
	f.initMetrics()
	return f, nil
}

// FetchBids waits for the auction filling the block targeted at cutoff to end
// and returns its bids in provider order.
//
// Client initialization and deadline synchronization failures are returned
// (wrapped in ErrClientInit and ErrDeadlineSync). A failure to list the bids
// is not: it is logged and an empty list is returned, so the block is still
// built from the regular mempool.
func (f *Fetcher) FetchBids(ctx context.Context, cutoff time.Time) ([]auction.Bid, error) {
	api, err := f.client.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrClientInit, err)
	}
	deadline, err := f.sync.Await(ctx, api, cutoff)
	if err != nil {
		return nil, err
	}

	f.log.Debugf("querying bids for auction deadline %d", deadline.UnixMicro())
	bids, err := api.BidsForDeadline(ctx, deadline)
	metrics.MetricIncrCounter(ctx, err, f.metricFetches)
	if err != nil {
		f.log.Errorf("failed to fetch bids from pod: %s", err)
		return []auction.Bid{}, nil
	}
	f.metricBids.Add(ctx, int64(len(bids)))
	f.log.Debugf("fetched %d bids for auction deadline %d", len(bids), deadline.UnixMicro())
	return bids, nil
}
