// Package selector picks the transactions that open a flashblock from the
// bids of the companion chain auction.
package selector

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/textileio/flashbid/auction"
	"github.com/textileio/flashbid/logging"
)

var (
	// ErrClientInit indicates that the connection to the auction provider
	// couldn't be established.
	ErrClientInit = errors.New("auction client initialization failed")

	// ErrDeadlineSync indicates that the end of the auction couldn't be
	// confirmed.
	ErrDeadlineSync = errors.New("auction deadline synchronization failed")
)

// Selector returns the auction ordered transactions of a block.
type Selector struct {
	client   *Client
	fetcher  *Fetcher
	pipeline *Pipeline
	log      logging.Logger
}

// New returns a new Selector connecting to the auction provider with dial and
// decoding transactions of the given chain.
func New(dial Dialer, chainID *big.Int, opts ...Option) (*Selector, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(dial, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating auction client: %s", err)
	}
	sync, err := NewSynchronizer(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating deadline synchronizer: %s", err)
	}
	fetcher, err := NewFetcher(client, sync, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating bid fetcher: %s", err)
	}
	pipeline, err := NewPipeline(chainID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating bid pipeline: %s", err)
	}
	return &Selector{
		client:   client,
		fetcher:  fetcher,
		pipeline: pipeline,
		log:      cfg.log,
	}, nil
}

// FetchBids returns the bids of the auction filling the block targeted at cutoff.
func (s *Selector) FetchBids(ctx context.Context, cutoff time.Time) ([]auction.Bid, error) {
	return s.fetcher.FetchBids(ctx, cutoff)
}

// Select orders the transactions carried by bids.
func (s *Selector) Select(bids []auction.Bid) *Transactions {
	return s.pipeline.Select(bids)
}

// BestTransactions waits for the auction filling the block targeted at cutoff
// and returns a cursor over its transactions, highest bid first.
func (s *Selector) BestTransactions(ctx context.Context, cutoff time.Time) (*Transactions, error) {
	s.log.Debugf("selecting transactions for block targeted at %d", cutoff.Unix())
	bids, err := s.FetchBids(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return s.Select(bids), nil
}

// Close closes the connection to the auction provider.
func (s *Selector) Close() error {
	return s.client.Close()
}
