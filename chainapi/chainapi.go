package chainapi

import (
	"context"
	"time"

	"github.com/textileio/flashbid/auction"
)

// TimeOracle attests the passage of real time on the companion chain.
type TimeOracle interface {
	// WaitPastPerfectTime blocks until the chain attests that real time has
	// advanced at least to t. It only fails on transport errors.
	WaitPastPerfectTime(ctx context.Context, t time.Time) error
}

// BidLister lists auction bids.
type BidLister interface {
	// BidsForDeadline returns the bids settled for the given auction deadline.
	BidsForDeadline(ctx context.Context, deadline time.Time) ([]auction.Bid, error)
}

// ChainAPI provides companion chain interactions.
type ChainAPI interface {
	TimeOracle
	BidLister
}
