package selector

import (
	"errors"
	"fmt"
	"time"

	"github.com/textileio/flashbid/auction"
	"github.com/textileio/flashbid/logging"
)

type config struct {
	log logging.Logger

	deadlineMargin   time.Duration
	oracleWaitOffset time.Duration
	oracleCorrection time.Duration

	cmp            Cmp
	strictFeeCheck bool
}

var defaultConfig = config{
	deadlineMargin: auction.DeadlineMargin,
	// pod attests past perfect time about five seconds behind real time.
	oracleWaitOffset: 5 * time.Second,
	oracleCorrection: 200 * time.Millisecond,

	cmp: HigherBid(),
}

func newConfig(opts []Option) (config, error) {
	cfg := defaultConfig
	for _, op := range opts {
		if err := op(&cfg); err != nil {
			return config{}, fmt.Errorf("applying option: %s", err)
		}
	}
	cfg.log = logging.OrDefault(cfg.log, "selector")
	return cfg, nil
}

// Option applies a configuration change.
type Option func(*config) error

// WithLogger sets where diagnostics are written to.
func WithLogger(l logging.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		c.log = l
		return nil
	}
}

// WithDeadlineMargin sets the gap between a block target time and the
// deadline of the auction that fills it.
func WithDeadlineMargin(margin time.Duration) Option {
	return func(c *config) error {
		if margin < 0 {
			return fmt.Errorf("deadline margin can't be negative")
		}
		c.deadlineMargin = margin
		return nil
	}
}

// WithOracleCompensation configures how the wait target sent to the past
// perfect time oracle is derived from the auction deadline: offset is
// subtracted and correction added back.
func WithOracleCompensation(offset, correction time.Duration) Option {
	return func(c *config) error {
		if offset < 0 || correction < 0 {
			return fmt.Errorf("oracle compensation can't be negative")
		}
		if correction > offset {
			return fmt.Errorf("oracle correction %s exceeds offset %s", correction, offset)
		}
		c.oracleWaitOffset = offset
		c.oracleCorrection = correction
		return nil
	}
}

// WithComparator sets the order of the selected transactions.
func WithComparator(cmp Cmp) Option {
	return func(c *config) error {
		if cmp == nil {
			return errors.New("comparator is nil")
		}
		c.cmp = cmp
		return nil
	}
}

// WithStrictFeeCheck excludes transactions whose priority fee doesn't match
// their bid amount. By default they are reported and kept.
func WithStrictFeeCheck(strict bool) Option {
	return func(c *config) error {
		c.strictFeeCheck = strict
		return nil
	}
}
