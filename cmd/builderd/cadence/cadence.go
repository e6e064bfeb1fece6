package cadence

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config describes how flashblocks are produced within a block.
type Config struct {
	// WSAddr is the listen address of the websocket endpoint that broadcasts
	// flashblocks to subscribers.
	WSAddr string
	// Interval is how often a flashblock is produced. It is independent of
	// the chain block time; on average a block holds block time / Interval
	// flashblocks.
	Interval time.Duration
	// Leeway is deducted from the budget of the first flashblock of a block
	// to absorb upstream latency. It can't exceed Interval.
	Leeway time.Duration
	// Fixed disables the dynamic adjustment of the flashblock count based on
	// the arrival time of the block production trigger.
	Fixed bool
}

// DefaultConfig returns the default cadence.
func DefaultConfig() Config {
	return Config{
		WSAddr:   "0.0.0.0:1111",
		Interval: 250 * time.Millisecond,
		Leeway:   50 * time.Millisecond,
		Fixed:    false,
	}
}

// Validate checks the configuration. It is meant to be called at startup.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("flashblock interval should be positive: %s", c.Interval)
	}
	if c.Leeway < 0 {
		return fmt.Errorf("leeway time can't be negative: %s", c.Leeway)
	}
	if c.Leeway > c.Interval {
		return fmt.Errorf("leeway time %s exceeds flashblock interval %s", c.Leeway, c.Interval)
	}
	host, port, err := net.SplitHostPort(c.WSAddr)
	if err != nil {
		return fmt.Errorf("parsing flashblocks address: %s", err)
	}
	if net.ParseIP(host) == nil {
		return fmt.Errorf("flashblocks address host isn't an ip: %q", host)
	}
	if p, err := strconv.ParseUint(port, 10, 16); err != nil || p == 0 {
		return fmt.Errorf("invalid flashblocks address port: %q", port)
	}
	return nil
}

// ValidateBlockTime checks that the leeway fits in a block of the given duration.
func (c Config) ValidateBlockTime(blockTime time.Duration) error {
	if blockTime < 0 {
		return errors.New("block time can't be negative")
	}
	if c.Leeway > blockTime {
		return fmt.Errorf("leeway time %s exceeds block time %s", c.Leeway, blockTime)
	}
	return nil
}

// FlashblocksPerBlock returns how many whole flashblocks of the given interval
// fit in a block. A zero block time yields zero flashblocks; a partial trailing
// flashblock is never counted.
func FlashblocksPerBlock(blockTime, interval time.Duration) uint64 {
	if blockTime.Milliseconds() == 0 || interval.Milliseconds() <= 0 {
		return 0
	}
	return uint64(blockTime.Milliseconds() / interval.Milliseconds())
}

// FlashblocksPerBlock returns how many flashblocks compose a block.
func (c Config) FlashblocksPerBlock(blockTime time.Duration) uint64 {
	return FlashblocksPerBlock(blockTime, c.Interval)
}

// FirstFlashblockBudget returns the time available to build the first
// flashblock of a block once the leeway is reserved.
func (c Config) FirstFlashblockBudget() time.Duration {
	if c.Leeway >= c.Interval {
		return 0
	}
	return c.Interval - c.Leeway
}
