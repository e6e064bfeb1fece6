package selector

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/textileio/flashbid/chainapi"
	"github.com/textileio/flashbid/logging"
	"github.com/textileio/flashbid/metrics"
	"github.com/textileio/flashbid/sempool"
	"go.opentelemetry.io/otel/metric"
)

// Dialer opens a connection to the auction provider.
type Dialer func(ctx context.Context) (chainapi.ChainAPI, error)

// Client lazily creates the connection to the auction provider and shares it
// between all callers.
type Client struct {
	dial Dialer
	log  logging.Logger

	// init admits a single dialer at a time.
	init *sempool.Semaphore

	lk  sync.RWMutex
	api chainapi.ChainAPI

	metricDials metric.Int64Counter
}

// NewClient returns a new Client. No connection is made until the first Get.
func NewClient(dial Dialer, opts ...Option) (*Client, error) {
	if dial == nil {
		return nil, fmt.Errorf("dialer is nil")
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	c := &Client{
		dial: dial,
		log:  cfg.log,
		init: sempool.NewSemaphore(1),
	}
	c.initMetrics()
	return c, nil
}

// Get returns the shared connection, dialing it on first use. Concurrent first
// callers wait for a single dial. If the dial fails, or ctx is done while
// waiting, the client stays uninitialized and a later call retries.
func (c *Client) Get(ctx context.Context) (chainapi.ChainAPI, error) {
	if api := c.loaded(); api != nil {
		return api, nil
	}
	if err := c.init.AcquireContext(ctx); err != nil {
		return nil, fmt.Errorf("waiting for auction client initialization: %s", err)
	}
	defer c.init.Release()

	// Someone else may have finished dialing while we waited.
	if api := c.loaded(); api != nil {
		return api, nil
	}

	c.log.Debugf("connecting to auction provider")
	api, err := c.dial(ctx)
	metrics.MetricIncrCounter(ctx, err, c.metricDials)
	if err != nil {
		return nil, fmt.Errorf("connecting to auction provider: %s", err)
	}
	c.lk.Lock()
	c.api = api
	c.lk.Unlock()
	c.log.Infof("connected to auction provider")
	return api, nil
}

func (c *Client) loaded() chainapi.ChainAPI {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.api
}

// Close releases the connection if one was made.
func (c *Client) Close() error {
	c.lk.Lock()
	api := c.api
	c.api = nil
	c.lk.Unlock()
	if closer, ok := api.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("closing auction provider connection: %s", err)
		}
	}
	return nil
}
