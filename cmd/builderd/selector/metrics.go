package selector

import (
	"github.com/textileio/flashbid/cmd/builderd/metrics"
	"go.opentelemetry.io/otel/metric"
)

func (c *Client) initMetrics() {
	c.metricDials = metrics.Meter.NewInt64Counter(metrics.Prefix + ".client_dials_total")
}

func (s *Synchronizer) initMetrics() {
	s.metricWait = metrics.Meter.NewInt64Histogram(metrics.Prefix + ".deadline_wait_millis")
}

func (f *Fetcher) initMetrics() {
	f.metricFetches = metrics.Meter.NewInt64Counter(metrics.Prefix + ".bid_fetches_total")
	f.metricBids = metrics.Meter.NewInt64Counter(metrics.Prefix + ".bids_total")
}

func (p *Pipeline) initMetrics() {
	p.metricDropped = metrics.Meter.NewInt64Counter(metrics.Prefix + ".bids_dropped_total")
	p.metricFeeMismatch = metrics.Meter.NewInt64Counter(metrics.Prefix + ".bid_fee_mismatches_total")
	p.metricInvalidated = newInvalidatedCounter()
}

func newInvalidatedCounter() metric.Int64Counter {
	return metrics.Meter.NewInt64Counter(metrics.Prefix + ".invalidated_txs_total")
}
