package service

import (
	"github.com/textileio/flashbid/cmd/builderd/metrics"
)

func (s *Service) initMetrics() {
	s.metricCycles = metrics.Meter.NewInt64Counter(metrics.Prefix + ".cycles_total")
	s.metricOpenCycles = metrics.Meter.NewInt64UpDownCounter(metrics.Prefix + ".open_cycles")
}
