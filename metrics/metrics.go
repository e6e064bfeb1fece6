package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// AttrOK is a metric tag to indicate a successful operation.
	AttrOK = attribute.Key("status").String("ok")
	// AttrError is a metric tag to indicate a failed operation.
	AttrError = attribute.Key("status").String("error")
)

// AttrReason tags a metric with the reason of an outcome.
func AttrReason(reason string) attribute.KeyValue {
	return attribute.Key("reason").String(reason)
}

// MetricIncrCounter increments the specified Int64Counter by 1. Depending if err
// is nil or not, it will use AttrOK or AttrError respectively. This method is a helper
// for deferring in methods.
func MetricIncrCounter(ctx context.Context, err error, m metric.Int64Counter, labels ...attribute.KeyValue) {
	attr := AttrOK
	if err != nil {
		attr = AttrError
	}
	m.Add(ctx, 1, append(labels, attr)...)
}

// RecordMillisSince records the milliseconds elapsed since start, tagged like
// MetricIncrCounter does.
func RecordMillisSince(
	ctx context.Context,
	err error,
	m metric.Int64Histogram,
	start time.Time,
	labels ...attribute.KeyValue,
) {
	attr := AttrOK
	if err != nil {
		attr = AttrError
	}
	m.Record(ctx, time.Since(start).Milliseconds(), append(labels, attr)...)
}
