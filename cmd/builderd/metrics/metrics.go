package metrics

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/global"
)

// Prefix namespaces every builderd metric.
const Prefix = "builderd"

// Meter creates builderd instruments.
var Meter = metric.Must(global.Meter(Prefix))
