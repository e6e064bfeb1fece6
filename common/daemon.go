package common

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/textileio/flashbid/logging"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/sdk/metric/aggregator/histogram"
	controller "go.opentelemetry.io/otel/sdk/metric/controller/basic"
	"go.opentelemetry.io/otel/sdk/metric/export/aggregation"
	processor "go.opentelemetry.io/otel/sdk/metric/processor/basic"
	selector "go.opentelemetry.io/otel/sdk/metric/selector/simple"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// HistogramBoundaries are the buckets of every exported histogram. Values are
// milliseconds; a flashblock interval is a few hundred of them.
var HistogramBoundaries = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// SetupInstrumentation starts a metrics endpoint. The returned server is
// already listening in the background.
func SetupInstrumentation(prometheusAddr string) (*http.Server, error) {
	config := prometheus.Config{
		DefaultHistogramBoundaries: HistogramBoundaries,
	}
	c := controller.New(
		processor.NewFactory(
			selector.NewWithHistogramDistribution(
				histogram.WithExplicitBoundaries(config.DefaultHistogramBoundaries),
			),
			aggregation.CumulativeTemporalitySelector(),
			processor.WithMemory(true),
		),
	)
	exporter, err := prometheus.New(config, c)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter %v", err)
	}
	global.SetMeterProvider(exporter.MeterProvider())

	srv := &http.Server{Addr: prometheusAddr, Handler: instrumentationMux(http.HandlerFunc(exporter.ServeHTTP))}
	go func() {
		_ = srv.ListenAndServe()
	}()

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		return nil, fmt.Errorf("starting Go runtime metrics: %s", err)
	}

	return srv, nil
}

// instrumentationMux serves metrics on /metrics and the runtime profiles on
// /debug/pprof/.
func instrumentationMux(metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// GrpcLoggerInterceptor logs any error produced by processing requests, and catches/recovers
// from panics.
func GrpcLoggerInterceptor(log logging.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context, req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler) (res interface{}, err error) {
		// Recover from any panic caused by this request processing.
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("panic: %s", r)
				err = status.Errorf(codes.Internal, "panic: %s", r)
			}
		}()

		res, err = handler(ctx, req)
		if grpcErrCode := status.Code(err); grpcErrCode != codes.OK {
			log.Errorf("%s: %s", info.FullMethod, err)
		}
		return
	}
}
