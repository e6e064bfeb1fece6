package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/textileio/flashbid/cmd/builderd/cadence"
	"github.com/textileio/flashbid/cmd/builderd/selector"
	"github.com/textileio/flashbid/common"
	"github.com/textileio/flashbid/metrics"
	"github.com/textileio/flashbid/rpc"
	"github.com/textileio/go-libp2p-pubsub-rpc/finalizer"
	golog "github.com/textileio/go-log/v2"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

var log = golog.Logger("service")

const (
	// Namespace is the JSON-RPC namespace of the builder API.
	Namespace = "builder"
	// HealthService is the name reported by the gRPC health service.
	HealthService = "flashbid.builder"
)

// TransactionSource provides the auction ordered transactions of a block.
type TransactionSource interface {
	BestTransactions(ctx context.Context, cutoff time.Time) (*selector.Transactions, error)
}

var _ TransactionSource = (*selector.Selector)(nil)

// Config defines params for Service configuration.
type Config struct {
	// Listener serves the gRPC health service.
	Listener net.Listener
	// APIListener serves the JSON-RPC API over HTTP.
	APIListener net.Listener

	Cadence      cadence.Config
	CycleTimeout time.Duration
}

// Service exposes transaction selection to block builders.
type Service struct {
	config Config
	source TransactionSource
	cycles *cycles

	server     *grpc.Server
	health     *health.Server
	rpcServer  *gethrpc.Server
	httpServer *http.Server
	finalizer  *finalizer.Finalizer

	metricCycles     metric.Int64Counter
	metricOpenCycles metric.Int64UpDownCounter
}

// New returns a new Service. It starts serving right away.
func New(conf Config, source TransactionSource) (*Service, error) {
	if err := validateConfig(conf); err != nil {
		return nil, fmt.Errorf("config is invalid: %s", err)
	}
	if source == nil {
		return nil, errors.New("transaction source is nil")
	}

	fin := finalizer.NewFinalizer()
	ctx, cancel := context.WithCancel(context.Background())
	fin.Add(finalizer.NewContextCloser(cancel))

	s := &Service{
		config:    conf,
		source:    source,
		cycles:    newCycles(conf.CycleTimeout),
		server:    grpc.NewServer(grpc.UnaryInterceptor(common.GrpcLoggerInterceptor(log))),
		health:    health.NewServer(),
		rpcServer: gethrpc.NewServer(),
		finalizer: fin,
	}
	s.initMetrics()

	if err := s.rpcServer.RegisterName(Namespace, &BuilderAPI{s: s}); err != nil {
		return nil, fin.Cleanupf("registering builder api: %v", err)
	}
	s.httpServer = &http.Server{
		Handler:           s.rpcServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)

	go func() {
		if err := s.server.Serve(conf.Listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Errorf("server error: %v", err)
		}
	}()
	go func() {
		if err := s.httpServer.Serve(conf.APIListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("api server error: %v", err)
		}
	}()
	go s.daemonJanitor(ctx)

	log.Infof("service listening at %s, api listening at %s", conf.Listener.Addr(), conf.APIListener.Addr())
	return s, nil
}

// openCycle selects the transactions of the block targeted at cutoff and
// registers them as a new cycle.
func (s *Service) openCycle(ctx context.Context, cutoff time.Time) (id string, count int, err error) {
	defer func() {
		metrics.MetricIncrCounter(ctx, err, s.metricCycles)
	}()

	txs, err := s.source.BestTransactions(ctx, cutoff)
	if err != nil {
		if errors.Is(err, selector.ErrDeadlineSync) || errors.Is(err, selector.ErrClientInit) {
			s.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
		}
		return "", 0, fmt.Errorf("selecting transactions: %s", err)
	}
	s.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)

	id, err = s.cycles.open(txs, time.Now())
	if err != nil {
		return "", 0, fmt.Errorf("opening cycle: %s", err)
	}
	s.metricOpenCycles.Add(ctx, 1)
	count = txs.Len()
	log.Debugf("opened cycle %s with %d transactions for block targeted at %d", id, count, cutoff.Unix())
	return id, count, nil
}

func (s *Service) closeCycle(ctx context.Context, id string) bool {
	deleted, live := s.cycles.close(id, time.Now())
	if deleted {
		s.metricOpenCycles.Add(ctx, -1)
	}
	return live
}

func (s *Service) daemonJanitor(ctx context.Context) {
	t := time.NewTicker(s.config.CycleTimeout)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.cycles.expire(time.Now()); n > 0 {
				s.metricOpenCycles.Add(ctx, -int64(n))
				log.Debugf("expired %d cycles", n)
			}
		}
	}
}

// Close the service.
func (s *Service) Close() error {
	log.Info("closing service")
	defer log.Info("service was shutdown")

	s.health.Shutdown()
	rpc.StopServer(s.server)

	ctx, cancel := context.WithTimeout(context.Background(), rpc.StopTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Errorf("shutting down api server: %v", err)
	}
	s.rpcServer.Stop()

	return s.finalizer.Cleanup(nil)
}

func validateConfig(conf Config) error {
	if conf.Listener == nil {
		return errors.New("service listener is nil")
	}
	if conf.APIListener == nil {
		return errors.New("api listener is nil")
	}
	if conf.CycleTimeout <= 0 {
		return fmt.Errorf("cycle timeout should be positive: %s", conf.CycleTimeout)
	}
	if err := conf.Cadence.Validate(); err != nil {
		return fmt.Errorf("invalid cadence: %s", err)
	}
	return nil
}
