package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/textileio/cli"
	"github.com/textileio/flashbid/auction"
	"github.com/textileio/flashbid/chainapi"
	"github.com/textileio/flashbid/cmd/builderd/cadence"
	"github.com/textileio/flashbid/cmd/builderd/podclient"
	"github.com/textileio/flashbid/cmd/builderd/selector"
	"github.com/textileio/flashbid/cmd/builderd/service"
	"github.com/textileio/flashbid/common"
	"github.com/textileio/flashbid/rpc"
	"github.com/textileio/go-libp2p-pubsub-rpc/finalizer"
	golog "github.com/textileio/go-log/v2"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	daemonName = "builderd"
	log        = golog.Logger(daemonName)
	v          = viper.New()
)

func init() {
	defaults := cadence.DefaultConfig()
	flags := []cli.Flag{
		{Name: "pod-rpc-url", DefValue: "", Description: "Pod companion chain JSON-RPC url (http, https, ws or wss)"},
		{Name: "pod-contract-addr", DefValue: "", Description: "Auction contract address on pod"},
		{Name: "chain-id", DefValue: "", Description: "Chain id of the transactions carried by bids"},
		{Name: "block-time", DefValue: 2 * time.Second, Description: "Chain block time"},
		{Name: "flashblocks-interval", DefValue: defaults.Interval, Description: "Time between flashblocks"},
		{
			Name:        "flashblocks-leeway-time",
			DefValue:    defaults.Leeway,
			Description: "Time deducted from the first flashblock of a block",
		},
		{Name: "flashblocks-fixed", DefValue: defaults.Fixed, Description: "Disable flashblock count adjustment"},
		{Name: "flashblocks-addr", DefValue: defaults.WSAddr, Description: "Flashblocks websocket listen address"},
		{Name: "strict-bid-fee", DefValue: false, Description: "Drop bids whose priority fee differs from the amount"},
		{
			Name:        "bid-tiebreak",
			DefValue:    "none",
			Description: fmt.Sprintf("Order of transactions with equal bids %v", selector.Tiebreaks),
		},
		{Name: "cycle-timeout", DefValue: 30 * time.Second, Description: "Time after opening when a cycle is released"},
		{Name: "dial-timeout", DefValue: 10 * time.Second, Description: "Timeout to connect to the pod provider"},
		{Name: "listen-addr", DefValue: ":8645", Description: "JSON-RPC API listen address"},
		{Name: "rpc-addr", DefValue: ":5000", Description: "gRPC health listen address"},
		{Name: "metrics-addr", DefValue: ":9090", Description: "Prometheus listen address"},
		{Name: "log-debug", DefValue: false, Description: "Enable debug level logging"},
		{Name: "log-json", DefValue: false, Description: "Enable structured logging"},
	}

	cobra.OnInitialize(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			cli.CheckErrf("loading .env file: %v", err)
		}
	})

	cli.ConfigureCLI(v, "BUILDER", flags, rootCmd.Flags())
	rootCmd.AddCommand(healthCmd)
}

var rootCmd = &cobra.Command{
	Use:   daemonName,
	Short: "builderd opens flashblocks with the transactions of the pod auction",
	Long:  "builderd opens flashblocks with the transactions of the pod auction, ordered by bid",
	PersistentPreRun: func(c *cobra.Command, args []string) {
		cli.ExpandEnvVars(v, v.AllSettings())
		err := cli.ConfigureLogging(v, []string{
			daemonName,
			"selector",
			"podclient",
			"service",
		})
		cli.CheckErrf("setting log levels: %v", err)
	},
	Run: func(c *cobra.Command, args []string) {
		settings, err := cli.MarshalConfig(v, !v.GetBool("log-json"), "pod-rpc-url")
		cli.CheckErrf("marshaling config: %v", err)
		log.Infof("loaded config: %s", string(settings))

		endpoint, err := auction.NewEndpoint(v.GetString("pod-rpc-url"), v.GetString("pod-contract-addr"))
		cli.CheckErrf("parsing auction endpoint: %v", err)
		chainID, err := parseChainID(v.GetString("chain-id"))
		cli.CheckErrf("parsing chain id: %v", err)

		cadenceConf := cadence.Config{
			WSAddr:   v.GetString("flashblocks-addr"),
			Interval: v.GetDuration("flashblocks-interval"),
			Leeway:   v.GetDuration("flashblocks-leeway-time"),
			Fixed:    v.GetBool("flashblocks-fixed"),
		}
		cli.CheckErrf("validating flashblocks config: %v", cadenceConf.Validate())
		blockTime := v.GetDuration("block-time")
		cli.CheckErrf("validating block time: %v", cadenceConf.ValidateBlockTime(blockTime))
		log.Infof("producing %d flashblocks per block", cadenceConf.FlashblocksPerBlock(blockTime))

		fin := finalizer.NewFinalizer()

		metricsServer, err := common.SetupInstrumentation(v.GetString("metrics-addr"))
		cli.CheckErrf("booting instrumentation: %v", err)
		fin.Add(metricsServer)

		cmp, err := selector.TiebreakComparator(v.GetString("bid-tiebreak"))
		cli.CheckErrf("parsing bid tiebreak: %v", err)

		dialTimeout := v.GetDuration("dial-timeout")
		dial := func(ctx context.Context) (chainapi.ChainAPI, error) {
			ctx, cancel := context.WithTimeout(ctx, dialTimeout)
			defer cancel()
			client, err := podclient.Dial(ctx, endpoint.ProviderURL, endpoint.Contract)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
		sel, err := selector.New(
			dial,
			chainID,
			selector.WithStrictFeeCheck(v.GetBool("strict-bid-fee")),
			selector.WithComparator(cmp),
		)
		cli.CheckErrf("creating selector: %v", err)
		fin.Add(sel)

		listener, err := net.Listen("tcp", v.GetString("rpc-addr"))
		cli.CheckErrf("creating listener: %v", err)
		apiListener, err := net.Listen("tcp", v.GetString("listen-addr"))
		cli.CheckErrf("creating api listener: %v", err)

		serv, err := service.New(service.Config{
			Listener:     listener,
			APIListener:  apiListener,
			Cadence:      cadenceConf,
			CycleTimeout: v.GetDuration("cycle-timeout"),
		}, sel)
		cli.CheckErrf("starting service: %v", err)
		fin.Add(serv)

		cli.HandleInterrupt(func() {
			cli.CheckErr(fin.Cleanupf("closing service: %v", nil))
		})
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Checks the health of a running builderd",
	Long:  "Checks the health of the builderd serving on rpc-addr, exiting with an error unless it is serving",
	Args:  cobra.NoArgs,
	Run: func(c *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), v.GetDuration("dial-timeout"))
		defer cancel()
		cli.CheckErrf("checking health: %v", checkHealth(ctx, dialTarget(v.GetString("rpc-addr"))))
		fmt.Println(healthpb.HealthCheckResponse_SERVING)
	},
}

// dialTarget turns a listen address into an address to dial.
func dialTarget(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	return addr
}

func checkHealth(ctx context.Context, target string) error {
	conn, err := grpc.DialContext(ctx, target, rpc.GetClientOpts(target)...)
	if err != nil {
		return fmt.Errorf("dialing %s: %s", target, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Errorf("closing connection: %s", err)
		}
	}()

	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service.HealthService})
	if err != nil {
		return fmt.Errorf("calling health check: %s", err)
	}
	if res.Status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("service is %s", res.Status)
	}
	return nil
}

func parseChainID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid chain id: %q", s)
	}
	if id.Sign() <= 0 {
		return nil, fmt.Errorf("chain id should be positive: %s", id)
	}
	return id, nil
}

func main() {
	cli.CheckErr(rootCmd.Execute())
}
