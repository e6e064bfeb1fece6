package podclient

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/textileio/flashbid/auction"
	"github.com/textileio/flashbid/chainapi"
	golog "github.com/textileio/go-log/v2"
)

var log = golog.Logger("podclient")

// AuctionABI is the subset of the auction contract ABI the client reads.
const AuctionABI = `[{"anonymous":false,"inputs":[` +
	`{"indexed":true,"internalType":"uint256","name":"auction_id","type":"uint256"},` +
	`{"indexed":true,"internalType":"address","name":"bidder","type":"address"},` +
	`{"indexed":true,"internalType":"uint256","name":"deadline","type":"uint256"},` +
	`{"indexed":false,"internalType":"uint256","name":"value","type":"uint256"},` +
	`{"indexed":false,"internalType":"bytes","name":"data","type":"bytes"}],` +
	`"name":"BidSubmitted","type":"event"}]`

const bidSubmittedEvent = "BidSubmitted"

var auctionABI = mustParseABI(AuctionABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parsing auction abi: %s", err))
	}
	return parsed
}

// Client talks to the pod companion chain over JSON-RPC.
type Client struct {
	rpcClient *rpc.Client
	eth       *ethclient.Client
	contract  common.Address
}

var _ chainapi.ChainAPI = (*Client)(nil)

// Dial connects to the pod provider at url. Any transport supported by
// go-ethereum's rpc package (http, ws) can be used.
func Dial(ctx context.Context, url string, contract common.Address) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing pod provider: %s", err)
	}
	return NewClient(rpcClient, contract), nil
}

// NewClient creates a new Client on top of an existing rpc client.
func NewClient(rpcClient *rpc.Client, contract common.Address) *Client {
	return &Client{
		rpcClient: rpcClient,
		eth:       ethclient.NewClient(rpcClient),
		contract:  contract,
	}
}

// WaitPastPerfectTime blocks until pod attests that real time is past t.
func (c *Client) WaitPastPerfectTime(ctx context.Context, t time.Time) error {
	log.Debugf("waiting for past perfect time %d", t.UnixMicro())
	if err := c.rpcClient.CallContext(ctx, nil, "pod_waitPastPerfectTime", t.UnixMicro()); err != nil {
		return fmt.Errorf("calling pod_waitPastPerfectTime: %s", err)
	}
	return nil
}

// BidsForDeadline returns the bids submitted to the auction contract for the
// given deadline, in the order the provider reports them.
func (c *Client) BidsForDeadline(ctx context.Context, deadline time.Time) ([]auction.Bid, error) {
	q := ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics: [][]common.Hash{
			{auctionABI.Events[bidSubmittedEvent].ID},
			nil,
			nil,
			{DeadlineTopic(deadline)},
		},
	}
	logs, err := c.eth.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("filtering bid logs: %s", err)
	}

	bids := make([]auction.Bid, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		var ev struct {
			Value *big.Int
			Data  []byte
		}
		if err := auctionABI.UnpackIntoInterface(&ev, bidSubmittedEvent, l.Data); err != nil {
			return nil, fmt.Errorf("unpacking bid log %s/%d: %s", l.TxHash, l.Index, err)
		}
		amount, overflow := uint256.FromBig(ev.Value)
		if overflow {
			return nil, fmt.Errorf("bid amount of log %s/%d overflows 256 bits", l.TxHash, l.Index)
		}
		bids = append(bids, auction.Bid{Amount: amount, Data: ev.Data})
	}
	log.Debugf("fetched %d bids for deadline %d", len(bids), deadline.UnixMicro())
	return bids, nil
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	c.rpcClient.Close()
	return nil
}

// DeadlineTopic returns the indexed event topic of an auction deadline, which
// pod expresses in unix microseconds.
func DeadlineTopic(deadline time.Time) common.Hash {
	return common.BigToHash(big.NewInt(deadline.UnixMicro()))
}
