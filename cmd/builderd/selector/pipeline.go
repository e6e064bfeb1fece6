package selector

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/textileio/flashbid/auction"
	"github.com/textileio/flashbid/logging"
	"github.com/textileio/flashbid/metrics"
	"go.opentelemetry.io/otel/metric"
)

// Pipeline turns auction bids into an ordered transaction cursor.
type Pipeline struct {
	signer types.Signer
	cmp    Cmp
	strict bool
	log    logging.Logger

	metricDropped     metric.Int64Counter
	metricFeeMismatch metric.Int64Counter
	metricInvalidated metric.Int64Counter
}

// NewPipeline returns a Pipeline recovering senders with the latest signer of
// the given chain.
func NewPipeline(chainID *big.Int, opts ...Option) (*Pipeline, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id should be positive: %v", chainID)
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		signer: types.LatestSignerForChainID(chainID),
		cmp:    cfg.cmp,
		strict: cfg.strictFeeCheck,
		log:    cfg.log,
	}
	p.initMetrics()
	return p, nil
}

// Select decodes every bid payload and returns the resulting transactions
// ordered by the configured comparator, by default highest bid first. Bids
// that don't decode are dropped. Transactions whose priority fee differs
// from their bid are reported, and only dropped in strict mode.
func (p *Pipeline) Select(bids []auction.Bid) *Transactions {
	ctx := context.Background()
	txs := make([]*auction.Transaction, 0, len(bids))
	for i, bid := range bids {
		tx, err := p.decode(bid)
		if err != nil {
			p.log.Warnf("failed to decode transaction from pod (bid #%d, %s payload): %s",
				i, humanize.Bytes(uint64(len(bid.Data))), err)
			p.metricDropped.Add(ctx, 1, metrics.AttrReason("decode"))
			continue
		}
		p.log.Infof("fetched tx %s from pod (sender %s, nonce %d, bid %d, %s)",
			tx.Hash(), tx.Sender, tx.Nonce(), tx.Bid, humanize.Bytes(uint64(tx.Size)))

		if !tx.PriorityFee.Eq(tx.Bid) {
			p.log.Errorf("tx %s max priority fee per gas %d doesn't match bid amount %d",
				tx.Hash(), tx.PriorityFee, tx.Bid)
			p.metricFeeMismatch.Add(ctx, 1)
			if p.strict {
				p.metricDropped.Add(ctx, 1, metrics.AttrReason("fee_mismatch"))
				continue
			}
		}
		txs = append(txs, tx)
	}

	sortTransactions(txs, p.cmp)
	p.log.Debugf("selected %d of %d bids", len(txs), len(bids))
	return newTransactions(txs, p.log, p.metricInvalidated)
}

func (p *Pipeline) decode(bid auction.Bid) (*auction.Transaction, error) {
	if bid.Amount == nil {
		return nil, errors.New("bid has no amount")
	}
	tx, err := decodeTransaction(bid.Data)
	if err != nil {
		return nil, err
	}
	sender, err := types.Sender(p.signer, tx)
	if err != nil {
		return nil, fmt.Errorf("recovering sender: %s", err)
	}
	return &auction.Transaction{
		Tx:          tx,
		Sender:      sender,
		Bid:         bid.Amount,
		PriorityFee: priorityFee(tx),
		Size:        len(bid.Data),
	}, nil
}

// decodeTransaction accepts the canonical encoding of a transaction as well as
// the network form, where a typed envelope is wrapped in an rlp string.
func decodeTransaction(data []byte) (*types.Transaction, error) {
	tx := new(types.Transaction)
	err := tx.UnmarshalBinary(data)
	if err == nil {
		return tx, nil
	}
	if len(data) == 0 || data[0] <= 0x7f {
		return nil, fmt.Errorf("decoding transaction: %s", err)
	}
	wrapped := new(types.Transaction)
	if rlpErr := rlp.DecodeBytes(data, wrapped); rlpErr != nil {
		return nil, fmt.Errorf("decoding transaction: %s", err)
	}
	return wrapped, nil
}

// priorityFee returns the max priority fee per gas a transaction declares.
// Legacy and access list transactions declare none.
func priorityFee(tx *types.Transaction) *uint256.Int {
	switch tx.Type() {
	case types.LegacyTxType, types.AccessListTxType:
		return new(uint256.Int)
	}
	// Decoded fee fields are at most 256 bits wide.
	fee, _ := uint256.FromBig(tx.GasTipCap())
	return fee
}
