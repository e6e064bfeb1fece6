package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/textileio/flashbid/auction"
)

// BuilderAPI is the JSON-RPC API served under the builder namespace.
type BuilderAPI struct {
	s *Service
}

// Cadence describes how flashblocks are produced for a block time.
type Cadence struct {
	FlashblocksPerBlock         uint64 `json:"flashblocksPerBlock"`
	IntervalMillis              int64  `json:"intervalMillis"`
	LeewayMillis                int64  `json:"leewayMillis"`
	FirstFlashblockBudgetMillis int64  `json:"firstFlashblockBudgetMillis"`
	Fixed                       bool   `json:"fixed"`
	WSAddr                      string `json:"wsAddr"`
}

// Cycle is an opened selection cycle.
type Cycle struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// Transaction is a selected transaction.
type Transaction struct {
	Hash        common.Hash    `json:"hash"`
	From        common.Address `json:"from"`
	Nonce       hexutil.Uint64 `json:"nonce"`
	Bid         *hexutil.Big   `json:"bid"`
	PriorityFee *hexutil.Big   `json:"priorityFee"`
	Raw         hexutil.Bytes  `json:"raw"`
}

// Cadence returns the flashblock cadence of blocks lasting blockTimeMillis.
func (api *BuilderAPI) Cadence(blockTimeMillis uint64) *Cadence {
	c := api.s.config.Cadence
	blockTime := time.Duration(blockTimeMillis) * time.Millisecond
	return &Cadence{
		FlashblocksPerBlock:         c.FlashblocksPerBlock(blockTime),
		IntervalMillis:              c.Interval.Milliseconds(),
		LeewayMillis:                c.Leeway.Milliseconds(),
		FirstFlashblockBudgetMillis: c.FirstFlashblockBudget().Milliseconds(),
		Fixed:                       c.Fixed,
		WSAddr:                      c.WSAddr,
	}
}

// OpenCycle waits for the auction of the block targeted at timestamp (unix
// seconds) and opens a cycle over its transactions.
func (api *BuilderAPI) OpenCycle(ctx context.Context, timestamp uint64) (*Cycle, error) {
	id, count, err := api.s.openCycle(ctx, time.Unix(int64(timestamp), 0))
	if err != nil {
		return nil, err
	}
	return &Cycle{ID: id, Count: count}, nil
}

// Next returns the next transaction of a cycle, or null once exhausted.
func (api *BuilderAPI) Next(id string) (*Transaction, error) {
	txs, err := api.s.cycles.get(id, time.Now())
	if err != nil {
		return nil, err
	}
	tx, ok := txs.Next()
	if !ok {
		return nil, nil
	}
	return newTransaction(tx)
}

// MarkInvalid drops the pending transactions of sender from nonce on, and
// returns how many transactions are left in the cycle.
func (api *BuilderAPI) MarkInvalid(id string, sender common.Address, nonce hexutil.Uint64) (int, error) {
	txs, err := api.s.cycles.get(id, time.Now())
	if err != nil {
		return 0, err
	}
	txs.MarkInvalid(sender, uint64(nonce))
	return txs.Len(), nil
}

// Remaining returns how many transactions are left in a cycle.
func (api *BuilderAPI) Remaining(id string) (int, error) {
	txs, err := api.s.cycles.get(id, time.Now())
	if err != nil {
		return 0, err
	}
	return txs.Len(), nil
}

// CloseCycle releases a cycle.
func (api *BuilderAPI) CloseCycle(ctx context.Context, id string) error {
	if !api.s.closeCycle(ctx, id) {
		return ErrCycleNotFound
	}
	return nil
}

func newTransaction(tx *auction.Transaction) (*Transaction, error) {
	raw, err := tx.Tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encoding transaction: %s", err)
	}
	return &Transaction{
		Hash:        tx.Hash(),
		From:        tx.Sender,
		Nonce:       hexutil.Uint64(tx.Nonce()),
		Bid:         (*hexutil.Big)(tx.Bid.ToBig()),
		PriorityFee: (*hexutil.Big)(tx.PriorityFee.ToBig()),
		Raw:         raw,
	}, nil
}
