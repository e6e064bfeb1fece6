package selector

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/textileio/flashbid/auction"
	"github.com/textileio/flashbid/logging"
	"go.opentelemetry.io/otel/metric"
)

// Transactions is a single pass cursor over selected transactions. It is safe
// for concurrent use.
type Transactions struct {
	lk  sync.Mutex
	txs []*auction.Transaction
	log logging.Logger

	metricInvalidated metric.Int64Counter
}

// NewTransactions returns a cursor yielding txs in the given order.
func NewTransactions(txs []*auction.Transaction, log logging.Logger) *Transactions {
	return newTransactions(txs, logging.OrDefault(log, "selector"), newInvalidatedCounter())
}

func newTransactions(txs []*auction.Transaction, log logging.Logger, invalidated metric.Int64Counter) *Transactions {
	return &Transactions{
		txs:               txs,
		log:               log,
		metricInvalidated: invalidated,
	}
}

// Next returns the next transaction. It returns false once the cursor is
// exhausted, and keeps doing so on later calls.
func (t *Transactions) Next() (*auction.Transaction, bool) {
	t.lk.Lock()
	defer t.lk.Unlock()
	if len(t.txs) == 0 {
		return nil, false
	}
	tx := t.txs[0]
	t.txs[0] = nil
	t.txs = t.txs[1:]
	return tx, true
}

// MarkInvalid drops the not yet returned transactions of sender with a nonce
// at or above nonce, since they can't be included anymore. The order of the
// remaining transactions is preserved. It returns how many were dropped.
func (t *Transactions) MarkInvalid(sender common.Address, nonce uint64) int {
	t.lk.Lock()
	defer t.lk.Unlock()

	kept := t.txs[:0]
	for _, tx := range t.txs {
		if tx.DependsOn(sender, nonce) {
			continue
		}
		kept = append(kept, tx)
	}
	removed := len(t.txs) - len(kept)
	for i := len(kept); i < len(t.txs); i++ {
		t.txs[i] = nil
	}
	t.txs = kept

	t.log.Warnf("transaction of %s with nonce %d marked invalid, dropped %d pending transactions",
		sender, nonce, removed)
	t.metricInvalidated.Add(context.Background(), int64(removed))
	return removed
}

// Len returns how many transactions are left.
func (t *Transactions) Len() int {
	t.lk.Lock()
	defer t.lk.Unlock()
	return len(t.txs)
}
