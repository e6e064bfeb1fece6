package selector

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/textileio/flashbid/auction"
)

// Cmp is the interface for a comparator.
type Cmp interface {
	// Cmp returns arbitrary number with the following semantics:
	// negative: i is considered to be less than j, and goes first
	// zero: i is considered to be equal to j
	// positive: i is considered to be greater than j
	Cmp(i, j *auction.Transaction) int
}

// CmpFn is a helper which turns a function to a Cmp interface.
func CmpFn(f func(i, j *auction.Transaction) int) Cmp {
	return fnCmp{f: f}
}

type fnCmp struct {
	f func(i, j *auction.Transaction) int
}

func (c fnCmp) Cmp(i, j *auction.Transaction) int {
	return c.f(i, j)
}

type ordered struct {
	cmps []Cmp
}

// Ordered executes each comparator in order, i.e., if the first comparator
// judges the two transactions to be equal, continues to the next comparator,
// and so on. It considers two transactions to be equal if all comparators are
// exhausted.
func Ordered(cmps ...Cmp) Cmp {
	return ordered{cmps}
}

func (c ordered) Cmp(i, j *auction.Transaction) int {
	for _, c := range c.cmps {
		if result := c.Cmp(i, j); result != 0 {
			return result
		}
	}
	return 0
}

// HigherBid returns a comparator which prefers the transaction with the higher
// bid amount.
func HigherBid() Cmp {
	return CmpFn(func(i, j *auction.Transaction) int {
		return j.Bid.Cmp(i.Bid)
	})
}

// SmallerPayload returns a comparator which prefers the transaction with the
// smaller encoded size.
func SmallerPayload() Cmp {
	return CmpFn(func(i, j *auction.Transaction) int {
		return i.Size - j.Size
	})
}

// EarlierNonce returns a comparator which orders transactions by sender and
// then by nonce, so that the transactions of a sender come in nonce order.
func EarlierNonce() Cmp {
	return CmpFn(func(i, j *auction.Transaction) int {
		if c := bytes.Compare(i.Sender.Bytes(), j.Sender.Bytes()); c != 0 {
			return c
		}
		switch {
		case i.Nonce() < j.Nonce():
			return -1
		case i.Nonce() > j.Nonce():
			return 1
		}
		return 0
	})
}

// Tiebreaks lists the names accepted by TiebreakComparator.
var Tiebreaks = []string{"none", "nonce", "size"}

// TiebreakComparator returns the comparator that orders by higher bid first
// and settles equal bids with the named rule. With "none" equal bids keep the
// provider order. The other rules apply EarlierNonce or SmallerPayload.
func TiebreakComparator(name string) (Cmp, error) {
	switch name {
	case "", "none":
		return HigherBid(), nil
	case "nonce":
		return Ordered(HigherBid(), EarlierNonce()), nil
	case "size":
		return Ordered(HigherBid(), SmallerPayload()), nil
	}
	return nil, fmt.Errorf("unknown bid tiebreak %q, expected one of %v", name, Tiebreaks)
}

// sortTransactions sorts txs in place. Equal transactions keep the order in
// which they were given.
func sortTransactions(txs []*auction.Transaction, cmp Cmp) {
	sort.SliceStable(txs, func(i, j int) bool {
		return cmp.Cmp(txs[i], txs[j]) < 0
	})
}
