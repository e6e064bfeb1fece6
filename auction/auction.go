package auction

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// DeadlineMargin is the gap the auction requires between a block's target time
// and the deadline of the bids it considers final for that block.
const DeadlineMargin = 2 * time.Second

// Deadline returns the auction deadline for a block targeted at the given time.
func Deadline(target time.Time, margin time.Duration) time.Time {
	return target.Add(-margin)
}

// Endpoint identifies an auction on the companion chain.
type Endpoint struct {
	ProviderURL string
	Contract    common.Address
}

// NewEndpoint validates and returns an Endpoint.
func NewEndpoint(providerURL, contract string) (Endpoint, error) {
	if providerURL == "" {
		return Endpoint{}, errors.New("provider url is empty")
	}
	u, err := url.Parse(providerURL)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parsing provider url: %s", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return Endpoint{}, fmt.Errorf("unsupported provider url scheme: %q", u.Scheme)
	}
	if !common.IsHexAddress(contract) {
		return Endpoint{}, fmt.Errorf("invalid contract address: %q", contract)
	}
	return Endpoint{
		ProviderURL: providerURL,
		Contract:    common.HexToAddress(contract),
	}, nil
}

// Bid defines the core bid model. Data holds an externally signed transaction
// whose priority fee is claimed to equal Amount.
type Bid struct {
	Amount *uint256.Int
	Data   []byte
}

// Transaction is a bid payload decoded into a signed transaction.
type Transaction struct {
	Tx          *types.Transaction
	Sender      common.Address
	Bid         *uint256.Int
	PriorityFee *uint256.Int
	Size        int
}

// Hash returns the transaction hash.
func (t *Transaction) Hash() common.Hash {
	return t.Tx.Hash()
}

// Nonce returns the sender nonce of the transaction.
func (t *Transaction) Nonce() uint64 {
	return t.Tx.Nonce()
}

// DependsOn reports whether t can't be included without a transaction from
// sender at nonce, i.e. it is the same or a later transaction of that account.
func (t *Transaction) DependsOn(sender common.Address, nonce uint64) bool {
	return t.Sender == sender && t.Tx.Nonce() >= nonce
}
