package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/textileio/flashbid/cmd/builderd/selector"
)

// ErrCycleNotFound indicates that a cycle doesn't exist or has expired.
var ErrCycleNotFound = errors.New("cycle not found")

type cycle struct {
	txs     *selector.Transactions
	expires time.Time
}

// cycles tracks the transaction cursors handed out to block builders.
type cycles struct {
	ttl time.Duration

	lk      sync.Mutex
	items   map[string]*cycle
	entropy *ulid.MonotonicEntropy
}

func newCycles(ttl time.Duration) *cycles {
	return &cycles{
		ttl:   ttl,
		items: make(map[string]*cycle),
	}
}

// open registers txs and returns the id of the new cycle.
func (c *cycles) open(txs *selector.Transactions, now time.Time) (string, error) {
	c.lk.Lock()
	defer c.lk.Unlock()

	id, err := c.newID(now)
	if err != nil {
		return "", err
	}
	c.items[id] = &cycle{txs: txs, expires: now.Add(c.ttl)}
	return id, nil
}

// newID returns monotonically increasing cycle ids. It must be called with
// the lock held, since entropy is not safe for concurrent use.
func (c *cycles) newID(t time.Time) (string, error) {
	if c.entropy == nil {
		c.entropy = ulid.Monotonic(rand.Reader, 0)
	}
	id, err := ulid.New(ulid.Timestamp(t.UTC()), c.entropy)
	if errors.Is(err, ulid.ErrMonotonicOverflow) {
		c.entropy = nil
		return c.newID(t)
	} else if err != nil {
		return "", fmt.Errorf("generating id: %v", err)
	}
	return strings.ToLower(id.String()), nil
}

// get returns the cursor of a live cycle.
func (c *cycles) get(id string, now time.Time) (*selector.Transactions, error) {
	c.lk.Lock()
	defer c.lk.Unlock()
	cy, ok := c.items[strings.ToLower(id)]
	if !ok || !now.Before(cy.expires) {
		return nil, ErrCycleNotFound
	}
	return cy.txs, nil
}

// close forgets a cycle. It reports whether the cycle was registered, and
// whether it was still live.
func (c *cycles) close(id string, now time.Time) (deleted, live bool) {
	c.lk.Lock()
	defer c.lk.Unlock()
	id = strings.ToLower(id)
	cy, ok := c.items[id]
	if !ok {
		return false, false
	}
	delete(c.items, id)
	return true, now.Before(cy.expires)
}

// expire removes the cycles that expired before now and returns how many.
func (c *cycles) expire(now time.Time) int {
	c.lk.Lock()
	defer c.lk.Unlock()
	var n int
	for id, cy := range c.items {
		if !now.Before(cy.expires) {
			delete(c.items, id)
			n++
		}
	}
	return n
}

func (c *cycles) len() int {
	c.lk.Lock()
	defer c.lk.Unlock()
	return len(c.items)
}
