package rpc

import (
	"sync"

	"github.com/space-operator/spo-go/pkg/api"
)

type (
	// Resolver receives the outcome of a pending request. Exactly one of
	// resp and err is set
	Resolver func(resp *api.Response, err error)

	// Correlator matches response frames to the requests that produced them
	Correlator struct {
		pending map[api.RequestID]Resolver
		mu      sync.Mutex
		next    uint32
	}
)

// NewCorrelator creates an empty Correlator whose first id is 1
func NewCorrelator() *Correlator {
	return &Correlator{
		pending: map[api.RequestID]Resolver{},
	}
}

// NextID returns the next request id. The counter wraps from 0xFFFFFFFF
// to 0
func (c *Correlator) NextID() api.RequestID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return api.RequestID(c.next)
}

// Register stores the resolver for id. It must be called before the request
// frame is written
func (c *Correlator) Register(id api.RequestID, r Resolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[id] = r
}

// Resolve removes the entry for id and invokes its resolver with resp.
// Responses that match nothing are ignored
func (c *Correlator) Resolve(id api.RequestID, resp *api.Response) bool {
	r, ok := c.take(id)
	if !ok {
		return false
	}
	r(resp, nil)
	return true
}

// Forget drops the entry for id without invoking it. It reports false when
// the entry was already taken by Resolve or RejectAll, in which case its
// resolver has been or is being invoked
func (c *Correlator) Forget(id api.RequestID) bool {
	_, ok := c.take(id)
	return ok
}

// RejectAll fails every pending entry with err
func (c *Correlator) RejectAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = map[api.RequestID]Resolver{}
	c.mu.Unlock()

	for _, r := range pending {
		r(nil, err)
	}
}

// Pending returns the number of requests awaiting a response
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) take(id api.RequestID) (Resolver, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return r, ok
}
