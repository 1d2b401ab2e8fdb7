// Package oracle implements the single-flight escalation client described
// in spec.md §4.5: on low confidence, ask an external reasoning service for
// an overriding allocation, with an absolute per-request deadline and
// response coalescing so at most one request is ever outstanding.
package oracle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gridctl/gridctl/internal/domain"
	"github.com/gridctl/gridctl/internal/solver"
)

// DefaultDeadline is the oracle response deadline from spec.md §4.5.
const DefaultDeadline = 300 * time.Millisecond

// Request is the compact escalation context sent to the external service.
type Request struct {
	ID                 string
	Snapshots          []domain.Snapshot
	Sources            []domain.SourceSpec
	RejectedAllocation solver.Allocation
}

// Response is what the external service returns: either a proposed
// allocation or nothing, if it could not produce one in time.
type Response struct {
	RequestID  string
	Allocation solver.Allocation
	OK         bool
}

// Transport performs the actual call to the external reasoning service.
// The default implementation talks HTTP+JSON; tests substitute a stub.
type Transport interface {
	RequestOverride(ctx context.Context, req Request) (Response, error)
}

// Client is a single-flight escalation gate: Escalate is a no-op while a
// request is already outstanding, and Poll returns a response at most once.
//
// Grounded on the executor's single-in-flight task-claim pattern (one
// worker owns a task until it completes or is abandoned) generalized from
// a work queue to a single named slot.
type Client struct {
	transport Transport
	deadline  time.Duration

	mu         sync.Mutex
	inFlight   bool
	inFlightID string

	result atomic.Pointer[Response]
}

// New constructs a Client. deadline <= 0 uses DefaultDeadline.
func New(transport Transport, deadline time.Duration) *Client {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Client{transport: transport, deadline: deadline}
}

// Escalate submits req asynchronously if no request is currently
// outstanding. It returns false without submitting if one already is —
// the caller's escalation is coalesced into the in-flight request.
func (c *Client) Escalate(req Request) bool {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return false
	}
	req.ID = uuid.NewString()
	c.inFlight = true
	c.inFlightID = req.ID
	c.mu.Unlock()

	go c.run(req)
	return true
}

func (c *Client) run(req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), c.deadline)
	defer cancel()

	resp, err := c.transport.RequestOverride(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if req.ID != c.inFlightID {
		// superseded or already consumed; discard per idempotency contract
		return
	}
	c.inFlight = false
	if err != nil || !resp.OK {
		return
	}
	resp.RequestID = req.ID
	c.result.Store(&resp)
}

// Poll returns the most recent response and clears it — a response is
// delivered at most once, satisfying the "applied no earlier than the
// following tick, never retroactively" ordering rule from spec.md §5.
func (c *Client) Poll() (Response, bool) {
	p := c.result.Swap(nil)
	if p == nil {
		return Response{}, false
	}
	return *p, true
}

// Outstanding reports whether a request is currently in flight.
func (c *Client) Outstanding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}
