package callqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal result of a queued call.
type Outcome struct {
	Result interface{}
	Err    error
}

// Handle lets a caller await the terminal outcome of an enqueued call.
// Abandoning the wait (context done) does not cancel the underlying call;
// the scheduler still drives it to completion and discards the result.
type Handle struct {
	id   string
	done chan Outcome
}

// ID returns the call identifier, mostly for logging.
func (h *Handle) ID() string {
	return h.id
}

// Wait blocks until the call reaches a terminal state or ctx is done.
func (h *Handle) Wait(ctx context.Context) (interface{}, error) {
	select {
	case out := <-h.done:
		return out.Result, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// call is the scheduler-side state of one queued external call.
// Lifecycle: pending -> in-flight -> {succeeded | retry-scheduled -> pending
// | terminally-failed}.
type call struct {
	id          string
	service     string
	payload     interface{}
	attempt     int
	maxAttempts int
	next        time.Time // earliest time the call may run
	seq         uint64    // FIFO tie-break among equally eligible calls
	firstDenied time.Time // start of a continuous token-denial streak
	done        chan Outcome
}

func newCall(service string, payload interface{}, maxAttempts int, seq uint64) *call {
	return &call{
		id:          uuid.NewString(),
		service:     service,
		payload:     payload,
		maxAttempts: maxAttempts,
		seq:         seq,
		done:        make(chan Outcome, 1),
	}
}

// resolve delivers the terminal outcome. The buffered channel makes this
// non-blocking even when the caller abandoned the handle.
func (c *call) resolve(out Outcome) {
	c.done <- out
}
