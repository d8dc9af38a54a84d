package callqueue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	domrepo "github.com/aleksgain/crypto-market-analyzer/internal/domain/repository"
	"github.com/aleksgain/crypto-market-analyzer/internal/service/ratelimit"
	applogger "github.com/aleksgain/crypto-market-analyzer/pkg/logger"
)

// Caller performs one upstream call. Implementations parse the response
// into a typed result immediately so the rest of the system only sees
// typed data.
type Caller interface {
	Call(ctx context.Context, payload interface{}) (interface{}, error)
}

// Config tunes the scheduler loops.
type Config struct {
	// PollInterval is how long a loop sleeps when nothing is eligible or
	// the token bucket denied.
	PollInterval time.Duration
	// BackoffBase and BackoffMax bound the exponential retry backoff.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// TokenWaitMax bounds how long a call may sit in a continuous
	// token-denial streak before failing with RateLimitExhausted.
	TokenWaitMax time.Duration
	// QueueSize caps pending calls per service.
	QueueSize int
}

func (c *Config) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = time.Minute
	}
	if c.TokenWaitMax <= 0 {
		c.TokenWaitMax = time.Minute
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
}

// serviceQueue is the pending-call set for one upstream service, drained by
// a dedicated scheduler goroutine.
type serviceQueue struct {
	name    string
	caller  Caller
	timeout time.Duration

	mu      sync.Mutex
	pending []*call
	wake    chan struct{}
}

// Queue schedules external calls per service, respecting the token-bucket
// limiter and the retry policy. A slow or rate-limited service never blocks
// callers targeting a different service.
type Queue struct {
	cfg     Config
	limiter *ratelimit.Limiter
	metrics domrepo.Metrics
	l       *applogger.Logger

	mu       sync.Mutex
	services map[string]*serviceQueue
	seq      atomic.Uint64
	started  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a call queue. Services must be registered before Start.
func New(cfg Config, limiter *ratelimit.Limiter, metrics domrepo.Metrics, l *applogger.Logger) *Queue {
	cfg.setDefaults()
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:      cfg,
		limiter:  limiter,
		metrics:  metrics,
		l:        l,
		services: make(map[string]*serviceQueue),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds an upstream service with its caller and per-call timeout.
func (q *Queue) Register(service string, caller Caller, timeout time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.services[service] = &serviceQueue{
		name:    service,
		caller:  caller,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
	}
}

// Start launches one scheduler loop per registered service.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	for _, sq := range q.services {
		q.wg.Add(1)
		go q.run(sq)
	}
	q.l.Info("call queue started", applogger.Int("services", len(q.services)))
}

// Stop cancels the loops and resolves all still-pending calls with a
// terminal failure.
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, sq := range q.services {
		sq.mu.Lock()
		for _, c := range sq.pending {
			c.resolve(Outcome{Err: &CallError{
				Kind:    KindTerminalFailure,
				Service: sq.name,
				Err:     fmt.Errorf("queue stopped"),
			}})
		}
		sq.pending = nil
		sq.mu.Unlock()
	}
	q.l.Info("call queue stopped")
}

// Enqueue queues a call for a service and returns a handle to await its
// terminal outcome.
func (q *Queue) Enqueue(service string, payload interface{}, maxAttempts int) (*Handle, error) {
	q.mu.Lock()
	if q.ctx.Err() != nil {
		q.mu.Unlock()
		return nil, fmt.Errorf("callqueue: queue stopped")
	}
	sq, ok := q.services[service]
	q.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("callqueue: unknown service %q", service)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	c := newCall(service, payload, maxAttempts, q.seq.Add(1))

	sq.mu.Lock()
	if len(sq.pending) >= q.cfg.QueueSize {
		sq.mu.Unlock()
		return nil, fmt.Errorf("callqueue: %s queue full", service)
	}
	sq.pending = append(sq.pending, c)
	depth := len(sq.pending)
	sq.mu.Unlock()

	q.metrics.RecordQueueDepth(service, depth)

	// Wake the loop if it is sleeping on an empty queue.
	select {
	case sq.wake <- struct{}{}:
	default:
	}

	return &Handle{id: c.id, done: c.done}, nil
}

// Depth reports the number of pending calls for a service.
func (q *Queue) Depth(service string) int {
	q.mu.Lock()
	sq, ok := q.services[service]
	q.mu.Unlock()
	if !ok {
		return 0
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()
	return len(sq.pending)
}

// recordDepth publishes the current pending count for a service so the
// gauge tracks pops and re-queues, not just enqueues.
func (q *Queue) recordDepth(sq *serviceQueue) {
	sq.mu.Lock()
	depth := len(sq.pending)
	sq.mu.Unlock()
	q.metrics.RecordQueueDepth(sq.name, depth)
}

// run is the scheduling loop for one service.
func (q *Queue) run(sq *serviceQueue) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		default:
		}

		now := time.Now()
		c := sq.popEligible(now)
		if c == nil {
			q.sleep(sq)
			continue
		}
		q.recordDepth(sq)

		if !q.limiter.Allow(sq.name) {
			q.metrics.RecordTokenDenied(sq.name)
			if c.firstDenied.IsZero() {
				c.firstDenied = now
			} else if now.Sub(c.firstDenied) > q.cfg.TokenWaitMax {
				q.l.Warn("token wait budget exhausted",
					applogger.String("service", sq.name),
					applogger.String("call", c.id))
				c.resolve(Outcome{Err: &CallError{
					Kind:    KindRateLimitExhausted,
					Service: sq.name,
					Err:     fmt.Errorf("no token within %s", q.cfg.TokenWaitMax),
				}})
				q.metrics.RecordTerminalFailure(sq.name, string(KindRateLimitExhausted))
				continue
			}
			// Put the call back at its original position and recheck after
			// a short sleep. Denial must not cost an attempt.
			sq.pushFront(c)
			q.recordDepth(sq)
			q.sleep(sq)
			continue
		}
		c.firstDenied = time.Time{}

		q.perform(sq, c)
	}
}

// perform executes one granted call and drives the retry state machine.
func (q *Queue) perform(sq *serviceQueue, c *call) {
	c.attempt++

	ctx := q.ctx
	var cancel context.CancelFunc
	if sq.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, sq.timeout)
	}
	start := time.Now()
	result, err := sq.caller.Call(ctx, c.payload)
	if cancel != nil {
		cancel()
	}
	q.metrics.RecordCallLatency(sq.name, time.Since(start).Seconds())

	if err == nil {
		q.metrics.RecordCall(sq.name, "success")
		c.resolve(Outcome{Result: result})
		return
	}

	kind := classify(err)
	q.metrics.RecordCall(sq.name, "failure")

	if retryable(err) && c.attempt < c.maxAttempts {
		delay := q.backoff(c.attempt)
		c.next = time.Now().Add(delay)
		c.seq = q.seq.Add(1) // retried call loses its position, goes to the tail
		sq.pushBack(c)
		q.recordDepth(sq)
		q.metrics.RecordRetry(sq.name)
		q.l.Debug("call retry scheduled",
			applogger.String("service", sq.name),
			applogger.String("call", c.id),
			applogger.Int("attempt", c.attempt),
			applogger.Duration("delay", delay),
			applogger.Error(err))
		return
	}

	q.metrics.RecordTerminalFailure(sq.name, string(kind))
	q.l.Warn("call terminally failed",
		applogger.String("service", sq.name),
		applogger.String("call", c.id),
		applogger.Int("attempts", c.attempt),
		applogger.Error(err))
	c.resolve(Outcome{Err: &CallError{Kind: kind, Service: sq.name, Err: err}})
}

// backoff returns the exponential delay for the given attempt count, capped
// at BackoffMax.
func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.cfg.BackoffBase
	for i := 0; i < attempt && delay < q.cfg.BackoffMax; i++ {
		delay *= 2
	}
	if delay > q.cfg.BackoffMax {
		delay = q.cfg.BackoffMax
	}
	return delay
}

// sleep waits for the poll interval, an enqueue wake-up, or shutdown.
func (q *Queue) sleep(sq *serviceQueue) {
	timer := time.NewTimer(q.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-q.ctx.Done():
	case <-sq.wake:
	case <-timer.C:
	}
}

// popEligible removes and returns the earliest eligible call: smallest
// nextEligibleTime, FIFO by enqueue sequence among equals. Returns nil when
// no call is eligible yet.
func (sq *serviceQueue) popEligible(now time.Time) *call {
	sq.mu.Lock()
	defer sq.mu.Unlock()

	best := -1
	for i, c := range sq.pending {
		if c.next.After(now) {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		b := sq.pending[best]
		if c.next.Before(b.next) || (c.next.Equal(b.next) && c.seq < b.seq) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	c := sq.pending[best]
	sq.pending = append(sq.pending[:best], sq.pending[best+1:]...)
	return c
}

func (sq *serviceQueue) pushFront(c *call) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.pending = append([]*call{c}, sq.pending...)
}

func (sq *serviceQueue) pushBack(c *call) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.pending = append(sq.pending, c)
}
