package callqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aleksgain/crypto-market-analyzer/internal/service/ratelimit"
	xhttp "github.com/aleksgain/crypto-market-analyzer/pkg/http"
)

type funcCaller func(ctx context.Context, payload interface{}) (interface{}, error)

func (f funcCaller) Call(ctx context.Context, payload interface{}) (interface{}, error) {
	return f(ctx, payload)
}

func openLimiter(services ...string) *ratelimit.Limiter {
	l := ratelimit.New()
	for _, s := range services {
		l.Configure(s, 1000, 1000)
	}
	return l
}

func testConfig() Config {
	return Config{
		PollInterval: 5 * time.Millisecond,
		BackoffBase:  10 * time.Millisecond,
		BackoffMax:   100 * time.Millisecond,
		TokenWaitMax: 50 * time.Millisecond,
		QueueSize:    32,
	}
}

func TestSuccessResolvesHandle(t *testing.T) {
	q := New(testConfig(), openLimiter("prices"), nil, nil)
	q.Register("prices", funcCaller(func(_ context.Context, payload interface{}) (interface{}, error) {
		return payload.(string) + ":ok", nil
	}), time.Second)
	q.Start()
	defer q.Stop()

	h, err := q.Enqueue("prices", "btc", 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if res != "btc:ok" {
		t.Fatalf("unexpected result %v", res)
	}
}

func TestMaxAttemptsBoundsRetries(t *testing.T) {
	var attempts atomic.Int32
	q := New(testConfig(), openLimiter("news"), nil, nil)
	q.Register("news", funcCaller(func(context.Context, interface{}) (interface{}, error) {
		attempts.Add(1)
		return nil, &xhttp.StatusError{Status: 500}
	}), time.Second)
	q.Start()
	defer q.Stop()

	h, _ := q.Enqueue("news", nil, 3)
	_, err := h.Wait(context.Background())
	if err == nil {
		t.Fatalf("expected terminal failure")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
	if KindOf(err) != KindUpstreamError {
		t.Fatalf("expected upstream_error, got %v", KindOf(err))
	}
}

func TestRetryThenSucceed(t *testing.T) {
	var attempts atomic.Int32
	cfg := testConfig()
	q := New(cfg, openLimiter("prices"), nil, nil)
	q.Register("prices", funcCaller(func(context.Context, interface{}) (interface{}, error) {
		if attempts.Add(1) <= 2 {
			return nil, &xhttp.StatusError{Status: 503}
		}
		return "recovered", nil
	}), time.Second)
	q.Start()
	defer q.Stop()

	start := time.Now()
	h, _ := q.Enqueue("prices", nil, 5)
	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if res != "recovered" {
		t.Fatalf("unexpected result %v", res)
	}

	// Elapsed time covers at least the first two backoff windows.
	minElapsed := q.backoff(1) + q.backoff(2)
	if elapsed := time.Since(start); elapsed < minElapsed {
		t.Fatalf("resolved after %v, want at least %v", elapsed, minElapsed)
	}
}

func TestNonRetryableFailsImmediately(t *testing.T) {
	var attempts atomic.Int32
	q := New(testConfig(), openLimiter("news"), nil, nil)
	q.Register("news", funcCaller(func(context.Context, interface{}) (interface{}, error) {
		attempts.Add(1)
		return nil, &xhttp.StatusError{Status: 404}
	}), time.Second)
	q.Start()
	defer q.Stop()

	h, _ := q.Enqueue("news", nil, 5)
	_, err := h.Wait(context.Background())
	if KindOf(err) != KindUpstreamError {
		t.Fatalf("expected upstream_error, got %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("non-retryable failure should not retry, got %d attempts", got)
	}
}

func TestBackoffNonDecreasing(t *testing.T) {
	q := New(testConfig(), openLimiter(), nil, nil)
	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := q.backoff(attempt)
		if d < prev {
			t.Fatalf("backoff decreased at attempt %d: %v < %v", attempt, d, prev)
		}
		if d > q.cfg.BackoffMax {
			t.Fatalf("backoff %v exceeds cap %v", d, q.cfg.BackoffMax)
		}
		prev = d
	}
}

func TestTimeoutClassified(t *testing.T) {
	q := New(testConfig(), openLimiter("llm"), nil, nil)
	q.Register("llm", funcCaller(func(ctx context.Context, _ interface{}) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), 10*time.Millisecond)
	q.Start()
	defer q.Stop()

	h, _ := q.Enqueue("llm", nil, 1)
	_, err := h.Wait(context.Background())
	if KindOf(err) != KindTimeout {
		t.Fatalf("expected timeout kind, got %v", err)
	}
}

func TestRateLimitExhausted(t *testing.T) {
	lim := ratelimit.New()
	lim.Configure("llm", 1, 0.0001) // effectively no refill

	q := New(testConfig(), lim, nil, nil)
	q.Register("llm", funcCaller(func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	}), time.Second)
	q.Start()
	defer q.Stop()

	h1, _ := q.Enqueue("llm", nil, 3)
	if _, err := h1.Wait(context.Background()); err != nil {
		t.Fatalf("first call should get the only token: %v", err)
	}

	h2, _ := q.Enqueue("llm", nil, 3)
	_, err := h2.Wait(context.Background())
	if KindOf(err) != KindRateLimitExhausted {
		t.Fatalf("expected rate_limit_exhausted, got %v", err)
	}
}

func TestFIFOWithinService(t *testing.T) {
	var mu sync.Mutex
	var order []string

	q := New(testConfig(), openLimiter("prices"), nil, nil)
	q.Register("prices", funcCaller(func(_ context.Context, payload interface{}) (interface{}, error) {
		mu.Lock()
		order = append(order, payload.(string))
		mu.Unlock()
		return nil, nil
	}), time.Second)

	// Enqueue before starting so all three are pending at once.
	h1, _ := q.Enqueue("prices", "first", 1)
	h2, _ := q.Enqueue("prices", "second", 1)
	h3, _ := q.Enqueue("prices", "third", 1)
	q.Start()
	defer q.Stop()

	for _, h := range []*Handle{h1, h2, h3} {
		if _, err := h.Wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "third"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order %v, want %v", order, want)
		}
	}
}

func TestSlowServiceDoesNotBlockOthers(t *testing.T) {
	q := New(testConfig(), openLimiter("slow", "fast"), nil, nil)
	q.Register("slow", funcCaller(func(ctx context.Context, _ interface{}) (interface{}, error) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return "slow", nil
	}), time.Second)
	q.Register("fast", funcCaller(func(context.Context, interface{}) (interface{}, error) {
		return "fast", nil
	}), time.Second)
	q.Start()
	defer q.Stop()

	hs, _ := q.Enqueue("slow", nil, 1)
	hf, _ := q.Enqueue("fast", nil, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := hf.Wait(ctx); err != nil {
		t.Fatalf("fast service blocked by slow one: %v", err)
	}
	if _, err := hs.Wait(context.Background()); err != nil {
		t.Fatalf("slow call should still complete: %v", err)
	}
}

func TestAbandonedHandleDoesNotStallLoop(t *testing.T) {
	q := New(testConfig(), openLimiter("prices"), nil, nil)
	q.Register("prices", funcCaller(func(_ context.Context, payload interface{}) (interface{}, error) {
		return payload, nil
	}), time.Second)
	q.Start()
	defer q.Stop()

	// Abandon the first handle immediately.
	h1, _ := q.Enqueue("prices", "abandoned", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h1.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	h2, _ := q.Enqueue("prices", "kept", 1)
	res, err := h2.Wait(context.Background())
	if err != nil || res != "kept" {
		t.Fatalf("second call should resolve: %v %v", res, err)
	}
}

func TestUnknownServiceRejected(t *testing.T) {
	q := New(testConfig(), openLimiter(), nil, nil)
	if _, err := q.Enqueue("nope", nil, 1); err == nil {
		t.Fatalf("expected error for unregistered service")
	}
}

type depthRecorder struct {
	mu   sync.Mutex
	last map[string]int
}

func (r *depthRecorder) RecordQueueDepth(service string, depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		r.last = make(map[string]int)
	}
	r.last[service] = depth
}

func (r *depthRecorder) lastDepth(service string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[service]
}

func (r *depthRecorder) RecordCall(string, string)            {}
func (r *depthRecorder) RecordTokenDenied(string)             {}
func (r *depthRecorder) RecordRetry(string)                   {}
func (r *depthRecorder) RecordTerminalFailure(string, string) {}
func (r *depthRecorder) RecordCallLatency(string, float64)    {}
func (r *depthRecorder) RecordPrediction(string)              {}
func (r *depthRecorder) RecordAccuracyResolved()              {}

func TestDepthGaugeDrainsToZero(t *testing.T) {
	rec := &depthRecorder{}
	q := New(testConfig(), openLimiter("prices"), rec, nil)
	q.Register("prices", funcCaller(func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	}), time.Second)
	q.Start()
	defer q.Stop()

	handles := make([]*Handle, 0, 3)
	for i := 0; i < 3; i++ {
		h, err := q.Enqueue("prices", i, 1)
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		if _, err := h.Wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}

	// The last pop happens before the final handle resolves; give the
	// loop a beat to publish it.
	deadline := time.After(time.Second)
	for rec.lastDepth("prices") != 0 {
		select {
		case <-deadline:
			t.Fatalf("depth gauge stuck at %d, want 0 after drain", rec.lastDepth("prices"))
		case <-time.After(time.Millisecond):
		}
	}
}

func TestEnqueueAfterStopRejected(t *testing.T) {
	q := New(testConfig(), openLimiter("prices"), nil, nil)
	q.Register("prices", funcCaller(func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	}), time.Second)
	q.Start()
	q.Stop()

	if _, err := q.Enqueue("prices", "btc", 1); err == nil {
		t.Fatal("expected enqueue after Stop to be rejected")
	}
	if q.Depth("prices") != 0 {
		t.Fatalf("depth = %d, want 0 after Stop", q.Depth("prices"))
	}
}
