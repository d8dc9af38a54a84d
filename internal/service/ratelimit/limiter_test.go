package ratelimit

import (
	"testing"
	"time"
)

func TestBurstThenDeny(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l := New(WithClock(func() time.Time { return now }))
	l.Configure("prices", 5, 1)

	for i := 0; i < 5; i++ {
		if !l.Allow("prices") {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if l.Allow("prices") {
		t.Fatalf("6th immediate acquire should be denied")
	}

	// One second of refill yields exactly one more token.
	now = now.Add(time.Second)
	if !l.Allow("prices") {
		t.Fatalf("acquire after 1s refill should succeed")
	}
	if l.Allow("prices") {
		t.Fatalf("bucket should be empty again")
	}
}

func TestTokensNeverExceedCapacity(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l := New(WithClock(func() time.Time { return now }))
	l.Configure("news", 3, 10)

	// Long idle period must not overfill the bucket.
	now = now.Add(time.Hour)
	if got := l.Tokens("news"); got > 3 {
		t.Fatalf("tokens %v exceed capacity", got)
	}

	// Tokens never go negative regardless of acquire pressure.
	for i := 0; i < 20; i++ {
		l.Allow("news")
	}
	if got := l.Tokens("news"); got < 0 {
		t.Fatalf("tokens went negative: %v", got)
	}
}

func TestUnknownServiceDenied(t *testing.T) {
	l := New()
	if l.Allow("nope") {
		t.Fatalf("unknown service must be denied")
	}
}

func TestIndependentBuckets(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l := New(WithClock(func() time.Time { return now }))
	l.Configure("a", 1, 1)
	l.Configure("b", 1, 1)

	if !l.Allow("a") {
		t.Fatalf("a should have a token")
	}
	if !l.Allow("b") {
		t.Fatalf("draining a must not affect b")
	}
}

func TestAllowAndTokensAgreeOnRefill(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l := New(WithClock(func() time.Time { return now }))
	l.Configure("prices", 4, 2)

	for i := 0; i < 4; i++ {
		l.Allow("prices")
	}
	if got := l.Tokens("prices"); got != 0 {
		t.Fatalf("tokens = %v, want 0 after drain", got)
	}

	// Both read paths see the same refill arithmetic.
	now = now.Add(500 * time.Millisecond)
	if got := l.Tokens("prices"); got != 1 {
		t.Fatalf("tokens = %v, want 1 after 0.5s at rate 2", got)
	}
	if !l.Allow("prices") {
		t.Fatal("Allow should consume the refilled token")
	}
	if got := l.Tokens("prices"); got != 0 {
		t.Fatalf("tokens = %v, want 0 after consume", got)
	}
}
