package callqueue

import (
	"context"
	"errors"
	"fmt"

	xhttp "github.com/aleksgain/crypto-market-analyzer/pkg/http"
)

// FailureKind classifies terminal call failures surfaced to callers.
type FailureKind string

const (
	// KindRateLimitExhausted means the call was never granted a token
	// within its token-wait budget.
	KindRateLimitExhausted FailureKind = "rate_limit_exhausted"
	// KindUpstreamError means the remote answered with an error status.
	KindUpstreamError FailureKind = "upstream_error"
	// KindTimeout means the call's own deadline elapsed.
	KindTimeout FailureKind = "timeout"
	// KindTerminalFailure is generic exhaustion without a sharper class.
	KindTerminalFailure FailureKind = "terminal_failure"
)

// CallError is the typed failure a handle resolves with.
type CallError struct {
	Kind    FailureKind
	Service string
	Err     error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("call to %s failed (%s): %v", e.Service, e.Kind, e.Err)
	}
	return fmt.Sprintf("call to %s failed (%s)", e.Service, e.Kind)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from an error chain, or "" when the
// error is not a CallError.
func KindOf(err error) FailureKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// classify maps a provider error to a failure kind.
func classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return KindUpstreamError
	}
	return KindTerminalFailure
}

// retryable reports whether the error is transient: timeouts always are,
// upstream statuses per their own classification (429/408/5xx), everything
// else is not.
func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}
