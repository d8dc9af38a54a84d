package http

import "fmt"

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if len(e.Body) > 160 {
		return fmt.Sprintf("unexpected status %d: %s...", e.Status, e.Body[:160])
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the status indicates a transient condition.
// Provider rate-limit responses (429), request timeouts (408) and server
// errors qualify; other 4xx do not.
func (e *StatusError) Retryable() bool {
	return e.Status == 408 || e.Status == 429 || e.Status >= 500
}
