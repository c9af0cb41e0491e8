package model

import (
	"fmt"
	"time"
)

// RateLimitError reports an HTTP 429 from the external API. Reset carries the
// server's reset hint when present (zero otherwise). Callers abort the
// remainder of the run and let the next scheduled invocation pick up.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "rate limited (HTTP 429)"
	}
	return fmt.Sprintf("rate limited (HTTP 429), resets at %s", e.Reset.Format(time.RFC3339))
}

// AuthError reports invalid credentials (HTTP 401). Retrying is useless; the
// run aborts and an operator alert fires.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (HTTP %d): check bearer token", e.StatusCode)
}

// APIError covers every other API failure: HTTP 400 (malformed or deleted
// target), 5xx, and transport-level errors (StatusCode 0). Treated as
// transient per item — callers skip just the affected item.
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api request failed: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("api error (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("api error (HTTP %d)", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
