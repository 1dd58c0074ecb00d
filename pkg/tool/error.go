package tool

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failed call.
type Kind string

const (
	Timeout      Kind = "timeout"
	RateLimited  Kind = "rate-limited"
	Unauthorized Kind = "unauthorized"
	NotFound     Kind = "not-found"
	Transient    Kind = "transient"
	Unexpected   Kind = "unexpected"
)

// Retryable reports whether a failure of this kind may succeed on another
// attempt. Malformed input, authorisation failures and missing targets
// never do.
func (k Kind) Retryable() bool {
	switch k {
	case Timeout, RateLimited, Transient:
		return true
	default:
		return false
	}
}

// Sentinels a call function can wrap so the invoker classifies its
// failures. Anything unrecognised counts as Unexpected.
var (
	ErrRateLimited  = errors.New("rate limited by remote")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrTransient    = errors.New("transient failure")
)

// Classify maps a call error to its kind.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, ErrRateLimited):
		return RateLimited
	case errors.Is(err, ErrUnauthorized):
		return Unauthorized
	case errors.Is(err, ErrNotFound):
		return NotFound
	case errors.Is(err, ErrTransient):
		return Transient
	default:
		return Unexpected
	}
}

// Error is the terminal outcome of a failed call after the invoker has
// applied its whole retry budget.
type Error struct {
	Kind     Kind
	Resource string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s after %d attempt(s): %v", e.Resource, e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
