package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrConfigLoad        = errors.New("config load")
	ErrMarkupConversion  = errors.New("markup conversion")
	ErrMediaRetrieval    = errors.New("media retrieval")
	ErrDispatch          = errors.New("dispatch")
	ErrUnhandledPipeline = errors.New("unhandled pipeline error")
)

// RateLimitedError is the source platform asking the relay to pause for RetryAfter.
type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited for %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited for %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// AsRateLimited extracts a RateLimitedError from err's chain.
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// DispatchError records a failed delivery to one destination.
type DispatchError struct {
	Destination string
	StatusCode  int // 0 for transport failures
	Body        string
	Err         error
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dispatch to %s: HTTP %d: %s", e.Destination, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("dispatch to %s: %v", e.Destination, e.Err)
}

func (e *DispatchError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDispatch, e.Err}
	}
	return []error{ErrDispatch}
}
