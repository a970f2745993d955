package thread

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned for operations on a closed thread.
	ErrClosed = errors.New("thread closed")
	// ErrUnknownList is returned when a ListID names no live list.
	ErrUnknownList = errors.New("unknown list")
	// ErrUnknownComment is returned when an identity is not materialized.
	ErrUnknownComment = errors.New("unknown comment")
	// ErrTransient marks a fetch failure worth retrying.
	ErrTransient = errors.New("transient fetch failure")
	// ErrExhausted marks a page that ran out of retry attempts.
	ErrExhausted = errors.New("retry attempts exhausted")
	// ErrNoMutator is returned when mutations are requested without a Mutator.
	ErrNoMutator = errors.New("mutations not available")
)

// IsRetryable reports whether a fetch error should be retried with backoff.
// Cancellation is the only non-retryable fetch failure; everything else is
// absorbed by the orchestrator.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrClosed)
}
