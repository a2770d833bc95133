// Package errors defines the error taxonomy of spec.md §7. Each category is
// a sentinel wrapped with context via fmt.Errorf("...: %w", err) at the call
// site, and unwrapped with errors.Is/errors.As by callers that need to branch
// on category (notably the HTTP layer). The worker pool does not use these
// sentinels; it records delivery outcomes in the StatusRecord directly.
package errors

import "errors"

var (
	// ErrValidation marks a malformed transaction, surfaced as 422. Never
	// retried.
	ErrValidation = errors.New("validation error")

	// ErrStoreUnavailable marks an unreachable Store, surfaced as 503.
	// Intake stops at the failing Store call; writes that already
	// succeeded in the same submission (the dedup marker, and in the
	// stranded-push case the StatusRecord) are not rolled back.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrDownstreamTransient marks a PostingClient failure where RECHECK
	// found no record. Retried with backoff.
	ErrDownstreamTransient = errors.New("downstream transient error")

	// ErrDownstreamPermanent marks exhaustion of max_retries. The
	// transaction is terminal FAILED.
	ErrDownstreamPermanent = errors.New("downstream permanent error")

	// ErrWorkerInternal marks an unexpected exception in worker body.
	ErrWorkerInternal = errors.New("worker internal error")

	// ErrNotFound marks a missing StatusRecord, surfaced as 404.
	ErrNotFound = errors.New("transaction not found")

	// ErrQueueFull marks queue depth at or above queue_max_size, surfaced
	// as a transient rejection (503) per spec.md §6.
	ErrQueueFull = errors.New("queue is full")
)

// Is reports whether err wraps target anywhere in its chain. Thin wrapper
// kept so callers only need to import this package, matching the style of
// the teacher's internal/errors helpers referenced (but not retrieved) from
// services_layer's middleware.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
