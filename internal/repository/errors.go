// Package repository defines error types that are reused across multiple
// repositories and by the reservation engine. These sentinel values allow
// higher layers such as handlers to distinguish between failure scenarios
// with errors.Is. Driver-level failures (connection loss, timeouts) are
// never wrapped into these sentinels; they propagate unchanged so callers
// can decide whether to retry.
package repository

import "errors"

// ErrNotFound is returned when a lookup by id yields no row. Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrSlotConflict is returned when a conditional slot update matches no
// row, meaning another request changed the slot's status first. The
// caller lost an optimistic-concurrency race and should retry against
// fresh availability. Handlers map this to HTTP 409.
var ErrSlotConflict = errors.New("slot conflict")

// ErrInvalidTransition is returned when a booking state change is
// requested from a state that does not permit it. This is a caller
// logic error and is never retryable.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrTerminalState is returned when a mutation is attempted on a
// booking that already reached COMPLETED or CANCELLED.
var ErrTerminalState = errors.New("terminal state")

// ErrInvalidAmount is returned when booking details fail the
// grand-total arithmetic check at confirmation time.
var ErrInvalidAmount = errors.New("invalid amount")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")
