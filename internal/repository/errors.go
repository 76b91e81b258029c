// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking service and handlers to distinguish between different failure
// scenarios without inspecting database errors. For example,
// ErrInsufficientSeats reports a failed inventory precondition (a
// business outcome, not a fault), while ErrStateConflict signals that
// a booking transition lost a race and the row was no longer in the
// expected state.
package repository

import "errors"

// ErrEventNotFound is returned when an event does not exist or has been
// soft-deleted. Handlers should translate this into an HTTP 404 response.
var ErrEventNotFound = errors.New("event not found")

// ErrSeatTypeNotFound is returned when a seat type does not exist, is
// inactive, or does not belong to the requested event.
var ErrSeatTypeNotFound = errors.New("seat type not found")

// ErrBookingNotFound is returned when a booking does not exist or has
// been soft-deleted, including lookups by booking code.
var ErrBookingNotFound = errors.New("booking not found")

// ErrInsufficientSeats is returned when a conditional inventory update
// affects no rows because fewer seats remain than were requested. The
// counter is never decremented in this case.
var ErrInsufficientSeats = errors.New("insufficient seats available")

// ErrStateConflict is returned when a guarded status update affects no
// rows because the booking was not in the expected state, e.g. two
// callers racing to confirm and cancel the same pending booking.
// Handlers should translate this into an HTTP 409 response.
var ErrStateConflict = errors.New("booking is not in the expected state")

// ErrDuplicateCode is returned when inserting a booking collides on the
// unique booking code. Callers should regenerate the code and retry.
var ErrDuplicateCode = errors.New("booking code already exists")
