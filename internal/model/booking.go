package model

import "time"

// Booking lifecycle states.  A booking is created pending and moves to
// exactly one terminal state.  StatusFailed is reachable only when
// creation itself fails after seats were reserved; such bookings are
// never persisted (the reservation is compensated instead), the
// constant exists so the state machine can report the outcome.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Booking records a user's purchase of seats for an event.  It
// aggregates one or more seat lines booked in a single operation and
// tracks the overall status and total amount.  TotalAmountCents is
// fixed at creation time as the sum of the line subtotals and is
// never recomputed.
//
// Fields:
//  ID               – primary key identifier.
//  Code             – externally shareable unique booking code.
//  UserID           – user who owns the booking.
//  EventID          – event being booked.
//  TotalAmountCents – total price in cents across all lines.
//  Status           – pending, confirmed or cancelled.
//  IsActive         – soft-delete flag.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
//  CreatedBy        – resolved caller identity at creation.
//  UpdatedBy        – resolved caller identity of the last transition.
type Booking struct {
	ID               uint64    // bookings.id
	Code             string    // bookings.code
	UserID           uint64    // bookings.user_id
	EventID          uint64    // bookings.event_id
	TotalAmountCents uint32    // bookings.total_amount_cents
	Status           string    // bookings.status
	IsActive         bool      // bookings.is_active
	CreatedAt        time.Time // bookings.created_at
	UpdatedAt        time.Time // bookings.updated_at
	CreatedBy        string    // bookings.created_by
	UpdatedBy        string    // bookings.updated_by
}

// BookingSeat is one line of a booking: a quantity of a single seat
// type at the price snapshotted when the booking was created.  Lines
// are write-once; they are created atomically with their booking and
// never modified afterwards.
//
// Fields:
//  ID            – primary key identifier.
//  BookingID     – owning booking.
//  SeatTypeID    – seat type reserved by this line.
//  Quantity      – number of seats.
//  PriceCents    – per-seat price at booking time.
//  SubtotalCents – Quantity × PriceCents.
//  CreatedAt     – creation timestamp.
type BookingSeat struct {
	ID            uint64    // booking_seats.id
	BookingID     uint64    // booking_seats.booking_id
	SeatTypeID    uint64    // booking_seats.seat_type_id
	Quantity      uint32    // booking_seats.quantity
	PriceCents    uint32    // booking_seats.price_cents
	SubtotalCents uint32    // booking_seats.subtotal_cents
	CreatedAt     time.Time // booking_seats.created_at
}
