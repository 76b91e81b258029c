package model

import "time"

// SeatType is a priced category of seats for an event with a finite
// pool (e.g. "VIP", "General").  The system tracks counts per type,
// not individual numbered seats.  AvailableSeats is mutated only by
// the seat inventory ledger's conditional updates; application code
// must never read-modify-write this counter.
//
// Fields:
//  ID             – primary key identifier.
//  EventID        – event to which this seat type belongs.
//  Name           – tier name shown to buyers.
//  PriceCents     – price per seat in cents.
//  TotalSeats     – capacity of the pool.
//  AvailableSeats – seats currently open for sale.
//  IsActive       – soft-delete flag.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type SeatType struct {
	ID             uint64    // seat_types.id
	EventID        uint64    // seat_types.event_id
	Name           string    // seat_types.name
	PriceCents     uint32    // seat_types.price_cents
	TotalSeats     uint32    // seat_types.total_seats
	AvailableSeats uint32    // seat_types.available_seats
	IsActive       bool      // seat_types.is_active
	CreatedAt      time.Time // seat_types.created_at
	UpdatedAt      time.Time // seat_types.updated_at
}
