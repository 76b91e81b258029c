package model

import "time"

// Event is a scheduled event for which seats are sold.  The booking
// core reads events but never writes them; event management lives in
// a separate administrative surface.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the event.
//  Venue     – where the event takes place.
//  EventDate – scheduled date and time (UTC).
//  IsActive  – soft-delete flag; inactive events are invisible to booking.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Event struct {
	ID        uint64    // events.id
	Name      string    // events.name
	Venue     string    // events.venue
	EventDate time.Time // events.event_date
	IsActive  bool      // events.is_active
	CreatedAt time.Time // events.created_at
	UpdatedAt time.Time // events.updated_at
}
