package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/eventhive/event-seat-booking/internal/model"
)

// EventRepo is the read-only event catalog consumed by the booking
// core.  Event creation and maintenance happen elsewhere; booking only
// needs existence, name and date for validation and enrichment.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// GetByID fetches an active event by ID.  Missing or soft-deleted
// events are reported as ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, eventID uint64) (*model.Event, error) {
	const q = `SELECT id, name, venue, event_date, is_active, created_at, updated_at
	           FROM events WHERE id = ? AND is_active = 1`
	var e model.Event
	err := r.db.QueryRowContext(ctx, q, eventID).Scan(&e.ID, &e.Name, &e.Venue, &e.EventDate,
		&e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}
