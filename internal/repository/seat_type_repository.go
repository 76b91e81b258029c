package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/eventhive/event-seat-booking/internal/model"
)

// SeatTypeRepo is the seat inventory ledger.  It owns every mutation of
// seat_types.available_seats.  Each mutation is a single conditional
// UPDATE scoped to one seat type row ("decrement only if enough
// remain"), so no in-process locking is needed: the database serializes
// concurrent callers on the row and at most one of two racing
// reservations can consume the last seats.  Application code must never
// read the counter and write it back.
type SeatTypeRepo struct {
	db *sql.DB
}

// NewSeatTypeRepo returns a new SeatTypeRepo bound to the given database.
func NewSeatTypeRepo(db *sql.DB) *SeatTypeRepo { return &SeatTypeRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// that span the ledger and the booking tables.
func (r *SeatTypeRepo) DB() *sql.DB { return r.db }

// execer abstracts *sql.DB and *sql.Tx so the conditional updates can
// run standalone or inside a caller-owned transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// CheckAvailability reports whether an active seat type currently has
// at least quantity seats open.  This is advisory only: the check and
// any subsequent reservation are not atomic with respect to other
// callers, so it must never be the sole gate before mutating state.
// Reserve re-checks the precondition atomically.
func (r *SeatTypeRepo) CheckAvailability(ctx context.Context, seatTypeID uint64, quantity uint32) (bool, error) {
	const q = `SELECT available_seats FROM seat_types WHERE id = ? AND is_active = 1`
	var available uint32
	if err := r.db.QueryRowContext(ctx, q, seatTypeID).Scan(&available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrSeatTypeNotFound
		}
		return false, err
	}
	return available >= quantity, nil
}

// Reserve atomically decrements available_seats by quantity, but only
// if the seat type is active and at least quantity seats remain at the
// moment of the update.  On success the seats are held for a pending
// booking.  It returns ErrInsufficientSeats when the precondition
// fails and ErrSeatTypeNotFound when the row is missing or inactive;
// in both cases the counter is untouched.
func (r *SeatTypeRepo) Reserve(ctx context.Context, seatTypeID uint64, quantity uint32, actor string) error {
	return r.decrement(ctx, r.db, seatTypeID, quantity, actor)
}

// ConfirmConsumptionTx performs the confirmation-time decrement of
// available_seats inside the caller's transaction.  Seats are
// decremented once at reservation and again at confirmation, so a
// confirm can itself fail with ErrInsufficientSeats.
func (r *SeatTypeRepo) ConfirmConsumptionTx(ctx context.Context, tx *sql.Tx, seatTypeID uint64, quantity uint32, actor string) error {
	return r.decrement(ctx, tx, seatTypeID, quantity, actor)
}

func (r *SeatTypeRepo) decrement(ctx context.Context, ex execer, seatTypeID uint64, quantity uint32, actor string) error {
	const q = `UPDATE seat_types
	           SET available_seats = available_seats - ?, updated_at = UTC_TIMESTAMP(), updated_by = ?
	           WHERE id = ? AND is_active = 1 AND available_seats >= ?`
	res, err := ex.ExecContext(ctx, q, quantity, actor, seatTypeID, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// The guard failed: either the row is gone/inactive or there
		// were fewer seats than requested.  Probe to tell the two apart.
		var id uint64
		err := ex.QueryRowContext(ctx, `SELECT id FROM seat_types WHERE id = ? AND is_active = 1`, seatTypeID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSeatTypeNotFound
		}
		if err != nil {
			return err
		}
		return ErrInsufficientSeats
	}
	return nil
}

// Release atomically increments available_seats by quantity for an
// active seat type.  It is the compensating action when a booking
// fails after seats were reserved, and the seat-return path when a
// booking is cancelled.  The increment is not clamped to total_seats;
// the guarded cancel transition keeps repeated releases unreachable
// through the public API.
func (r *SeatTypeRepo) Release(ctx context.Context, seatTypeID uint64, quantity uint32, actor string) error {
	return r.increment(ctx, r.db, seatTypeID, quantity, actor)
}

// ReleaseTx is Release running inside the caller's transaction.  Used
// by the cancel path so the status flip and the seat return commit or
// roll back together.
func (r *SeatTypeRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, seatTypeID uint64, quantity uint32, actor string) error {
	return r.increment(ctx, tx, seatTypeID, quantity, actor)
}

func (r *SeatTypeRepo) increment(ctx context.Context, ex execer, seatTypeID uint64, quantity uint32, actor string) error {
	const q = `UPDATE seat_types
	           SET available_seats = available_seats + ?, updated_at = UTC_TIMESTAMP(), updated_by = ?
	           WHERE id = ? AND is_active = 1`
	res, err := ex.ExecContext(ctx, q, quantity, actor, seatTypeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSeatTypeNotFound
	}
	return nil
}

// ListAvailableByEvent returns the active seat types of an event that
// still have seats open for sale, ordered by price descending for
// display purposes.
func (r *SeatTypeRepo) ListAvailableByEvent(ctx context.Context, eventID uint64) ([]model.SeatType, error) {
	const q = `SELECT id, event_id, name, price_cents, total_seats, available_seats, is_active, created_at, updated_at
	           FROM seat_types
	           WHERE event_id = ? AND is_active = 1 AND available_seats > 0
	           ORDER BY price_cents DESC`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.SeatType, 0)
	for rows.Next() {
		var st model.SeatType
		if err := rows.Scan(&st.ID, &st.EventID, &st.Name, &st.PriceCents, &st.TotalSeats,
			&st.AvailableSeats, &st.IsActive, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetForEvent loads the requested active seat types of an event keyed
// by ID.  Callers use it to validate that every requested seat type
// belongs to the event and to snapshot names and prices for quotes and
// booking lines.  Seat types that are missing, inactive or belong to a
// different event are simply absent from the result map.
func (r *SeatTypeRepo) GetForEvent(ctx context.Context, eventID uint64, ids []uint64) (map[uint64]model.SeatType, error) {
	if len(ids) == 0 {
		return map[uint64]model.SeatType{}, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, eventID)
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT id, event_id, name, price_cents, total_seats, available_seats, is_active, created_at, updated_at
	          FROM seat_types
	          WHERE event_id = ? AND is_active = 1 AND id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]model.SeatType, len(ids))
	for rows.Next() {
		var st model.SeatType
		if err := rows.Scan(&st.ID, &st.EventID, &st.Name, &st.PriceCents, &st.TotalSeats,
			&st.AvailableSeats, &st.IsActive, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out[st.ID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
