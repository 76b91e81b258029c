package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/eventhive/event-seat-booking/internal/model"
)

// BookingRepo provides persistence for bookings and their seat lines
// and owns every mutation of bookings.status.  Transitions run as
// guarded conditional updates (WHERE status = 'pending') inside a
// single transaction together with their inventory effect, so a lost
// race surfaces as ErrStateConflict instead of double-processing.
// The confirmation-time and cancellation-time counter changes are
// delegated to the seat type ledger; this repository never touches
// available_seats directly.
type BookingRepo struct {
	db        *sql.DB
	seatTypes *SeatTypeRepo
}

// NewBookingRepo returns a new BookingRepo bound to the given database
// and ledger.  The ledger must share the same database handle.
func NewBookingRepo(db *sql.DB, seatTypes *SeatTypeRepo) *BookingRepo {
	return &BookingRepo{db: db, seatTypes: seatTypes}
}

// Create persists a booking and its seat lines together in one
// transaction.  The booking must already carry its code, owner, event,
// total and status; generated IDs and timestamps are populated on the
// passed structs.  A collision on the unique booking code is reported
// as ErrDuplicateCode so the caller can regenerate and retry.  Seat
// reservation happens outside this transaction: when Create fails the
// caller must compensate by releasing the reserved seats.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking, lines []model.BookingSeat) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO bookings (code, user_id, event_id, total_amount_cents, status, created_by, updated_by)
	             VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins, b.Code, b.UserID, b.EventID, b.TotalAmountCents, b.Status, b.CreatedBy, b.UpdatedBy)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrDuplicateCode
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	if len(lines) > 0 {
		query := `INSERT INTO booking_seats (booking_id, seat_type_id, quantity, price_cents, subtotal_cents) VALUES `
		args := make([]interface{}, 0, len(lines)*5)
		for i := range lines {
			lines[i].BookingID = b.ID
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			args = append(args, lines[i].BookingID, lines[i].SeatTypeID, lines[i].Quantity, lines[i].PriceCents, lines[i].SubtotalCents)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	// Query back timestamps and defaults set by the database.
	const sel = `SELECT is_active, created_at, updated_at FROM bookings WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ConfirmPending transitions a booking from pending to confirmed and
// applies the confirmation-time inventory decrement for every seat
// line, all in one transaction.  Any failure, including insufficient
// inventory on the second decrement, rolls the whole transaction back
// leaving the booking pending and the counters unchanged.  It returns
// ErrBookingNotFound when the booking is missing or inactive and
// ErrStateConflict when it exists but is no longer pending.
func (r *BookingRepo) ConfirmPending(ctx context.Context, bookingID uint64, actor string) (*model.Booking, []model.BookingSeat, error) {
	return r.transition(ctx, bookingID, actor, model.StatusConfirmed, r.seatTypes.ConfirmConsumptionTx)
}

// CancelPending transitions a booking from pending to cancelled and
// releases every seat line back to inventory in the same transaction,
// so the status flip and the seat return are atomic.  Error semantics
// match ConfirmPending; cancelling an already-cancelled or confirmed
// booking reports ErrStateConflict and releases nothing.
func (r *BookingRepo) CancelPending(ctx context.Context, bookingID uint64, actor string) (*model.Booking, []model.BookingSeat, error) {
	return r.transition(ctx, bookingID, actor, model.StatusCancelled, r.seatTypes.ReleaseTx)
}

// seatEffect applies a transition's per-line inventory change inside
// the transition transaction.
type seatEffect func(ctx context.Context, tx *sql.Tx, seatTypeID uint64, quantity uint32, actor string) error

func (r *BookingRepo) transition(ctx context.Context, bookingID uint64, actor, toStatus string, effect seatEffect) (*model.Booking, []model.BookingSeat, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const upd = `UPDATE bookings
	             SET status = ?, updated_at = UTC_TIMESTAMP(), updated_by = ?
	             WHERE id = ? AND status = 'pending' AND is_active = 1`
	res, err := tx.ExecContext(ctx, upd, toStatus, actor, bookingID)
	if err != nil {
		return nil, nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, nil, err
	}
	if n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ? AND is_active = 1`, bookingID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrBookingNotFound
		}
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrStateConflict
	}

	lines, err := r.linesTx(ctx, tx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	for _, line := range lines {
		if err := effect(ctx, tx, line.SeatTypeID, line.Quantity, actor); err != nil {
			return nil, nil, err
		}
	}

	booking, err := r.getTx(ctx, tx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	committed = true
	return booking, lines, nil
}

func (r *BookingRepo) linesTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.BookingSeat, error) {
	const q = `SELECT id, booking_id, seat_type_id, quantity, price_cents, subtotal_cents, created_at
	           FROM booking_seats WHERE booking_id = ? ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []model.BookingSeat
	for rows.Next() {
		var l model.BookingSeat
		if err := rows.Scan(&l.ID, &l.BookingID, &l.SeatTypeID, &l.Quantity, &l.PriceCents, &l.SubtotalCents, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *BookingRepo) getTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Booking, error) {
	const q = `SELECT id, code, user_id, event_id, total_amount_cents, status, is_active, created_at, updated_at, created_by, updated_by
	           FROM bookings WHERE id = ?`
	var b model.Booking
	err := tx.QueryRowContext(ctx, q, bookingID).Scan(&b.ID, &b.Code, &b.UserID, &b.EventID, &b.TotalAmountCents,
		&b.Status, &b.IsActive, &b.CreatedAt, &b.UpdatedAt, &b.CreatedBy, &b.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// BookingDetail assembles a booking together with its event summary,
// owning user summary and seat lines for read endpoints.
type BookingDetail struct {
	ID               uint64            `json:"id"`
	Code             string            `json:"code"`
	Status           string            `json:"status"`
	TotalAmountCents uint32            `json:"total_amount_cents"`
	EventID          uint64            `json:"event_id"`
	EventName        string            `json:"event_name"`
	EventVenue       string            `json:"event_venue"`
	EventDate        *string           `json:"event_date,omitempty"`
	UserID           uint64            `json:"user_id"`
	UserName         string            `json:"user_name"`
	UserEmail        string            `json:"user_email"`
	CreatedAt        string            `json:"created_at"`
	Seats            []BookingSeatView `json:"seats"`
}

// BookingSeatView is one seat line of a BookingDetail.
type BookingSeatView struct {
	SeatTypeID    uint64 `json:"seat_type_id"`
	SeatTypeName  string `json:"seat_type_name"`
	Quantity      uint32 `json:"quantity"`
	PriceCents    uint32 `json:"price_cents"`
	SubtotalCents uint32 `json:"subtotal_cents"`
}

const detailSelect = `SELECT b.id, b.code, b.status, b.total_amount_cents, b.created_at,
                             e.id, e.name, e.venue, e.event_date,
                             u.id, u.full_name, u.email
                      FROM bookings b
                      JOIN events e ON e.id = b.event_id AND e.is_active = 1
                      JOIN users u ON u.id = b.user_id AND u.is_active = 1
                      WHERE b.is_active = 1 AND `

// GetDetailByID returns a single booking view by its numeric ID.  A
// booking whose event or user has been soft-deleted is excluded, which
// matches the write-path filters; ErrBookingNotFound is returned in
// every miss case.
func (r *BookingRepo) GetDetailByID(ctx context.Context, bookingID uint64) (*BookingDetail, error) {
	return r.detail(ctx, detailSelect+`b.id = ?`, bookingID)
}

// GetDetailByCode returns a single booking view by its shareable code.
func (r *BookingRepo) GetDetailByCode(ctx context.Context, code string) (*BookingDetail, error) {
	return r.detail(ctx, detailSelect+`b.code = ?`, code)
}

func (r *BookingRepo) detail(ctx context.Context, query string, arg interface{}) (*BookingDetail, error) {
	var det BookingDetail
	var createdAt, eventDate time.Time
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&det.ID, &det.Code, &det.Status, &det.TotalAmountCents, &createdAt,
		&det.EventID, &det.EventName, &det.EventVenue, &eventDate,
		&det.UserID, &det.UserName, &det.UserEmail,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	det.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	if !eventDate.IsZero() {
		iso := eventDate.UTC().Format(time.RFC3339)
		det.EventDate = &iso
	}
	det.Seats = []BookingSeatView{}

	const seatQ = `SELECT bs.seat_type_id, st.name, bs.quantity, bs.price_cents, bs.subtotal_cents
	               FROM booking_seats bs
	               JOIN seat_types st ON st.id = bs.seat_type_id
	               WHERE bs.booking_id = ?
	               ORDER BY st.price_cents DESC, bs.id`
	rows, err := r.db.QueryContext(ctx, seatQ, det.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var v BookingSeatView
		if err := rows.Scan(&v.SeatTypeID, &v.SeatTypeName, &v.Quantity, &v.PriceCents, &v.SubtotalCents); err != nil {
			return nil, err
		}
		det.Seats = append(det.Seats, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &det, nil
}

// ListByUser returns all booking views for the given user ordered by
// creation time descending (newest first).  Seat lines for the whole
// page are populated with a single IN query.  When no bookings exist,
// an empty slice is returned.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingDetail, error) {
	const q = `SELECT b.id, b.code, b.status, b.total_amount_cents, b.created_at,
	                  e.id, e.name, e.venue, e.event_date,
	                  u.id, u.full_name, u.email
	           FROM bookings b
	           JOIN events e ON e.id = b.event_id AND e.is_active = 1
	           JOIN users u ON u.id = b.user_id AND u.is_active = 1
	           WHERE b.user_id = ? AND b.is_active = 1
	           ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var d BookingDetail
		var createdAt, eventDate time.Time
		if err := rows.Scan(
			&d.ID, &d.Code, &d.Status, &d.TotalAmountCents, &createdAt,
			&d.EventID, &d.EventName, &d.EventVenue, &eventDate,
			&d.UserID, &d.UserName, &d.UserEmail,
		); err != nil {
			return nil, err
		}
		d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		if !eventDate.IsZero() {
			iso := eventDate.UTC().Format(time.RFC3339)
			d.EventDate = &iso
		}
		d.Seats = []BookingSeatView{}
		index[d.ID] = len(details)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}

	ids := make([]interface{}, 0, len(details))
	placeholders := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
		placeholders = append(placeholders, "?")
	}
	seatQuery := `SELECT bs.booking_id, bs.seat_type_id, st.name, bs.quantity, bs.price_cents, bs.subtotal_cents
	              FROM booking_seats bs
	              JOIN seat_types st ON st.id = bs.seat_type_id
	              WHERE bs.booking_id IN (` + strings.Join(placeholders, ",") + `)
	              ORDER BY bs.booking_id, st.price_cents DESC, bs.id`
	srows, err := r.db.QueryContext(ctx, seatQuery, ids...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var bid uint64
		var v BookingSeatView
		if err := srows.Scan(&bid, &v.SeatTypeID, &v.SeatTypeName, &v.Quantity, &v.PriceCents, &v.SubtotalCents); err != nil {
			return nil, err
		}
		idx, ok := index[bid]
		if !ok {
			continue
		}
		details[idx].Seats = append(details[idx].Seats, v)
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}
