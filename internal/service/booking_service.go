// Package service implements the booking state machine on top of the
// seat inventory ledger.  A booking is created pending with its seats
// reserved, then moves to exactly one of confirmed or cancelled.
// Reservation across multiple seat types has no single transaction, so
// creation is a saga: an ordered list of per-line reservations with an
// explicit compensating release when any later step fails.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventhive/event-seat-booking/internal/model"
	"github.com/eventhive/event-seat-booking/internal/queue"
	"github.com/eventhive/event-seat-booking/internal/repository"
)

// SeatSelection is one requested (seat type, quantity) pair of a
// booking or quote request.
type SeatSelection struct {
	SeatTypeID uint64 `json:"seat_type_id"`
	Quantity   uint32 `json:"quantity"`
}

// QuoteLine is one priced line of a seat quote.
type QuoteLine struct {
	SeatTypeID    uint64 `json:"seat_type_id"`
	SeatTypeName  string `json:"seat_type_name"`
	Quantity      uint32 `json:"quantity"`
	PriceCents    uint32 `json:"price_cents"`
	SubtotalCents uint32 `json:"subtotal_cents"`
}

// Quote is the priced result of SelectSeats.  It is advisory: prices
// are re-snapshotted and availability re-checked atomically when the
// booking is actually created.
type Quote struct {
	EventID          uint64      `json:"event_id"`
	Lines            []QuoteLine `json:"lines"`
	TotalAmountCents uint32      `json:"total_amount_cents"`
}

// ValidationError reports malformed or missing input.  It is rejected
// before any ledger call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InventoryLedger is the seat inventory ledger consumed by the state
// machine.  Reserve and Release must be atomic conditional updates;
// CheckAvailability is advisory only.
type InventoryLedger interface {
	CheckAvailability(ctx context.Context, seatTypeID uint64, quantity uint32) (bool, error)
	Reserve(ctx context.Context, seatTypeID uint64, quantity uint32, actor string) error
	Release(ctx context.Context, seatTypeID uint64, quantity uint32, actor string) error
	ListAvailableByEvent(ctx context.Context, eventID uint64) ([]model.SeatType, error)
	GetForEvent(ctx context.Context, eventID uint64, ids []uint64) (map[uint64]model.SeatType, error)
}

// BookingStore persists bookings and runs the guarded, transactional
// state transitions together with their inventory effect.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking, lines []model.BookingSeat) error
	ConfirmPending(ctx context.Context, bookingID uint64, actor string) (*model.Booking, []model.BookingSeat, error)
	CancelPending(ctx context.Context, bookingID uint64, actor string) (*model.Booking, []model.BookingSeat, error)
	GetDetailByID(ctx context.Context, bookingID uint64) (*repository.BookingDetail, error)
	GetDetailByCode(ctx context.Context, code string) (*repository.BookingDetail, error)
	ListByUser(ctx context.Context, userID uint64) ([]repository.BookingDetail, error)
}

// EventCatalog supplies event existence and metadata; read-only to
// this core.
type EventCatalog interface {
	GetByID(ctx context.Context, eventID uint64) (*model.Event, error)
}

// EventPublisher emits booking lifecycle events to the message broker.
// Publishing is best-effort: a failure is logged, never propagated to
// the caller of a transition that already committed.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error
	PublishBookingCancelled(ctx context.Context, event queue.BookingCancelledEvent) error
}

// BookingService drives the booking lifecycle.  All methods are safe
// for concurrent use; coordination between concurrent bookings happens
// entirely in the ledger's conditional updates and the store's guarded
// transitions.
type BookingService struct {
	ledger    InventoryLedger
	store     BookingStore
	events    EventCatalog
	publisher EventPublisher
	log       zerolog.Logger
}

// NewBookingService constructs a BookingService.  All dependencies
// must be non-nil except publisher, which may be nil to disable event
// publication.
func NewBookingService(ledger InventoryLedger, store BookingStore, events EventCatalog, publisher EventPublisher, log zerolog.Logger) *BookingService {
	if ledger == nil || store == nil || events == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{ledger: ledger, store: store, events: events, publisher: publisher, log: log}
}

// GetAvailableSeats returns the active seat types of an event that
// still have seats on sale, priced high to low.
func (s *BookingService) GetAvailableSeats(ctx context.Context, eventID uint64) ([]model.SeatType, error) {
	if eventID == 0 {
		return nil, validationf("event id is required")
	}
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.ledger.ListAvailableByEvent(ctx, eventID)
}

// SelectSeats produces a price quote for a seat selection without
// mutating any state.  The availability checks are advisory; only
// CreateBooking actually holds seats.
func (s *BookingService) SelectSeats(ctx context.Context, eventID uint64, selection []SeatSelection) (*Quote, error) {
	lines, err := s.resolveSelection(ctx, eventID, selection)
	if err != nil {
		return nil, err
	}
	quote := &Quote{EventID: eventID, Lines: make([]QuoteLine, 0, len(lines))}
	for _, l := range lines {
		ok, err := s.ledger.CheckAvailability(ctx, l.seatType.ID, l.quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("seat type %d: %w", l.seatType.ID, repository.ErrInsufficientSeats)
		}
		sub := l.quantity * l.seatType.PriceCents
		quote.Lines = append(quote.Lines, QuoteLine{
			SeatTypeID:    l.seatType.ID,
			SeatTypeName:  l.seatType.Name,
			Quantity:      l.quantity,
			PriceCents:    l.seatType.PriceCents,
			SubtotalCents: sub,
		})
		quote.TotalAmountCents += sub
	}
	return quote, nil
}

// CreateBooking reserves seats for every requested line and persists a
// pending booking with price-snapshotted seat lines.  Reservations are
// acquired one line at a time; if any later line fails, or persisting
// the booking fails, every reservation already acquired in this call
// is released before the error is returned, so a failed creation never
// leaves seats held.  On success the booking is pending and its seats
// are held until it is confirmed or cancelled.
func (s *BookingService) CreateBooking(ctx context.Context, eventID uint64, selection []SeatSelection, userID uint64) (*model.Booking, []model.BookingSeat, error) {
	if userID == 0 {
		return nil, nil, validationf("user id is required")
	}
	actor := strconv.FormatUint(userID, 10)

	lines, err := s.resolveSelection(ctx, eventID, selection)
	if err != nil {
		return nil, nil, err
	}

	// Advisory pre-check for early feedback.  The real gate is the
	// conditional update inside Reserve.
	for _, l := range lines {
		ok, err := s.ledger.CheckAvailability(ctx, l.seatType.ID, l.quantity)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("seat type %d: %w", l.seatType.ID, repository.ErrInsufficientSeats)
		}
	}

	// Reserve line by line, compensating on any failure.
	reserved := make([]resolvedLine, 0, len(lines))
	for _, l := range lines {
		if err := s.ledger.Reserve(ctx, l.seatType.ID, l.quantity, actor); err != nil {
			s.releaseReserved(ctx, reserved, actor)
			if errors.Is(err, repository.ErrInsufficientSeats) {
				return nil, nil, fmt.Errorf("seat type %d: %w", l.seatType.ID, err)
			}
			return nil, nil, err
		}
		reserved = append(reserved, l)
	}

	booking := &model.Booking{
		UserID:    userID,
		EventID:   eventID,
		Status:    model.StatusPending,
		CreatedBy: actor,
		UpdatedBy: actor,
	}
	seatLines := make([]model.BookingSeat, 0, len(lines))
	for _, l := range lines {
		sub := l.quantity * l.seatType.PriceCents
		booking.TotalAmountCents += sub
		seatLines = append(seatLines, model.BookingSeat{
			SeatTypeID:    l.seatType.ID,
			Quantity:      l.quantity,
			PriceCents:    l.seatType.PriceCents,
			SubtotalCents: sub,
		})
	}

	// Duplicate codes are practically impossible but remain a
	// retryable error per the persistence contract.
	var createErr error
	for attempt := 0; attempt < 3; attempt++ {
		booking.Code = NewBookingCode()
		createErr = s.store.Create(ctx, booking, seatLines)
		if createErr == nil || !errors.Is(createErr, repository.ErrDuplicateCode) {
			break
		}
	}
	if createErr != nil {
		s.releaseReserved(ctx, reserved, actor)
		s.log.Error().Err(createErr).Uint64("event_id", eventID).Uint64("user_id", userID).
			Msg("booking creation failed, reservations released")
		return nil, nil, createErr
	}

	s.log.Info().Uint64("booking_id", booking.ID).Str("code", booking.Code).
		Uint64("event_id", eventID).Uint64("user_id", userID).
		Uint32("total_cents", booking.TotalAmountCents).Msg("booking created")
	return booking, seatLines, nil
}

// releaseReserved compensates the lines reserved so far.  Release
// failures are logged, not returned: the caller is already unwinding
// and a partial release is an operational problem, not a caller error.
func (s *BookingService) releaseReserved(ctx context.Context, reserved []resolvedLine, actor string) {
	for _, l := range reserved {
		if err := s.ledger.Release(ctx, l.seatType.ID, l.quantity, actor); err != nil {
			s.log.Error().Err(err).Uint64("seat_type_id", l.seatType.ID).
				Uint32("quantity", l.quantity).Msg("compensating release failed")
		}
	}
}

// ConfirmBooking finalizes a pending booking.  The status change and
// the confirmation-time inventory decrement commit in one transaction;
// racing transitions lose with ErrStateConflict.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	if bookingID == 0 {
		return nil, validationf("booking id is required")
	}
	actor := strconv.FormatUint(userID, 10)
	booking, lines, err := s.store.ConfirmPending(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint64("booking_id", booking.ID).Str("code", booking.Code).Msg("booking confirmed")
	if s.publisher != nil {
		ev := queue.BookingConfirmedEvent{
			BookingID:        booking.ID,
			Code:             booking.Code,
			UserID:           booking.UserID,
			EventID:          booking.EventID,
			TotalAmountCents: booking.TotalAmountCents,
			Seats:            seatQtys(lines),
			ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
			s.log.Warn().Err(err).Uint64("booking_id", booking.ID).Msg("publish booking.confirmed failed")
		}
	}
	return booking, nil
}

// CancelBooking cancels a pending booking and returns its seats to
// inventory in the same transaction.  Cancelling a booking that is not
// pending reports ErrStateConflict and releases nothing, which keeps
// the transition idempotence-safe under races.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	if bookingID == 0 {
		return nil, validationf("booking id is required")
	}
	actor := strconv.FormatUint(userID, 10)
	booking, lines, err := s.store.CancelPending(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint64("booking_id", booking.ID).Str("code", booking.Code).Msg("booking cancelled")
	if s.publisher != nil {
		ev := queue.BookingCancelledEvent{
			BookingID:        booking.ID,
			Code:             booking.Code,
			UserID:           booking.UserID,
			EventID:          booking.EventID,
			TotalAmountCents: booking.TotalAmountCents,
			Seats:            seatQtys(lines),
			CancelledAt:      time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.publisher.PublishBookingCancelled(ctx, ev); err != nil {
			s.log.Warn().Err(err).Uint64("booking_id", booking.ID).Msg("publish booking.cancelled failed")
		}
	}
	return booking, nil
}

// GetBookingDetails returns the assembled view of one booking by ID.
func (s *BookingService) GetBookingDetails(ctx context.Context, bookingID uint64) (*repository.BookingDetail, error) {
	if bookingID == 0 {
		return nil, validationf("booking id is required")
	}
	return s.store.GetDetailByID(ctx, bookingID)
}

// GetBookingDetailsByCode returns the assembled view of one booking by
// its shareable code.
func (s *BookingService) GetBookingDetailsByCode(ctx context.Context, code string) (*repository.BookingDetail, error) {
	if code == "" {
		return nil, validationf("booking code is required")
	}
	return s.store.GetDetailByCode(ctx, code)
}

// GetUserBookings returns all booking views owned by the given user.
func (s *BookingService) GetUserBookings(ctx context.Context, userID uint64) ([]repository.BookingDetail, error) {
	if userID == 0 {
		return nil, validationf("user id is required")
	}
	return s.store.ListByUser(ctx, userID)
}

// resolvedLine pairs a requested quantity with the seat type row it
// was validated against; the row carries the price snapshot.
type resolvedLine struct {
	seatType model.SeatType
	quantity uint32
}

// resolveSelection validates a selection and resolves every line
// against the event's active seat types.  It rejects empty selections,
// zero IDs and quantities, and duplicate seat types before any ledger
// state is touched.
func (s *BookingService) resolveSelection(ctx context.Context, eventID uint64, selection []SeatSelection) ([]resolvedLine, error) {
	if eventID == 0 {
		return nil, validationf("event id is required")
	}
	if len(selection) == 0 {
		return nil, validationf("seat selection is required")
	}
	seen := make(map[uint64]struct{}, len(selection))
	ids := make([]uint64, 0, len(selection))
	for _, sel := range selection {
		if sel.SeatTypeID == 0 {
			return nil, validationf("seat type id is required")
		}
		if sel.Quantity == 0 {
			return nil, validationf("quantity must be positive for seat type %d", sel.SeatTypeID)
		}
		if _, dup := seen[sel.SeatTypeID]; dup {
			return nil, validationf("duplicate seat type %d in selection", sel.SeatTypeID)
		}
		seen[sel.SeatTypeID] = struct{}{}
		ids = append(ids, sel.SeatTypeID)
	}

	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	types, err := s.ledger.GetForEvent(ctx, eventID, ids)
	if err != nil {
		return nil, err
	}
	lines := make([]resolvedLine, 0, len(selection))
	for _, sel := range selection {
		st, ok := types[sel.SeatTypeID]
		if !ok {
			return nil, fmt.Errorf("seat type %d: %w", sel.SeatTypeID, repository.ErrSeatTypeNotFound)
		}
		lines = append(lines, resolvedLine{seatType: st, quantity: sel.Quantity})
	}
	return lines, nil
}

func seatQtys(lines []model.BookingSeat) []queue.SeatLineQty {
	out := make([]queue.SeatLineQty, 0, len(lines))
	for _, l := range lines {
		out = append(out, queue.SeatLineQty{SeatTypeID: l.SeatTypeID, Quantity: l.Quantity})
	}
	return out
}
