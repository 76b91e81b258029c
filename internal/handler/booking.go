package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventhive/event-seat-booking/internal/model"
	"github.com/eventhive/event-seat-booking/internal/repository"
	"github.com/eventhive/event-seat-booking/internal/service"
)

// BookingAPI is the slice of the booking service the HTTP layer needs.
type BookingAPI interface {
	GetAvailableSeats(ctx context.Context, eventID uint64) ([]model.SeatType, error)
	SelectSeats(ctx context.Context, eventID uint64, selection []service.SeatSelection) (*service.Quote, error)
	CreateBooking(ctx context.Context, eventID uint64, selection []service.SeatSelection, userID uint64) (*model.Booking, []model.BookingSeat, error)
	ConfirmBooking(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)
	CancelBooking(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)
	GetBookingDetails(ctx context.Context, bookingID uint64) (*repository.BookingDetail, error)
	GetBookingDetailsByCode(ctx context.Context, code string) (*repository.BookingDetail, error)
	GetUserBookings(ctx context.Context, userID uint64) ([]repository.BookingDetail, error)
}

// BookingHandler exposes the booking lifecycle over HTTP.
type BookingHandler struct {
	Svc BookingAPI
}

func NewBookingHandler(svc BookingAPI) *BookingHandler {
	return &BookingHandler{Svc: svc}
}

// ----- DTOs -----

type seatTypeView struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	PriceCents     uint32 `json:"price_cents"`
	TotalSeats     uint32 `json:"total_seats"`
	AvailableSeats uint32 `json:"available_seats"`
}

type bookingLineView struct {
	SeatTypeID    uint64 `json:"seat_type_id"`
	Quantity      uint32 `json:"quantity"`
	PriceCents    uint32 `json:"price_cents"`
	SubtotalCents uint32 `json:"subtotal_cents"`
}

type bookingView struct {
	ID               uint64            `json:"id"`
	Code             string            `json:"code"`
	EventID          uint64            `json:"event_id"`
	UserID           uint64            `json:"user_id"`
	Status           string            `json:"status"`
	TotalAmountCents uint32            `json:"total_amount_cents"`
	Seats            []bookingLineView `json:"seats,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type createBookingReq struct {
	Seats []service.SeatSelection `json:"seats"`
}

type quoteReq struct {
	Seats []service.SeatSelection `json:"seats"`
}

func toBookingView(b *model.Booking, lines []model.BookingSeat) bookingView {
	v := bookingView{
		ID:               b.ID,
		Code:             b.Code,
		EventID:          b.EventID,
		UserID:           b.UserID,
		Status:           b.Status,
		TotalAmountCents: b.TotalAmountCents,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
	for _, l := range lines {
		v.Seats = append(v.Seats, bookingLineView{
			SeatTypeID:    l.SeatTypeID,
			Quantity:      l.Quantity,
			PriceCents:    l.PriceCents,
			SubtotalCents: l.SubtotalCents,
		})
	}
	return v
}

// writeError maps domain errors onto HTTP statuses with a stable
// machine-readable code plus a human message.
func writeError(c echo.Context, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": verr.Reason})
	case errors.Is(err, repository.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event_not_found", "message": "event not found"})
	case errors.Is(err, repository.ErrSeatTypeNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "seat_type_not_found", "message": err.Error()})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking_not_found", "message": "booking not found"})
	case errors.Is(err, repository.ErrInsufficientSeats):
		return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient_seats", "message": err.Error()})
	case errors.Is(err, repository.ErrStateConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "state_conflict", "message": "booking is not pending"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal error"})
	}
}

// GetAvailableSeats lists an event's seat types that still have seats
// on sale.  Public and cacheable.
func (h *BookingHandler) GetAvailableSeats(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": "invalid event id"})
	}
	types, err := h.Svc.GetAvailableSeats(c.Request().Context(), eventID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]seatTypeView, 0, len(types))
	for _, t := range types {
		out = append(out, seatTypeView{
			ID:             t.ID,
			Name:           t.Name,
			PriceCents:     t.PriceCents,
			TotalSeats:     t.TotalSeats,
			AvailableSeats: t.AvailableSeats,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": eventID, "seat_types": out})
}

// Quote prices a seat selection without holding any seats.
func (h *BookingHandler) Quote(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": "invalid event id"})
	}
	var req quoteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": "invalid body"})
	}
	quote, err := h.Svc.SelectSeats(c.Request().Context(), eventID, req.Seats)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}

// CreateBooking reserves the selected seats and creates a pending
// booking owned by the caller.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "authentication required"})
	}
	var req struct {
		EventID uint64                  `json:"event_id"`
		Seats   []service.SeatSelection `json:"seats"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": "invalid body"})
	}
	booking, lines, err := h.Svc.CreateBooking(c.Request().Context(), req.EventID, req.Seats, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingView(booking, lines))
}

// ConfirmBooking finalizes a pending booking owned by the caller.
func (h *BookingHandler) ConfirmBooking(c echo.Context) error {
	return h.transition(c, h.Svc.ConfirmBooking)
}

// CancelBooking cancels a pending booking and returns its seats.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	return h.transition(c, h.Svc.CancelBooking)
}

func (h *BookingHandler) transition(c echo.Context, op func(context.Context, uint64, uint64) (*model.Booking, error)) error {
	uid, err := callerID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "authentication required"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": "invalid booking id"})
	}
	booking, err := op(c.Request().Context(), bookingID, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(booking, nil))
}

// GetBooking returns the full view of one booking by id.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": "invalid booking id"})
	}
	detail, err := h.Svc.GetBookingDetails(c.Request().Context(), bookingID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// GetBookingByCode returns the full view of one booking by its code.
func (h *BookingHandler) GetBookingByCode(c echo.Context) error {
	code := c.Param("code")
	detail, err := h.Svc.GetBookingDetailsByCode(c.Request().Context(), code)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// ListMyBookings returns every booking owned by the caller.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "authentication required"})
	}
	items, err := h.Svc.GetUserBookings(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": items})
}
