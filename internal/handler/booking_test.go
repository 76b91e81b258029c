package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhive/event-seat-booking/internal/model"
	"github.com/eventhive/event-seat-booking/internal/repository"
	"github.com/eventhive/event-seat-booking/internal/service"
)

// stubAPI returns canned values so handler plumbing and error mapping
// can be tested without the real service.
type stubAPI struct {
	booking *model.Booking
	lines   []model.BookingSeat
	detail  *repository.BookingDetail
	err     error
}

func (s *stubAPI) GetAvailableSeats(context.Context, uint64) ([]model.SeatType, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []model.SeatType{{ID: 10, Name: "VIP", PriceCents: 15000, TotalSeats: 10, AvailableSeats: 7, IsActive: true}}, nil
}
func (s *stubAPI) SelectSeats(context.Context, uint64, []service.SeatSelection) (*service.Quote, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.Quote{EventID: 1, TotalAmountCents: 30000}, nil
}
func (s *stubAPI) CreateBooking(context.Context, uint64, []service.SeatSelection, uint64) (*model.Booking, []model.BookingSeat, error) {
	return s.booking, s.lines, s.err
}
func (s *stubAPI) ConfirmBooking(context.Context, uint64, uint64) (*model.Booking, error) {
	return s.booking, s.err
}
func (s *stubAPI) CancelBooking(context.Context, uint64, uint64) (*model.Booking, error) {
	return s.booking, s.err
}
func (s *stubAPI) GetBookingDetails(context.Context, uint64) (*repository.BookingDetail, error) {
	return s.detail, s.err
}
func (s *stubAPI) GetBookingDetailsByCode(context.Context, string) (*repository.BookingDetail, error) {
	return s.detail, s.err
}
func (s *stubAPI) GetUserBookings(context.Context, uint64) ([]repository.BookingDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []repository.BookingDetail{*s.detail}, nil
}

func newCtx(method, path, body string, uid interface{}) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if uid != nil {
		c.Set("user_id", uid)
	}
	return c, rec
}

func TestCreateBookingHandler(t *testing.T) {
	api := &stubAPI{
		booking: &model.Booking{ID: 7, Code: "BK-20260830120000-ABCDEF", EventID: 1, UserID: 42, Status: model.StatusPending, TotalAmountCents: 45000},
		lines:   []model.BookingSeat{{SeatTypeID: 10, Quantity: 3, PriceCents: 15000, SubtotalCents: 45000}},
	}
	h := NewBookingHandler(api)

	c, rec := newCtx(http.MethodPost, "/v1/bookings", `{"event_id":1,"seats":[{"seat_type_id":10,"quantity":3}]}`, float64(42))
	require.NoError(t, h.CreateBooking(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var got bookingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(7), got.ID)
	assert.Equal(t, "pending", got.Status)
	require.Len(t, got.Seats, 1)
	assert.Equal(t, uint32(45000), got.Seats[0].SubtotalCents)
}

func TestCreateBookingRequiresAuth(t *testing.T) {
	h := NewBookingHandler(&stubAPI{})
	c, rec := newCtx(http.MethodPost, "/v1/bookings", `{"event_id":1}`, nil)
	require.NoError(t, h.CreateBooking(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &service.ValidationError{Reason: "seat selection is required"}, http.StatusBadRequest, "validation_failed"},
		{"event missing", repository.ErrEventNotFound, http.StatusNotFound, "event_not_found"},
		{"seat type missing", repository.ErrSeatTypeNotFound, http.StatusNotFound, "seat_type_not_found"},
		{"booking missing", repository.ErrBookingNotFound, http.StatusNotFound, "booking_not_found"},
		{"insufficient", repository.ErrInsufficientSeats, http.StatusConflict, "insufficient_seats"},
		{"state conflict", repository.ErrStateConflict, http.StatusConflict, "state_conflict"},
		{"unknown", context.DeadlineExceeded, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewBookingHandler(&stubAPI{err: tc.err})
			c, rec := newCtx(http.MethodPost, "/v1/bookings", `{"event_id":1,"seats":[{"seat_type_id":10,"quantity":1}]}`, float64(42))
			require.NoError(t, h.CreateBooking(c))
			assert.Equal(t, tc.status, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["error"])
		})
	}
}

func TestTransitionHandlers(t *testing.T) {
	api := &stubAPI{booking: &model.Booking{ID: 7, Code: "BK-20260830120000-ABCDEF", Status: model.StatusConfirmed}}
	h := NewBookingHandler(api)

	c, rec := newCtx(http.MethodPost, "/v1/bookings/7/confirm", "", float64(42))
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.ConfirmBooking(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Non-numeric id is rejected before the service is called.
	c, rec = newCtx(http.MethodPost, "/v1/bookings/abc/cancel", "", float64(42))
	c.SetParamNames("id")
	c.SetParamValues("abc")
	require.NoError(t, h.CancelBooking(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAvailableSeatsHandler(t *testing.T) {
	h := NewBookingHandler(&stubAPI{})
	c, rec := newCtx(http.MethodGet, "/v1/events/1/seat-types", "", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.GetAvailableSeats(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		EventID   uint64         `json:"event_id"`
		SeatTypes []seatTypeView `json:"seat_types"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.SeatTypes, 1)
	assert.Equal(t, uint32(7), body.SeatTypes[0].AvailableSeats)
}
