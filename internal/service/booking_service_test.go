package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhive/event-seat-booking/internal/model"
	"github.com/eventhive/event-seat-booking/internal/queue"
	"github.com/eventhive/event-seat-booking/internal/repository"
)

// memLedger reproduces the ledger's conditional-update semantics in
// memory so the state machine can be exercised without a database.
type memLedger struct {
	mu    sync.Mutex
	types map[uint64]model.SeatType

	reserveErr map[uint64]error // injected per-seat-type Reserve failures
}

func newMemLedger(types ...model.SeatType) *memLedger {
	l := &memLedger{types: make(map[uint64]model.SeatType), reserveErr: make(map[uint64]error)}
	for _, t := range types {
		l.types[t.ID] = t
	}
	return l
}

func (l *memLedger) available(id uint64) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.types[id].AvailableSeats
}

func (l *memLedger) CheckAvailability(_ context.Context, id uint64, qty uint32) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.types[id]
	if !ok || !t.IsActive {
		return false, repository.ErrSeatTypeNotFound
	}
	return t.AvailableSeats >= qty, nil
}

func (l *memLedger) Reserve(_ context.Context, id uint64, qty uint32, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reserveErr[id]; err != nil {
		return err
	}
	t, ok := l.types[id]
	if !ok || !t.IsActive {
		return repository.ErrSeatTypeNotFound
	}
	if t.AvailableSeats < qty {
		return repository.ErrInsufficientSeats
	}
	t.AvailableSeats -= qty
	l.types[id] = t
	return nil
}

func (l *memLedger) Release(_ context.Context, id uint64, qty uint32, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.types[id]
	if !ok || !t.IsActive {
		return repository.ErrSeatTypeNotFound
	}
	t.AvailableSeats += qty
	l.types[id] = t
	return nil
}

func (l *memLedger) ListAvailableByEvent(_ context.Context, eventID uint64) ([]model.SeatType, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.SeatType, 0)
	for _, t := range l.types {
		if t.EventID == eventID && t.IsActive && t.AvailableSeats > 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents > out[j].PriceCents })
	return out, nil
}

func (l *memLedger) GetForEvent(_ context.Context, eventID uint64, ids []uint64) (map[uint64]model.SeatType, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[uint64]model.SeatType, len(ids))
	for _, id := range ids {
		if t, ok := l.types[id]; ok && t.EventID == eventID && t.IsActive {
			out[id] = t
		}
	}
	return out, nil
}

// memStore persists bookings in memory, running transitions against
// the fake ledger the same way the SQL store runs them in one
// transaction.
type memStore struct {
	mu       sync.Mutex
	ledger   *memLedger
	nextID   uint64
	bookings map[uint64]*model.Booking
	lines    map[uint64][]model.BookingSeat
	codes    map[string]uint64

	dupCodes  int   // fail the next N creates with ErrDuplicateCode
	createErr error // unconditional create failure
}

func newMemStore(l *memLedger) *memStore {
	return &memStore{
		ledger:   l,
		bookings: make(map[uint64]*model.Booking),
		lines:    make(map[uint64][]model.BookingSeat),
		codes:    make(map[string]uint64),
	}
}

func (s *memStore) Create(_ context.Context, b *model.Booking, lines []model.BookingSeat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if s.dupCodes > 0 {
		s.dupCodes--
		return repository.ErrDuplicateCode
	}
	if _, taken := s.codes[b.Code]; taken {
		return repository.ErrDuplicateCode
	}
	s.nextID++
	b.ID = s.nextID
	cp := *b
	s.bookings[b.ID] = &cp
	s.lines[b.ID] = append([]model.BookingSeat(nil), lines...)
	s.codes[b.Code] = b.ID
	return nil
}

func (s *memStore) transition(ctx context.Context, id uint64, actor, to string, effect func(context.Context, uint64, uint32, string) error) (*model.Booking, []model.BookingSeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, nil, repository.ErrBookingNotFound
	}
	if b.Status != model.StatusPending {
		return nil, nil, repository.ErrStateConflict
	}
	for _, l := range s.lines[id] {
		if err := effect(ctx, l.SeatTypeID, l.Quantity, actor); err != nil {
			return nil, nil, err
		}
	}
	b.Status = to
	b.UpdatedBy = actor
	cp := *b
	return &cp, append([]model.BookingSeat(nil), s.lines[id]...), nil
}

func (s *memStore) ConfirmPending(ctx context.Context, id uint64, actor string) (*model.Booking, []model.BookingSeat, error) {
	return s.transition(ctx, id, actor, model.StatusConfirmed, s.ledger.Reserve)
}

func (s *memStore) CancelPending(ctx context.Context, id uint64, actor string) (*model.Booking, []model.BookingSeat, error) {
	return s.transition(ctx, id, actor, model.StatusCancelled, s.ledger.Release)
}

func (s *memStore) detail(b *model.Booking) *repository.BookingDetail {
	d := &repository.BookingDetail{
		ID:               b.ID,
		Code:             b.Code,
		Status:           b.Status,
		TotalAmountCents: b.TotalAmountCents,
		EventID:          b.EventID,
		UserID:           b.UserID,
	}
	for _, l := range s.lines[b.ID] {
		d.Seats = append(d.Seats, repository.BookingSeatView{
			SeatTypeID:    l.SeatTypeID,
			Quantity:      l.Quantity,
			PriceCents:    l.PriceCents,
			SubtotalCents: l.SubtotalCents,
		})
	}
	return d
}

func (s *memStore) GetDetailByID(_ context.Context, id uint64) (*repository.BookingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return s.detail(b), nil
}

func (s *memStore) GetDetailByCode(_ context.Context, code string) (*repository.BookingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[code]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return s.detail(s.bookings[id]), nil
}

func (s *memStore) ListByUser(_ context.Context, userID uint64) ([]repository.BookingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.BookingDetail, 0)
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, *s.detail(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memCatalog struct{ events map[uint64]model.Event }

func (c *memCatalog) GetByID(_ context.Context, id uint64) (*model.Event, error) {
	if e, ok := c.events[id]; ok && e.IsActive {
		cp := e
		return &cp, nil
	}
	return nil, repository.ErrEventNotFound
}

type memPublisher struct {
	mu        sync.Mutex
	confirmed []queue.BookingConfirmedEvent
	cancelled []queue.BookingCancelledEvent
	err       error
}

func (p *memPublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.confirmed = append(p.confirmed, ev)
	return nil
}

func (p *memPublisher) PublishBookingCancelled(_ context.Context, ev queue.BookingCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.cancelled = append(p.cancelled, ev)
	return nil
}

// ----- fixtures -----

const (
	eventID = uint64(1)
	userID  = uint64(42)

	vipID      = uint64(10)
	standardID = uint64(11)
)

func fixture() (*memLedger, *memStore, *memCatalog, *memPublisher, *BookingService) {
	ledger := newMemLedger(
		model.SeatType{ID: vipID, EventID: eventID, Name: "VIP", PriceCents: 15000, TotalSeats: 10, AvailableSeats: 10, IsActive: true},
		model.SeatType{ID: standardID, EventID: eventID, Name: "Standard", PriceCents: 5000, TotalSeats: 100, AvailableSeats: 100, IsActive: true},
	)
	store := newMemStore(ledger)
	catalog := &memCatalog{events: map[uint64]model.Event{eventID: {ID: eventID, Name: "Summer Gala", Venue: "Main Hall", IsActive: true}}}
	pub := &memPublisher{}
	svc := NewBookingService(ledger, store, catalog, pub, zerolog.Nop())
	return ledger, store, catalog, pub, svc
}

func TestGetAvailableSeats(t *testing.T) {
	ledger, _, _, _, svc := fixture()

	// Sold-out types drop out of the listing.
	ledger.mu.Lock()
	st := ledger.types[standardID]
	st.AvailableSeats = 0
	ledger.types[standardID] = st
	ledger.mu.Unlock()

	types, err := svc.GetAvailableSeats(context.Background(), eventID)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, vipID, types[0].ID)

	_, err = svc.GetAvailableSeats(context.Background(), 999)
	assert.ErrorIs(t, err, repository.ErrEventNotFound)
}

func TestSelectSeatsQuote(t *testing.T) {
	_, _, _, _, svc := fixture()

	quote, err := svc.SelectSeats(context.Background(), eventID, []SeatSelection{
		{SeatTypeID: vipID, Quantity: 2},
		{SeatTypeID: standardID, Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, quote.Lines, 2)
	assert.Equal(t, uint32(2*15000), quote.Lines[0].SubtotalCents)
	assert.Equal(t, uint32(3*5000), quote.Lines[1].SubtotalCents)
	assert.Equal(t, uint32(2*15000+3*5000), quote.TotalAmountCents)
}

func TestSelectSeatsValidation(t *testing.T) {
	_, _, _, _, svc := fixture()
	ctx := context.Background()

	cases := []struct {
		name      string
		eventID   uint64
		selection []SeatSelection
	}{
		{"empty selection", eventID, nil},
		{"zero seat type", eventID, []SeatSelection{{SeatTypeID: 0, Quantity: 1}}},
		{"zero quantity", eventID, []SeatSelection{{SeatTypeID: vipID, Quantity: 0}}},
		{"duplicate line", eventID, []SeatSelection{{SeatTypeID: vipID, Quantity: 1}, {SeatTypeID: vipID, Quantity: 2}}},
		{"zero event", 0, []SeatSelection{{SeatTypeID: vipID, Quantity: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SelectSeats(ctx, tc.eventID, tc.selection)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	_, err := svc.SelectSeats(ctx, eventID, []SeatSelection{{SeatTypeID: 777, Quantity: 1}})
	assert.ErrorIs(t, err, repository.ErrSeatTypeNotFound)
}

func TestCreateBooking(t *testing.T) {
	ledger, _, _, _, svc := fixture()

	booking, lines, err := svc.CreateBooking(context.Background(), eventID, []SeatSelection{
		{SeatTypeID: vipID, Quantity: 3},
	}, userID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, booking.Status)
	assert.Equal(t, uint32(45000), booking.TotalAmountCents)
	assert.Equal(t, "42", booking.CreatedBy)
	require.Len(t, lines, 1)
	assert.Equal(t, uint32(15000), lines[0].PriceCents)
	assert.Regexp(t, `^BK-\d{14}-[0-9A-F]{6}$`, booking.Code)

	// Creation holds the seats immediately.
	assert.Equal(t, uint32(7), ledger.available(vipID))
}

func TestCreateBookingInsufficient(t *testing.T) {
	ledger, _, _, _, svc := fixture()

	_, _, err := svc.CreateBooking(context.Background(), eventID, []SeatSelection{
		{SeatTypeID: vipID, Quantity: 11},
	}, userID)
	assert.ErrorIs(t, err, repository.ErrInsufficientSeats)
	assert.Equal(t, uint32(10), ledger.available(vipID))
}

func TestCreateBookingCompensatesOnPartialFailure(t *testing.T) {
	ledger, _, _, _, svc := fixture()

	// Second line fails at reserve time, after the first succeeded:
	// the advisory pre-check passes, the conditional update does not.
	ledger.reserveErr[standardID] = repository.ErrInsufficientSeats

	_, _, err := svc.CreateBooking(context.Background(), eventID, []SeatSelection{
		{SeatTypeID: vipID, Quantity: 4},
		{SeatTypeID: standardID, Quantity: 2},
	}, userID)
	assert.ErrorIs(t, err, repository.ErrInsufficientSeats)

	// The VIP reservation was rolled back.
	assert.Equal(t, uint32(10), ledger.available(vipID))
	assert.Equal(t, uint32(100), ledger.available(standardID))
}

func TestCreateBookingReleasesOnPersistFailure(t *testing.T) {
	ledger, store, _, _, svc := fixture()
	store.createErr = errors.New("disk full")

	_, _, err := svc.CreateBooking(context.Background(), eventID, []SeatSelection{
		{SeatTypeID: vipID, Quantity: 5},
	}, userID)
	require.Error(t, err)
	assert.Equal(t, uint32(10), ledger.available(vipID))
	assert.Empty(t, store.bookings)
}

func TestCreateBookingRetriesDuplicateCode(t *testing.T) {
	ledger, store, _, _, svc := fixture()
	store.dupCodes = 2

	booking, _, err := svc.CreateBooking(context.Background(), eventID, []SeatSelection{
		{SeatTypeID: vipID, Quantity: 1},
	}, userID)
	require.NoError(t, err)
	assert.NotZero(t, booking.ID)
	assert.Equal(t, uint32(9), ledger.available(vipID))
}

func TestCreateBookingDuplicateCodeExhausted(t *testing.T) {
	ledger, store, _, _, svc := fixture()
	store.dupCodes = 3

	_, _, err := svc.CreateBooking(context.Background(), eventID, []SeatSelection{
		{SeatTypeID: vipID, Quantity: 1},
	}, userID)
	assert.ErrorIs(t, err, repository.ErrDuplicateCode)
	assert.Equal(t, uint32(10), ledger.available(vipID))
}

func TestConfirmBooking(t *testing.T) {
	ledger, _, _, pub, svc := fixture()
	ctx := context.Background()

	booking, _, err := svc.CreateBooking(ctx, eventID, []SeatSelection{{SeatTypeID: vipID, Quantity: 3}}, userID)
	require.NoError(t, err)
	require.Equal(t, uint32(7), ledger.available(vipID))

	confirmed, err := svc.ConfirmBooking(ctx, booking.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)

	// Confirmation applies the finalization decrement on top of the
	// creation hold.
	assert.Equal(t, uint32(4), ledger.available(vipID))

	require.Len(t, pub.confirmed, 1)
	assert.Equal(t, booking.Code, pub.confirmed[0].Code)
	assert.Equal(t, []queue.SeatLineQty{{SeatTypeID: vipID, Quantity: 3}}, pub.confirmed[0].Seats)
}

func TestCancelBooking(t *testing.T) {
	ledger, _, _, pub, svc := fixture()
	ctx := context.Background()

	booking, _, err := svc.CreateBooking(ctx, eventID, []SeatSelection{{SeatTypeID: vipID, Quantity: 3}}, userID)
	require.NoError(t, err)
	require.Equal(t, uint32(7), ledger.available(vipID))

	cancelled, err := svc.CancelBooking(ctx, booking.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, uint32(10), ledger.available(vipID))
	require.Len(t, pub.cancelled, 1)
	assert.Equal(t, booking.Code, pub.cancelled[0].Code)
}

func TestTransitionGuards(t *testing.T) {
	ledger, _, _, _, svc := fixture()
	ctx := context.Background()

	booking, _, err := svc.CreateBooking(ctx, eventID, []SeatSelection{{SeatTypeID: vipID, Quantity: 2}}, userID)
	require.NoError(t, err)

	_, err = svc.ConfirmBooking(ctx, booking.ID, userID)
	require.NoError(t, err)
	availAfterConfirm := ledger.available(vipID)

	// A second confirm and a late cancel both lose the guard and leave
	// inventory untouched.
	_, err = svc.ConfirmBooking(ctx, booking.ID, userID)
	assert.ErrorIs(t, err, repository.ErrStateConflict)
	_, err = svc.CancelBooking(ctx, booking.ID, userID)
	assert.ErrorIs(t, err, repository.ErrStateConflict)
	assert.Equal(t, availAfterConfirm, ledger.available(vipID))

	_, err = svc.ConfirmBooking(ctx, 9999, userID)
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	_, _, _, pub, svc := fixture()
	ctx := context.Background()
	pub.err = errors.New("broker down")

	booking, _, err := svc.CreateBooking(ctx, eventID, []SeatSelection{{SeatTypeID: vipID, Quantity: 1}}, userID)
	require.NoError(t, err)

	confirmed, err := svc.ConfirmBooking(ctx, booking.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)
}

func TestBookingLookups(t *testing.T) {
	_, _, _, _, svc := fixture()
	ctx := context.Background()

	booking, _, err := svc.CreateBooking(ctx, eventID, []SeatSelection{{SeatTypeID: standardID, Quantity: 2}}, userID)
	require.NoError(t, err)

	byID, err := svc.GetBookingDetails(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.Code, byID.Code)
	require.Len(t, byID.Seats, 1)
	assert.Equal(t, uint32(10000), byID.Seats[0].SubtotalCents)

	byCode, err := svc.GetBookingDetailsByCode(ctx, booking.Code)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, byCode.ID)

	mine, err := svc.GetUserBookings(ctx, userID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	none, err := svc.GetUserBookings(ctx, 777)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.GetBookingDetailsByCode(ctx, "BK-00000000000000-FFFFFF")
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)
}

func TestConcurrentBookingsNeverOversell(t *testing.T) {
	ledger, _, _, _, svc := fixture()
	ctx := context.Background()

	const attempts = 25
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _, err := svc.CreateBooking(ctx, eventID, []SeatSelection{{SeatTypeID: vipID, Quantity: 1}}, uint64(100+n))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, repository.ErrInsufficientSeats) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 10, succeeded, fmt.Sprintf("exactly the available seats may be sold, got %d", succeeded))
	assert.Equal(t, uint32(0), ledger.available(vipID))
}
