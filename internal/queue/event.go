// Package queue defines message payloads exchanged over the message broker
// and the background consumer that audits booking lifecycle events.
package queue

// SeatLineQty identifies one seat line of a booking event payload.
type SeatLineQty struct {
	SeatTypeID uint64 `json:"seat_type_id"`
	Quantity   uint32 `json:"quantity"`
}

// BookingConfirmedEvent is published when a pending booking is
// confirmed.  It carries enough information for downstream consumers
// to log, notify or trigger analytics without querying the primary
// database.
type BookingConfirmedEvent struct {
	BookingID        uint64        `json:"booking_id"`
	Code             string        `json:"code"`
	UserID           uint64        `json:"user_id"`
	EventID          uint64        `json:"event_id"`
	TotalAmountCents uint32        `json:"total_amount_cents"`
	Seats            []SeatLineQty `json:"seats"`
	ConfirmedAt      string        `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a pending booking is
// cancelled and its seats are returned to inventory.
type BookingCancelledEvent struct {
	BookingID        uint64        `json:"booking_id"`
	Code             string        `json:"code"`
	UserID           uint64        `json:"user_id"`
	EventID          uint64        `json:"event_id"`
	TotalAmountCents uint32        `json:"total_amount_cents"`
	Seats            []SeatLineQty `json:"seats"`
	CancelledAt      string        `json:"cancelled_at"`
}
