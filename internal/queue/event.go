// Package queue defines message payloads exchanged over the message broker
// and the background consumer that reacts to them.
package queue

// BookingConfirmedEvent is published when a booking commit succeeds. It
// carries enough for downstream consumers (ticket artifacts, notifications,
// analytics) without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID       string   `json:"booking_id"`
	UserID          string   `json:"user_id"`
	ShowtimeID      string   `json:"showtime_id"`
	Seats           []string `json:"seats"`
	TotalPriceCents uint32   `json:"total_price_cents"`
	ConfirmedAt     string   `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a confirmed booking is cancelled
// by its owner. The wallet consumer credits RefundCents back to the user;
// the coordinator itself does no refund bookkeeping.
type BookingCancelledEvent struct {
	BookingID   string   `json:"booking_id"`
	UserID      string   `json:"user_id"`
	ShowtimeID  string   `json:"showtime_id"`
	Seats       []string `json:"seats"`
	RefundCents uint32   `json:"refund_cents"`
	CancelledAt string   `json:"cancelled_at"`
}

// Queue names. Durable queues on the default exchange, declared by both
// publisher and consumer so startup order does not matter.
const (
	BookingConfirmedQueue = "booking.confirmed"
	BookingCancelledQueue = "booking.cancelled"
)
