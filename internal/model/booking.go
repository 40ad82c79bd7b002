package model

import "time"

// BookingStatus is the post-commit status of a booking. A booking is
// immutable once Confirmed except for the transition to Cancelled.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// PendingBooking is an in-flight purchase: the set of seats a session had
// Pending when it proceeded to payment, frozen into an ordered sequence.
// It lives in memory only, is mutated solely by the booking coordinator and
// is discarded when payment resolves or its TTL elapses.
type PendingBooking struct {
	ID              string    // pending booking identifier handed to the client
	UserID          string    // purchasing user
	SessionID       string    // session that holds the seat locks
	ShowtimeID      string    // showtime the seats belong to
	SeatIDs         []string  // ordered seat labels, all Pending under SessionID
	TotalPriceCents uint32    // price for the whole set
	CreatedAt       time.Time // when the client proceeded to payment
	ExpiresAt       time.Time // pending-booking TTL, shorter than seat-lock renewal horizon
}

// Booking is the durable record of a confirmed purchase.
type Booking struct {
	ID              string        // bookings.id
	UserID          string        // bookings.user_id
	ShowtimeID      string        // bookings.showtime_id
	SeatIDs         []string      // booking_seats rows, ordered
	TotalPriceCents uint32        // bookings.total_price_cents
	Status          BookingStatus // bookings.status
	CreatedAt       time.Time     // bookings.created_at
}
