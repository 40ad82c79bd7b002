package model

import "time"

// SeatState is the lifecycle state of a single seat within one showtime.
// A seat is in exactly one state at any instant and every transition goes
// through the store's compare-and-swap primitive.
type SeatState uint8

const (
	// SeatAvailable means the seat may be locked by any session.
	SeatAvailable SeatState = iota
	// SeatPending means one session holds a time-limited lock on the seat.
	SeatPending
	// SeatBooked means the seat belongs to a confirmed booking. Booked is
	// terminal for the booking's lifetime; only an explicit cancellation
	// returns the seat to Available.
	SeatBooked
)

// String returns the wire representation used in broadcast deltas and
// API responses.
func (s SeatState) String() string {
	switch s {
	case SeatAvailable:
		return "AVAILABLE"
	case SeatPending:
		return "PENDING"
	case SeatBooked:
		return "BOOKED"
	default:
		return "UNKNOWN"
	}
}

// Seat is the authoritative record for one seat of one showtime.  Seats are
// identified by a stable label (row letter + column number, e.g. "C7").
// The meta fields are only meaningful in the state they belong to: holder,
// lock and expiry while Pending, booking ID while Booked.
type Seat struct {
	ShowtimeID string    // showtime this seat belongs to
	SeatID     string    // stable label, e.g. "C7"
	State      SeatState // current lifecycle state
	HolderID   string    // session holding the lock (Pending only)
	LockID     string    // lock identifier (Pending only)
	ExpiresAt  time.Time // lock expiry (Pending only)
	BookingID  string    // confirmed booking (Booked only)
}

// SeatMeta carries the state-dependent attributes applied together with a
// seat transition. Exactly the fields relevant to the new state are read;
// the rest are ignored.
type SeatMeta struct {
	HolderID  string
	LockID    string
	ExpiresAt time.Time
	BookingID string
}

// SeatDelta is one incremental seat-state change, broadcast to every
// subscriber of the seat's showtime in the order the underlying
// transitions committed.
type SeatDelta struct {
	ShowtimeID string    `json:"showtime_id"`
	SeatID     string    `json:"seat_id"`
	NewState   string    `json:"new_state"`
	HolderID   string    `json:"holder_id,omitempty"`
	BookingID  string    `json:"booking_id,omitempty"`
	Cause      string    `json:"cause"` // "lock", "release", "expiry", "commit", "cancel"
	OccurredAt time.Time `json:"occurred_at"`
}

// SeatSnapshot is the full-map view sent to a subscriber on join so a new
// viewer never depends on deltas it missed. The payload shape matches what
// seat-map clients render: which seats are pending and which are booked;
// everything else is available.
type SeatSnapshot struct {
	ShowtimeID   string   `json:"showtime_id"`
	PendingSeats []string `json:"pending_seats"`
	BookedSeats  []string `json:"booked_seats"`
}
