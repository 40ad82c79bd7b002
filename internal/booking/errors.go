package booking

import "errors"

var (
	// ErrNoSeatsSelected means the session had no Pending seats for the
	// showtime when it asked to proceed to payment. Rejected before any
	// state mutation.
	ErrNoSeatsSelected = errors.New("no seats selected")

	// ErrSeatConflict means at least one seat of the pending booking lost
	// its lock before commit (expired and possibly reassigned). The whole
	// booking fails; seats already transitioned in the same call are rolled
	// back. Recoverable only by re-selecting seats and retrying the flow.
	ErrSeatConflict = errors.New("seat conflict during booking commit")

	// ErrPaymentFailed wraps a provider failure. All seat locks of the
	// pending booking are released before it is returned.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrPendingBookingNotFound means the pending booking ID is unknown or
	// was already settled (confirmed, aborted or expired).
	ErrPendingBookingNotFound = errors.New("pending booking not found")

	// ErrBookingExpired means the pending booking's TTL elapsed before
	// payment resolved. Its seats have been released.
	ErrBookingExpired = errors.New("pending booking expired")
)
