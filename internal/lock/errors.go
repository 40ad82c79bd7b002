package lock

import "errors"

// Rejection reasons returned per seat in a lock response. These are
// recoverable from the client's point of view: the user reselects or the
// UI reconciles against the next broadcast.
const (
	ReasonSeatUnavailable = "SEAT_UNAVAILABLE"
)

// ErrNotLockHolder is returned when a session tries to release a seat whose
// lock belongs to a different session. The caller's view is stale; it
// should reconcile against the next broadcast rather than retry.
var ErrNotLockHolder = errors.New("not lock holder")
