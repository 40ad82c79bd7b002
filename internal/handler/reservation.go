package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cinebook/seat-reservation/internal/booking"
	"github.com/cinebook/seat-reservation/internal/lock"
	"github.com/cinebook/seat-reservation/internal/repository"
	"github.com/cinebook/seat-reservation/internal/store"
)

// ReservationHandler exposes the seat coordination core over HTTP: seat
// locking and release, checkout, booking confirmation and cancellation,
// plus read-only views (seat snapshot, booking list, wallet balance). JWT
// authentication is assumed to have run; handlers read the user and
// session identity from the request context and return 401 when it is
// missing.
type ReservationHandler struct {
	Store       *store.SeatStore
	Locks       *lock.Manager
	Coordinator *booking.Coordinator
	BookingRepo *repository.BookingRepo
	WalletRepo  *repository.WalletRepo
}

// NewReservationHandler constructs a ReservationHandler. All dependencies
// must be non-nil except WalletRepo, which may be nil when the wallet
// collaborator is not deployed.
func NewReservationHandler(st *store.SeatStore, locks *lock.Manager, coord *booking.Coordinator,
	bookingRepo *repository.BookingRepo, walletRepo *repository.WalletRepo) *ReservationHandler {
	if st == nil || locks == nil || coord == nil || bookingRepo == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{
		Store:       st,
		Locks:       locks,
		Coordinator: coord,
		BookingRepo: bookingRepo,
		WalletRepo:  walletRepo,
	}
}

type seatIDsRequest struct {
	SeatIDs []string `json:"seat_ids"`
}

// LockSeats handles POST /v1/showtimes/:id/lock. Each requested seat is
// locked individually; the response partitions the request into granted
// and rejected seats, so a partially contended batch still grants what it
// can. Re-locking a seat the session already holds refreshes its expiry.
func (h *ReservationHandler) LockSeats(c echo.Context) error {
	sessionID, err := getSessionID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID := c.Param("id")
	if showtimeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body seatIDsRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.SeatIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}

	grant, err := h.Locks.LockSeats(c.Request().Context(), showtimeID, body.SeatIDs, sessionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to lock seats"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"granted":    grant.Granted,
		"rejected":   grant.Rejected,
		"expires_at": grant.ExpiresAt,
	})
}

// ReleaseSeats handles DELETE /v1/showtimes/:id/lock. Only the lock holder
// may release; a stale client releasing seats it no longer owns gets 409
// and should reconcile from the broadcast stream.
func (h *ReservationHandler) ReleaseSeats(c echo.Context) error {
	sessionID, err := getSessionID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID := c.Param("id")
	if showtimeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body seatIDsRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.SeatIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}

	released, err := h.Locks.ReleaseSeats(c.Request().Context(), showtimeID, body.SeatIDs, sessionID)
	if err != nil {
		if errors.Is(err, lock.ErrNotLockHolder) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "not_lock_holder"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release seats"})
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// GetShowtimeSeats handles GET /v1/showtimes/:id/seats. Returns the same
// full-map snapshot the streaming channel primes subscribers with.
func (h *ReservationHandler) GetShowtimeSeats(c echo.Context) error {
	showtimeID := c.Param("id")
	if showtimeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	snap, err := h.Store.Snapshot(c.Request().Context(), showtimeID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seats"})
	}
	return c.JSON(http.StatusOK, snap)
}

// Checkout handles POST /v1/showtimes/:id/checkout. It freezes the
// session's held seats into a pending booking and returns the handle the
// client presents when payment resolves.
func (h *ReservationHandler) Checkout(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := getSessionID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID := c.Param("id")
	if showtimeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}

	pb, err := h.Coordinator.Initiate(c.Request().Context(), userID, sessionID, showtimeID)
	if err != nil {
		if errors.Is(err, booking.ErrNoSeatsSelected) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no_seats_selected"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to initiate booking"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"pending_booking_id": pb.ID,
		"seats":              pb.SeatIDs,
		"total_price_cents":  pb.TotalPriceCents,
		"expires_at":         pb.ExpiresAt,
	})
}

type confirmRequest struct {
	PendingBookingID string `json:"pending_booking_id"`
	PaymentToken     string `json:"payment_token"`
}

// ConfirmBooking handles POST /v1/bookings/confirm. The commit is
// all-or-nothing across the booking's seat set: 409 seat_conflict means at
// least one lock was lost mid-payment and nothing was booked; the user
// must reselect and retry the whole flow.
func (h *ReservationHandler) ConfirmBooking(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body confirmRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PendingBookingID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "pending_booking_id is required"})
	}

	b, err := h.Coordinator.Confirm(c.Request().Context(), body.PendingBookingID, body.PaymentToken)
	switch {
	case err == nil:
	case errors.Is(err, booking.ErrPendingBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "pending booking not found"})
	case errors.Is(err, booking.ErrBookingExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "pending_booking_expired"})
	case errors.Is(err, booking.ErrSeatConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat_conflict"})
	case errors.Is(err, booking.ErrPaymentFailed):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment_failed"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to confirm booking"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":        b.ID,
		"status":            b.Status,
		"seats":             b.SeatIDs,
		"total_price_cents": b.TotalPriceCents,
	})
}

// AbortPending handles POST /v1/bookings/pending/:id/abort. The session
// backs out before payment; its seat locks are released immediately
// instead of waiting for the TTL.
func (h *ReservationHandler) AbortPending(c echo.Context) error {
	sessionID, err := getSessionID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pending booking id"})
	}
	if err := h.Coordinator.Abort(c.Request().Context(), id, sessionID); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "pending booking not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

// CancelBooking handles POST /v1/bookings/:id/cancel. Distinct from
// refusing payment: this reverses an already-confirmed booking, returns
// its seats to the pool and triggers the refund event.
func (h *ReservationHandler) CancelBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	b, err := h.Coordinator.Cancel(c.Request().Context(), id, userID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id": b.ID,
		"status":     b.Status,
	})
}

// ListBookings handles GET /v1/my-bookings.
func (h *ReservationHandler) ListBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.BookingRepo.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// WalletBalance handles GET /v1/wallet.
func (h *ReservationHandler) WalletBalance(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if h.WalletRepo == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "wallet not available"})
	}
	balance, err := h.WalletRepo.Balance(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load wallet"})
	}
	return c.JSON(http.StatusOK, echo.Map{"balance_cents": balance})
}
