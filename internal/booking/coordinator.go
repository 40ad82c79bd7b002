// Package booking implements the booking transaction coordinator: it turns
// a set of successfully locked seats into a pending booking, then commits
// the whole set to Booked on payment success or releases it on failure,
// cancellation or expiry. The commit is all-or-nothing across the seat set;
// no payment outcome ever leaves a booking holding part of its seats.
package booking

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cinebook/seat-reservation/internal/model"
	"github.com/cinebook/seat-reservation/internal/payment"
	"github.com/cinebook/seat-reservation/internal/queue"
	"github.com/cinebook/seat-reservation/internal/store"
)

// Repository persists confirmed bookings. Implementations return
// repository.ErrBookingNotFound and repository.ErrForbidden as documented
// in that package.
type Repository interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByIDForUser(ctx context.Context, bookingID, userID string) (*model.Booking, error)
	UpdateStatus(ctx context.Context, bookingID string, status model.BookingStatus) error
}

// EventPublisher announces booking outcomes on the message broker. Both
// methods are best-effort from the coordinator's point of view: a publish
// failure is logged, never propagated, so broker trouble cannot fail a
// paid booking.
type EventPublisher interface {
	BookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
	BookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) error
}

// pendingEntry is one in-flight purchase. Its mutex serializes confirm,
// abort and expiry for this booking only; unrelated bookings never contend.
type pendingEntry struct {
	mu      sync.Mutex
	booking model.PendingBooking
	settled bool
}

// Coordinator drives the Initiated → AwaitingPayment → Confirmed|Released
// state machine for every booking attempt. Pending bookings live in memory;
// only confirmed bookings reach the repository.
type Coordinator struct {
	store          *store.SeatStore
	repo           Repository
	payments       payment.Authorizer
	events         EventPublisher
	seatPriceCents uint32
	ttl            time.Duration
	now            func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingEntry
}

// NewCoordinator wires the coordinator. events may be nil; everything else
// must be non-nil.
func NewCoordinator(st *store.SeatStore, repo Repository, payments payment.Authorizer,
	events EventPublisher, seatPriceCents uint32, ttl time.Duration) *Coordinator {
	if st == nil || repo == nil || payments == nil {
		panic("nil dependency passed to NewCoordinator")
	}
	return &Coordinator{
		store:          st,
		repo:           repo,
		payments:       payments,
		events:         events,
		seatPriceCents: seatPriceCents,
		ttl:            ttl,
		now:            time.Now,
		pending:        make(map[string]*pendingEntry),
	}
}

// Initiate freezes the session's currently Pending seats for the showtime
// into a new pending booking and returns it. Fails with ErrNoSeatsSelected
// when the session holds no seats there. The seats themselves are not
// mutated; their locks keep their own expiry and the pending booking
// carries its own, shorter TTL.
func (c *Coordinator) Initiate(ctx context.Context, userID, sessionID, showtimeID string) (model.PendingBooking, error) {
	seats, err := c.store.SeatsHeldBy(ctx, showtimeID, sessionID)
	if err != nil {
		return model.PendingBooking{}, err
	}
	if len(seats) == 0 {
		return model.PendingBooking{}, ErrNoSeatsSelected
	}

	now := c.now().UTC()
	pb := model.PendingBooking{
		ID:              uuid.NewString(),
		UserID:          userID,
		SessionID:       sessionID,
		ShowtimeID:      showtimeID,
		SeatIDs:         seats,
		TotalPriceCents: uint32(len(seats)) * c.seatPriceCents,
		CreatedAt:       now,
		ExpiresAt:       now.Add(c.ttl),
	}

	c.mu.Lock()
	c.pending[pb.ID] = &pendingEntry{booking: pb}
	c.mu.Unlock()
	return pb, nil
}

// Confirm resolves a pending booking against the payment outcome. On
// authorization success it commits every seat of the set from
// Pending(session) to Booked(bookingID); if any seat fails its CAS the
// already-booked seats of this call are rolled back and the whole booking
// fails with ErrSeatConflict. On authorization failure all seat locks are
// released and ErrPaymentFailed is returned. Either way the pending
// booking is settled exactly once.
func (c *Coordinator) Confirm(ctx context.Context, pendingBookingID, paymentToken string) (model.Booking, error) {
	entry := c.lookup(pendingBookingID)
	if entry == nil {
		return model.Booking{}, ErrPendingBookingNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.settled {
		return model.Booking{}, ErrPendingBookingNotFound
	}
	pb := entry.booking

	if c.now().UTC().After(pb.ExpiresAt) {
		c.settle(entry, pb, "expiry")
		return model.Booking{}, ErrBookingExpired
	}

	authRef, err := c.payments.Authorize(ctx, paymentToken, pb.TotalPriceCents)
	if err != nil {
		c.settle(entry, pb, "release")
		return model.Booking{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	log.Printf("booking %s: payment authorized ref=%s amount=%d", pb.ID, authRef, pb.TotalPriceCents)

	booked := make([]string, 0, len(pb.SeatIDs))
	for _, seatID := range pb.SeatIDs {
		_, err := c.store.ApplyTransition(ctx, pb.ShowtimeID, seatID,
			store.Expect{State: model.SeatPending, HolderID: pb.SessionID},
			model.SeatBooked, model.SeatMeta{BookingID: pb.ID}, "commit")
		if err != nil {
			c.rollback(ctx, pb, booked)
			c.discard(entry, pb.ID)
			log.Printf("booking %s: commit conflict on seat %s: %v", pb.ID, seatID, err)
			return model.Booking{}, ErrSeatConflict
		}
		booked = append(booked, seatID)
	}

	b := model.Booking{
		ID:              pb.ID,
		UserID:          pb.UserID,
		ShowtimeID:      pb.ShowtimeID,
		SeatIDs:         pb.SeatIDs,
		TotalPriceCents: pb.TotalPriceCents,
		Status:          model.BookingConfirmed,
		CreatedAt:       c.now().UTC(),
	}
	if err := c.repo.Create(ctx, &b); err != nil {
		c.rollback(ctx, pb, booked)
		c.discard(entry, pb.ID)
		return model.Booking{}, fmt.Errorf("persist booking: %w", err)
	}
	c.discard(entry, pb.ID)

	if c.events != nil {
		ev := queue.BookingConfirmedEvent{
			BookingID:       b.ID,
			UserID:          b.UserID,
			ShowtimeID:      b.ShowtimeID,
			Seats:           b.SeatIDs,
			TotalPriceCents: b.TotalPriceCents,
			ConfirmedAt:     b.CreatedAt.Format(time.RFC3339),
		}
		if err := c.events.BookingConfirmed(ctx, ev); err != nil {
			log.Printf("booking %s: publish confirmed event: %v", b.ID, err)
		}
	}
	return b, nil
}

// Abort discards a pending booking before payment resolves and releases
// its seat locks. Only the session that initiated it may abort it.
func (c *Coordinator) Abort(ctx context.Context, pendingBookingID, sessionID string) error {
	entry := c.lookup(pendingBookingID)
	if entry == nil {
		return ErrPendingBookingNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.settled || entry.booking.SessionID != sessionID {
		return ErrPendingBookingNotFound
	}
	c.settle(entry, entry.booking, "release")
	return nil
}

// Cancel cancels a confirmed booking on behalf of its owner: the booking
// status flips to Cancelled, every seat returns to Available, and a
// cancellation event is emitted so the wallet collaborator can credit the
// refund. Cancelling an already-cancelled booking is a no-op returning the
// record unchanged.
func (c *Coordinator) Cancel(ctx context.Context, bookingID, userID string) (model.Booking, error) {
	b, err := c.repo.GetByIDForUser(ctx, bookingID, userID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status == model.BookingCancelled {
		return *b, nil
	}
	if err := c.repo.UpdateStatus(ctx, bookingID, model.BookingCancelled); err != nil {
		return model.Booking{}, fmt.Errorf("update booking status: %w", err)
	}
	for _, seatID := range b.SeatIDs {
		_, err := c.store.ApplyTransition(ctx, b.ShowtimeID, seatID,
			store.Expect{State: model.SeatBooked, BookingID: bookingID},
			model.SeatAvailable, model.SeatMeta{}, "cancel")
		if err != nil {
			log.Printf("booking %s: release seat %s on cancel: %v", bookingID, seatID, err)
		}
	}
	b.Status = model.BookingCancelled

	if c.events != nil {
		ev := queue.BookingCancelledEvent{
			BookingID:   b.ID,
			UserID:      b.UserID,
			ShowtimeID:  b.ShowtimeID,
			Seats:       b.SeatIDs,
			RefundCents: b.TotalPriceCents,
			CancelledAt: c.now().UTC().Format(time.RFC3339),
		}
		if err := c.events.BookingCancelled(ctx, ev); err != nil {
			log.Printf("booking %s: publish cancelled event: %v", b.ID, err)
		}
	}
	return *b, nil
}

// ReleaseExpired settles every pending booking whose TTL elapsed, releasing
// its seat locks, and returns how many it discarded. Entries currently in
// the middle of a confirm are skipped; their own flow settles them. Called
// by the expiry sweeper.
func (c *Coordinator) ReleaseExpired(ctx context.Context, now time.Time) int {
	c.mu.Lock()
	entries := make([]*pendingEntry, 0, len(c.pending))
	for _, e := range c.pending {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	discarded := 0
	for _, entry := range entries {
		if !entry.mu.TryLock() {
			continue // confirm or abort in flight
		}
		if !entry.settled && now.After(entry.booking.ExpiresAt) {
			c.settle(entry, entry.booking, "expiry")
			discarded++
		}
		entry.mu.Unlock()
	}
	return discarded
}

// settle releases the booking's seat locks attributed to cause and removes
// it from the registry. Caller holds entry.mu.
func (c *Coordinator) settle(entry *pendingEntry, pb model.PendingBooking, cause string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, seatID := range pb.SeatIDs {
		_, err := c.store.ApplyTransition(ctx, pb.ShowtimeID, seatID,
			store.Expect{State: model.SeatPending, HolderID: pb.SessionID},
			model.SeatAvailable, model.SeatMeta{}, cause)
		if err != nil {
			// Already expired, re-locked or released; nothing to undo.
			continue
		}
	}
	c.discard(entry, pb.ID)
}

// rollback returns seats this confirm call already booked to Available so
// a failed commit never leaves the set partially booked. The expectation
// names our booking ID, so a seat that somehow moved on is left alone.
func (c *Coordinator) rollback(ctx context.Context, pb model.PendingBooking, booked []string) {
	for _, seatID := range booked {
		_, err := c.store.ApplyTransition(ctx, pb.ShowtimeID, seatID,
			store.Expect{State: model.SeatBooked, BookingID: pb.ID},
			model.SeatAvailable, model.SeatMeta{}, "release")
		if err != nil {
			log.Printf("booking %s: rollback seat %s: %v", pb.ID, seatID, err)
		}
	}
}

func (c *Coordinator) lookup(id string) *pendingEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[id]
}

func (c *Coordinator) discard(entry *pendingEntry, id string) {
	entry.settled = true
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
