// Package sweeper reclaims abandoned seat locks and expired pending
// bookings in the background. Abandoned carts are the common case, not the
// exception: a user who closes the tab never releases anything, so the
// sweeper is what keeps their seats from staying falsely unavailable.
package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/cinebook/seat-reservation/internal/model"
	"github.com/cinebook/seat-reservation/internal/store"
)

// BookingReaper releases pending bookings whose TTL elapsed before payment
// resolved. Implemented by the booking coordinator.
type BookingReaper interface {
	ReleaseExpired(ctx context.Context, now time.Time) int
}

// Sweeper periodically scans every active showtime for Pending seats whose
// expiry has passed and reclaims them with the same CAS a user release
// performs, attributed to "expiry". The interval trades scan cost against
// how long an abandoned seat can stay falsely unavailable; a few seconds
// is enough when lock TTLs are minutes.
type Sweeper struct {
	store    *store.SeatStore
	reaper   BookingReaper
	interval time.Duration
	now      func() time.Time
}

// New returns a sweeper over the given store. reaper may be nil.
func New(st *store.SeatStore, reaper BookingReaper, interval time.Duration) *Sweeper {
	return &Sweeper{store: st, reaper: reaper, interval: interval, now: time.Now}
}

// Run blocks, sweeping once per interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("sweeper: running every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("sweeper: stopped")
			return
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				log.Printf("sweeper: reclaimed %d expired seat locks", n)
			}
		}
	}
}

// Sweep performs one pass over all active showtimes and returns how many
// seat locks it reclaimed. Each candidate is re-validated through the CAS:
// the expectation names the scanned holder and requires the expiry not to
// have been extended since the scan, so a lock refreshed mid-sweep is left
// alone and a seat released-and-relocked mid-sweep is never stolen from
// its new holder.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.now().UTC()
	reclaimed := 0
	for _, showtimeID := range s.store.Showtimes() {
		pending, err := s.store.PendingSeats(ctx, showtimeID)
		if err != nil {
			log.Printf("sweeper: scan showtime %s: %v", showtimeID, err)
			continue
		}
		for _, seat := range pending {
			if seat.ExpiresAt.After(now) {
				continue
			}
			_, err := s.store.ApplyTransition(ctx, showtimeID, seat.SeatID,
				store.Expect{State: model.SeatPending, HolderID: seat.HolderID, ExpiredBy: now},
				model.SeatAvailable, model.SeatMeta{}, "expiry")
			if err == nil {
				reclaimed++
			}
		}
	}
	if s.reaper != nil {
		if n := s.reaper.ReleaseExpired(ctx, now); n > 0 {
			log.Printf("sweeper: discarded %d expired pending bookings", n)
		}
	}
	return reclaimed
}
