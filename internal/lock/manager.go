// Package lock implements the seat lock manager: time-limited, per-seat
// claims with at-most-one-holder semantics built on the store's
// compare-and-swap primitive. Locking is seat-by-seat (a batch request may
// partially succeed), matching the one-seat-at-a-time selection flow of the
// seat map UI; only the booking commit is atomic across a seat set.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cinebook/seat-reservation/internal/model"
	"github.com/cinebook/seat-reservation/internal/store"
)

// Rejection explains why one requested seat could not be locked.
type Rejection struct {
	SeatID string `json:"seat_id"`
	Reason string `json:"reason"`
}

// Grant is the outcome of a lock request. Granted and Rejected partition
// the requested seat set; every granted lock expires at ExpiresAt unless
// extended or released first.
type Grant struct {
	Granted   []string    `json:"granted"`
	Rejected  []Rejection `json:"rejected"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Manager validates and applies lock and release requests against the seat
// store. It owns no state of its own; every mutation is a store CAS, so two
// managers over the same store (or two goroutines in one) cannot violate
// the at-most-one-holder invariant.
type Manager struct {
	store *store.SeatStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager returns a manager granting locks with the given TTL.
func NewManager(st *store.SeatStore, ttl time.Duration) *Manager {
	return &Manager{store: st, ttl: ttl, now: time.Now}
}

// LockSeats attempts Available→Pending for each requested seat on behalf of
// sessionID. Each individual lock is atomic but the batch is not: seats
// already Pending under another session or Booked are reported in Rejected
// while the rest are granted. Re-locking a seat the session already holds
// is an idempotent extend; the expiry is refreshed and no second lock is
// created.
func (m *Manager) LockSeats(ctx context.Context, showtimeID string, seatIDs []string, sessionID string) (Grant, error) {
	expiresAt := m.now().UTC().Add(m.ttl)
	grant := Grant{Granted: []string{}, Rejected: []Rejection{}, ExpiresAt: expiresAt}

	for _, seatID := range dedupe(seatIDs) {
		_, err := m.store.ApplyTransition(ctx, showtimeID, seatID,
			store.Expect{State: model.SeatAvailable},
			model.SeatPending,
			model.SeatMeta{HolderID: sessionID, LockID: uuid.NewString(), ExpiresAt: expiresAt},
			"lock")
		if err == nil {
			grant.Granted = append(grant.Granted, seatID)
			continue
		}

		var conflict *store.ConflictError
		if !errors.As(err, &conflict) {
			return Grant{}, err
		}
		if conflict.Observed.State == model.SeatPending && conflict.Observed.HolderID == sessionID {
			// Same session re-locking its own seat: refresh the expiry,
			// keep the existing lock ID.
			_, err = m.store.ApplyTransition(ctx, showtimeID, seatID,
				store.Expect{State: model.SeatPending, HolderID: sessionID},
				model.SeatPending,
				model.SeatMeta{HolderID: sessionID, ExpiresAt: expiresAt},
				"lock")
			if err == nil {
				grant.Granted = append(grant.Granted, seatID)
				continue
			}
		}
		grant.Rejected = append(grant.Rejected, Rejection{SeatID: seatID, Reason: ReasonSeatUnavailable})
	}
	return grant, nil
}

// ReleaseSeats transitions Pending→Available for each seat currently
// locked by sessionID. A seat already Available again (expired and
// reclaimed, or never locked) is skipped as a no-op. A seat held by a
// different session or already Booked fails the whole call with
// ErrNotLockHolder before any seat is mutated.
func (m *Manager) ReleaseSeats(ctx context.Context, showtimeID string, seatIDs []string, sessionID string) ([]string, error) {
	seatIDs = dedupe(seatIDs)

	// Validate ownership up front so a stale client never partially
	// releases a batch it no longer owns.
	for _, seatID := range seatIDs {
		seat, err := m.store.Seat(ctx, showtimeID, seatID)
		if err != nil {
			return nil, err
		}
		if seat.State == model.SeatAvailable {
			continue
		}
		if seat.State != model.SeatPending || seat.HolderID != sessionID {
			return nil, ErrNotLockHolder
		}
	}

	released := []string{}
	for _, seatID := range seatIDs {
		_, err := m.store.ApplyTransition(ctx, showtimeID, seatID,
			store.Expect{State: model.SeatPending, HolderID: sessionID},
			model.SeatAvailable, model.SeatMeta{}, "release")
		if err == nil {
			released = append(released, seatID)
			continue
		}
		var conflict *store.ConflictError
		if errors.As(err, &conflict) {
			if conflict.Observed.State == model.SeatAvailable {
				continue // sweeper got there first
			}
			return released, ErrNotLockHolder
		}
		return released, err
	}
	return released, nil
}

// TTL reports the lock duration granted to new and extended locks.
func (m *Manager) TTL() time.Duration { return m.ttl }

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
