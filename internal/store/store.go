// Package store implements the authoritative seat-state store. Every seat
// of every showtime is an independently lockable slot and all mutation goes
// through a single compare-and-swap primitive; no caller may overwrite seat
// state without naming the state it expects to replace. That discipline is
// what prevents lost updates between concurrent sessions.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cinebook/seat-reservation/internal/model"
)

// Expect names the seat state a transition requires to be in place. State
// is always compared; the remaining fields narrow the expectation further
// when set. HolderID lets a release or commit insist the lock still belongs
// to the caller's session, BookingID lets a cancellation insist the seat
// still belongs to the booking being cancelled, and ExpiredBy lets the
// sweeper insist the lock has not been extended since it was scanned.
type Expect struct {
	State     model.SeatState
	HolderID  string    // if non-empty, current holder must match
	BookingID string    // if non-empty, current booking must match
	ExpiredBy time.Time // if non-zero, current expiry must be <= this instant
}

func (e Expect) matches(seat model.Seat) bool {
	if seat.State != e.State {
		return false
	}
	if e.HolderID != "" && seat.HolderID != e.HolderID {
		return false
	}
	if e.BookingID != "" && seat.BookingID != e.BookingID {
		return false
	}
	if !e.ExpiredBy.IsZero() && seat.ExpiresAt.After(e.ExpiredBy) {
		return false
	}
	return true
}

// ConflictError is the only failure the store surfaces from a transition.
// It carries the seat as it was observed at the moment the expectation did
// not hold, so callers can map it to a domain error (seat taken, lock
// expired, wrong holder) without a second read.
type ConflictError struct {
	ShowtimeID string
	SeatID     string
	Expected   Expect
	Observed   model.Seat
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("seat %s/%s: expected %s, found %s",
		e.ShowtimeID, e.SeatID, e.Expected.State, e.Observed.State)
}

// BookedSeatSource seeds a showtime's seat map with previously persisted
// bookings on first access, so a restarted process does not resell seats
// that were confirmed before the restart. Implemented by the booking
// repository; nil disables seeding.
type BookedSeatSource interface {
	BookedSeatsByShowtime(ctx context.Context, showtimeID string) (map[string]string, error)
}

// Notifier receives one delta per committed transition. The store invokes
// it while the seat's slot is still held, so for any single seat the
// notification order equals the commit order.
type Notifier interface {
	SeatChanged(delta model.SeatDelta)
}

// slot is one seat plus the mutex that serializes its transitions. Slots
// are never removed; an Available slot with no metadata is equivalent to a
// seat that was never touched.
type slot struct {
	mu   sync.Mutex
	seat model.Seat
}

// seatMap owns every slot of one showtime. The map-level mutex only guards
// the slot index; seat state itself is guarded per slot.
type seatMap struct {
	showtimeID string
	mu         sync.RWMutex
	slots      map[string]*slot
}

func (m *seatMap) slotFor(seatID string) *slot {
	m.mu.RLock()
	s, ok := m.slots[seatID]
	m.mu.RUnlock()
	if ok {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.slots[seatID]; ok {
		return s
	}
	s = &slot{seat: model.Seat{
		ShowtimeID: m.showtimeID,
		SeatID:     seatID,
		State:      model.SeatAvailable,
	}}
	m.slots[seatID] = s
	return s
}

// SeatStore holds the seat maps of all active showtimes.
type SeatStore struct {
	mu       sync.RWMutex
	maps     map[string]*seatMap
	source   BookedSeatSource
	notifier Notifier
}

// New returns a store seeded from source on first access per showtime.
// Both source and notifier may be nil.
func New(source BookedSeatSource) *SeatStore {
	return &SeatStore{
		maps:   make(map[string]*seatMap),
		source: source,
	}
}

// SetNotifier wires the broadcast hub in after construction. Must be called
// before the store is shared between goroutines.
func (s *SeatStore) SetNotifier(n Notifier) { s.notifier = n }

// get returns the seat map for a showtime, creating and seeding it on
// first access.
func (s *SeatStore) get(ctx context.Context, showtimeID string) (*seatMap, error) {
	s.mu.RLock()
	m, ok := s.maps[showtimeID]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}

	var seed map[string]string
	if s.source != nil {
		var err error
		if seed, err = s.source.BookedSeatsByShowtime(ctx, showtimeID); err != nil {
			return nil, fmt.Errorf("seed showtime %s: %w", showtimeID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok = s.maps[showtimeID]; ok {
		return m, nil
	}
	m = &seatMap{showtimeID: showtimeID, slots: make(map[string]*slot)}
	for seatID, bookingID := range seed {
		m.slots[seatID] = &slot{seat: model.Seat{
			ShowtimeID: showtimeID,
			SeatID:     seatID,
			State:      model.SeatBooked,
			BookingID:  bookingID,
		}}
	}
	s.maps[showtimeID] = m
	return m, nil
}

// ApplyTransition atomically replaces a seat's state with next if and only
// if the expectation holds against its current state. It returns the seat
// after the transition, or a *ConflictError carrying the observed seat when
// the expectation does not hold. Exactly the meta fields relevant to next
// are applied; stale metadata from the previous state is cleared, with one
// exception: a Pending→Pending transition with an empty meta.LockID keeps
// the existing lock ID, which is how an idempotent extend refreshes expiry
// without minting a second lock. On success a delta attributed to cause is
// handed to the notifier before the seat's slot is released.
func (s *SeatStore) ApplyTransition(ctx context.Context, showtimeID, seatID string,
	expected Expect, next model.SeatState, meta model.SeatMeta, cause string) (model.Seat, error) {

	m, err := s.get(ctx, showtimeID)
	if err != nil {
		return model.Seat{}, err
	}
	sl := m.slotFor(seatID)

	sl.mu.Lock()
	defer sl.mu.Unlock()

	if !expected.matches(sl.seat) {
		return model.Seat{}, &ConflictError{
			ShowtimeID: showtimeID,
			SeatID:     seatID,
			Expected:   expected,
			Observed:   sl.seat,
		}
	}

	seat := model.Seat{ShowtimeID: showtimeID, SeatID: seatID, State: next}
	switch next {
	case model.SeatPending:
		seat.HolderID = meta.HolderID
		seat.LockID = meta.LockID
		seat.ExpiresAt = meta.ExpiresAt
		if seat.LockID == "" {
			seat.LockID = sl.seat.LockID
		}
	case model.SeatBooked:
		seat.BookingID = meta.BookingID
	}
	sl.seat = seat

	if s.notifier != nil {
		s.notifier.SeatChanged(model.SeatDelta{
			ShowtimeID: showtimeID,
			SeatID:     seatID,
			NewState:   next.String(),
			HolderID:   seat.HolderID,
			BookingID:  seat.BookingID,
			Cause:      cause,
			OccurredAt: time.Now().UTC(),
		})
	}
	return seat, nil
}

// Seat returns a copy of one seat's current state. A seat that was never
// touched reads as Available.
func (s *SeatStore) Seat(ctx context.Context, showtimeID, seatID string) (model.Seat, error) {
	m, err := s.get(ctx, showtimeID)
	if err != nil {
		return model.Seat{}, err
	}
	sl := m.slotFor(seatID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.seat, nil
}

// Snapshot returns the full-map view of one showtime: which seats are
// pending and which are booked, each sorted for stable output. Seats absent
// from both lists are available.
func (s *SeatStore) Snapshot(ctx context.Context, showtimeID string) (model.SeatSnapshot, error) {
	m, err := s.get(ctx, showtimeID)
	if err != nil {
		return model.SeatSnapshot{}, err
	}
	snap := model.SeatSnapshot{
		ShowtimeID:   showtimeID,
		PendingSeats: []string{},
		BookedSeats:  []string{},
	}
	m.mu.RLock()
	slots := make([]*slot, 0, len(m.slots))
	for _, sl := range m.slots {
		slots = append(slots, sl)
	}
	m.mu.RUnlock()
	for _, sl := range slots {
		sl.mu.Lock()
		switch sl.seat.State {
		case model.SeatPending:
			snap.PendingSeats = append(snap.PendingSeats, sl.seat.SeatID)
		case model.SeatBooked:
			snap.BookedSeats = append(snap.BookedSeats, sl.seat.SeatID)
		}
		sl.mu.Unlock()
	}
	sort.Strings(snap.PendingSeats)
	sort.Strings(snap.BookedSeats)
	return snap, nil
}

// PendingSeats returns copies of every seat currently Pending in the given
// showtime. Used by the expiry sweeper, which re-validates each candidate
// through ApplyTransition before reclaiming it.
func (s *SeatStore) PendingSeats(ctx context.Context, showtimeID string) ([]model.Seat, error) {
	m, err := s.get(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	slots := make([]*slot, 0, len(m.slots))
	for _, sl := range m.slots {
		slots = append(slots, sl)
	}
	m.mu.RUnlock()
	var pending []model.Seat
	for _, sl := range slots {
		sl.mu.Lock()
		if sl.seat.State == model.SeatPending {
			pending = append(pending, sl.seat)
		}
		sl.mu.Unlock()
	}
	return pending, nil
}

// SeatsHeldBy returns the seat labels currently Pending under the given
// session, sorted. The booking coordinator freezes this set when the
// session proceeds to payment.
func (s *SeatStore) SeatsHeldBy(ctx context.Context, showtimeID, sessionID string) ([]string, error) {
	pending, err := s.PendingSeats(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	var held []string
	for _, seat := range pending {
		if seat.HolderID == sessionID {
			held = append(held, seat.SeatID)
		}
	}
	sort.Strings(held)
	return held, nil
}

// Showtimes lists every showtime that has an instantiated seat map.
func (s *SeatStore) Showtimes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.maps))
	for id := range s.maps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
