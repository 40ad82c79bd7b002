// Package reconcile maintains the client-side mirror of a showtime's seat
// map. The mirror is derived, possibly-stale state used for optimistic UI:
// a user's toggle is shown immediately, then reconciled against the lock
// response and against the authoritative broadcast stream. The mirror is
// never authoritative; every snapshot and delta from the server overwrites
// it, except that the user's own in-flight toggle stays visible until its
// request resolves.
package reconcile

import (
	"sort"
	"sync"

	"github.com/cinebook/seat-reservation/internal/model"
)

// SeatView is what the UI should render for one seat.
type SeatView string

const (
	ViewAvailable SeatView = "available"
	ViewSelected  SeatView = "selected" // ours: optimistic or confirmed lock
	ViewPending   SeatView = "pending"  // locked by some other session
	ViewBooked    SeatView = "booked"
)

type op uint8

const (
	opNone op = iota
	opLock
	opRelease
)

// Mirror is the local seat map of one session viewing one showtime. Safe
// for concurrent use; a UI event loop and a broadcast reader may share it.
type Mirror struct {
	mu        sync.Mutex
	sessionID string
	pending   map[string]struct{} // authoritative: pending under any session
	booked    map[string]struct{} // authoritative: booked
	selected  map[string]struct{} // ours, confirmed by a lock response
	inflight  map[string]op       // ours, request not yet resolved
}

// NewMirror returns an empty mirror for the given session.
func NewMirror(sessionID string) *Mirror {
	return &Mirror{
		sessionID: sessionID,
		pending:   make(map[string]struct{}),
		booked:    make(map[string]struct{}),
		selected:  make(map[string]struct{}),
		inflight:  make(map[string]op),
	}
}

// ApplySnapshot replaces the authoritative sets with the server's full-map
// view. A seat we considered selected that the authority no longer shows
// as pending was reclaimed (expiry) or resold; the selection is dropped so
// the UI stops promising it. In-flight optimistic toggles are kept until
// their own requests resolve.
func (m *Mirror) ApplySnapshot(snap model.SeatSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = make(map[string]struct{}, len(snap.PendingSeats))
	for _, id := range snap.PendingSeats {
		m.pending[id] = struct{}{}
	}
	m.booked = make(map[string]struct{}, len(snap.BookedSeats))
	for _, id := range snap.BookedSeats {
		m.booked[id] = struct{}{}
	}
	for id := range m.selected {
		if _, ok := m.pending[id]; !ok {
			delete(m.selected, id)
		}
	}
}

// ApplyDelta folds one broadcast delta into the authoritative sets. Deltas
// for seats held by other sessions always win; a delta for one of our own
// seats only revokes the selection when the authority says someone else
// has it or it expired out from under us.
func (m *Mirror) ApplyDelta(d model.SeatDelta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, d.SeatID)
	delete(m.booked, d.SeatID)
	switch d.NewState {
	case model.SeatPending.String():
		m.pending[d.SeatID] = struct{}{}
		if d.HolderID != "" && d.HolderID != m.sessionID {
			delete(m.selected, d.SeatID)
		}
	case model.SeatBooked.String():
		m.booked[d.SeatID] = struct{}{}
		delete(m.selected, d.SeatID)
	case model.SeatAvailable.String():
		delete(m.selected, d.SeatID)
	}
}

// BeginLock records an optimistic selection before the lock request is
// sent. Returns false when the seat is not selectable in the current view.
func (m *Mirror) BeginLock(seatID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.booked[seatID]; ok {
		return false
	}
	if _, ok := m.pending[seatID]; ok {
		if _, ours := m.selected[seatID]; !ours {
			return false
		}
	}
	m.inflight[seatID] = opLock
	return true
}

// BeginRelease records an optimistic deselection before the release
// request is sent. Returns false when the seat is not ours to release.
func (m *Mirror) BeginRelease(seatID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ours := m.selected[seatID]; !ours {
		return false
	}
	m.inflight[seatID] = opRelease
	return true
}

// ResolveLock settles an optimistic selection against the lock response.
// A rejection reverts the optimistic state and the conflict surfaces
// through View (the seat shows whatever the authority last broadcast).
func (m *Mirror) ResolveLock(seatID string, granted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight[seatID] == opLock {
		delete(m.inflight, seatID)
	}
	if granted {
		m.selected[seatID] = struct{}{}
		m.pending[seatID] = struct{}{}
	}
}

// ResolveRelease settles an optimistic deselection against the release
// response.
func (m *Mirror) ResolveRelease(seatID string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight[seatID] == opRelease {
		delete(m.inflight, seatID)
	}
	if ok {
		delete(m.selected, seatID)
		delete(m.pending, seatID)
	}
}

// View merges optimistic and authoritative state for one seat. The user's
// own unresolved toggle wins; otherwise authority decides, with our
// confirmed selections rendered as selected rather than generically
// pending.
func (m *Mirror) View(seatID string) SeatView {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.inflight[seatID] {
	case opLock:
		return ViewSelected
	case opRelease:
		return ViewAvailable
	}
	if _, ok := m.booked[seatID]; ok {
		return ViewBooked
	}
	if _, ok := m.selected[seatID]; ok {
		return ViewSelected
	}
	if _, ok := m.pending[seatID]; ok {
		return ViewPending
	}
	return ViewAvailable
}

// Selected returns the user's confirmed seat selection, sorted.
func (m *Mirror) Selected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.selected))
	for id := range m.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
