package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/seat-reservation/internal/model"
	"github.com/cinebook/seat-reservation/internal/reconcile"
)

func delta(seatID, state, holder string) model.SeatDelta {
	return model.SeatDelta{ShowtimeID: "show-1", SeatID: seatID, NewState: state, HolderID: holder}
}

func TestOptimisticToggleThenGrant(t *testing.T) {
	m := reconcile.NewMirror("sess-1")

	require.True(t, m.BeginLock("B4"))
	assert.Equal(t, reconcile.ViewSelected, m.View("B4"), "optimistic selection shows immediately")

	m.ResolveLock("B4", true)
	assert.Equal(t, reconcile.ViewSelected, m.View("B4"))
	assert.Equal(t, []string{"B4"}, m.Selected())
}

func TestOptimisticToggleRejectedReverts(t *testing.T) {
	m := reconcile.NewMirror("sess-1")

	// The broadcast already said another session holds B4 before our
	// request resolved.
	require.True(t, m.BeginLock("B4"))
	m.ApplyDelta(delta("B4", "PENDING", "sess-2"))
	assert.Equal(t, reconcile.ViewSelected, m.View("B4"), "in-flight toggle still wins")

	m.ResolveLock("B4", false)
	assert.Equal(t, reconcile.ViewPending, m.View("B4"), "rejection reveals the authoritative holder")
	assert.Empty(t, m.Selected())
}

func TestBeginLockRefusesTakenSeats(t *testing.T) {
	m := reconcile.NewMirror("sess-1")
	m.ApplyDelta(delta("A1", "PENDING", "sess-2"))
	m.ApplyDelta(delta("A2", "BOOKED", ""))

	assert.False(t, m.BeginLock("A1"))
	assert.False(t, m.BeginLock("A2"))
	assert.True(t, m.BeginLock("A3"))
}

func TestReleaseFlow(t *testing.T) {
	m := reconcile.NewMirror("sess-1")

	assert.False(t, m.BeginRelease("B4"), "cannot release what we do not hold")

	require.True(t, m.BeginLock("B4"))
	m.ResolveLock("B4", true)

	require.True(t, m.BeginRelease("B4"))
	assert.Equal(t, reconcile.ViewAvailable, m.View("B4"), "optimistic deselect shows immediately")

	m.ResolveRelease("B4", true)
	assert.Equal(t, reconcile.ViewAvailable, m.View("B4"))
	assert.Empty(t, m.Selected())
}

func TestDeltaOverwritesOtherSessions(t *testing.T) {
	m := reconcile.NewMirror("sess-1")

	m.ApplyDelta(delta("C1", "PENDING", "sess-2"))
	assert.Equal(t, reconcile.ViewPending, m.View("C1"))

	m.ApplyDelta(delta("C1", "AVAILABLE", ""))
	assert.Equal(t, reconcile.ViewAvailable, m.View("C1"))

	m.ApplyDelta(delta("C1", "BOOKED", ""))
	assert.Equal(t, reconcile.ViewBooked, m.View("C1"))
}

func TestExpiryDeltaRevokesOwnSelection(t *testing.T) {
	m := reconcile.NewMirror("sess-1")
	require.True(t, m.BeginLock("D2"))
	m.ResolveLock("D2", true)

	// Our lock expired server-side and the seat went back to available.
	m.ApplyDelta(delta("D2", "AVAILABLE", ""))
	assert.Equal(t, reconcile.ViewAvailable, m.View("D2"))
	assert.Empty(t, m.Selected())
}

func TestOwnLockDeltaKeepsSelection(t *testing.T) {
	m := reconcile.NewMirror("sess-1")
	require.True(t, m.BeginLock("D3"))
	m.ResolveLock("D3", true)

	// The broadcast echo of our own lock must not demote it to pending.
	m.ApplyDelta(delta("D3", "PENDING", "sess-1"))
	assert.Equal(t, reconcile.ViewSelected, m.View("D3"))
}

func TestSnapshotReconcileDropsLostSelections(t *testing.T) {
	m := reconcile.NewMirror("sess-1")
	for _, id := range []string{"E1", "E2"} {
		require.True(t, m.BeginLock(id))
		m.ResolveLock(id, true)
	}

	// Reconnect: the authority still shows E1 pending, but E2 was
	// reclaimed while we were away.
	m.ApplySnapshot(model.SeatSnapshot{
		ShowtimeID:   "show-1",
		PendingSeats: []string{"E1", "F9"},
		BookedSeats:  []string{"G1"},
	})

	assert.Equal(t, reconcile.ViewSelected, m.View("E1"))
	assert.Equal(t, reconcile.ViewAvailable, m.View("E2"))
	assert.Equal(t, reconcile.ViewPending, m.View("F9"))
	assert.Equal(t, reconcile.ViewBooked, m.View("G1"))
	assert.Equal(t, []string{"E1"}, m.Selected())
}
