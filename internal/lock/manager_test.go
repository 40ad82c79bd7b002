package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/seat-reservation/internal/model"
	"github.com/cinebook/seat-reservation/internal/store"
)

func TestLockSeats_ContentionThenRelease(t *testing.T) {
	st := store.New(nil)
	m := NewManager(st, 5*time.Minute)
	ctx := context.Background()

	// S1 locks B4.
	grant, err := m.LockSeats(ctx, "show-1", []string{"B4"}, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B4"}, grant.Granted)
	assert.Empty(t, grant.Rejected)

	// S2 is rejected while S1 holds the lock.
	grant, err = m.LockSeats(ctx, "show-1", []string{"B4"}, "s2")
	require.NoError(t, err)
	assert.Empty(t, grant.Granted)
	require.Len(t, grant.Rejected, 1)
	assert.Equal(t, "B4", grant.Rejected[0].SeatID)
	assert.Equal(t, ReasonSeatUnavailable, grant.Rejected[0].Reason)

	// S1 releases, S2 retries and wins.
	released, err := m.ReleaseSeats(ctx, "show-1", []string{"B4"}, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B4"}, released)

	grant, err = m.LockSeats(ctx, "show-1", []string{"B4"}, "s2")
	require.NoError(t, err)
	assert.Equal(t, []string{"B4"}, grant.Granted)
}

func TestLockSeats_PartialSuccess(t *testing.T) {
	st := store.New(nil)
	m := NewManager(st, 5*time.Minute)
	ctx := context.Background()

	_, err := m.LockSeats(ctx, "show-1", []string{"A2"}, "s1")
	require.NoError(t, err)

	grant, err := m.LockSeats(ctx, "show-1", []string{"A1", "A2", "A3"}, "s2")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A3"}, grant.Granted)
	require.Len(t, grant.Rejected, 1)
	assert.Equal(t, "A2", grant.Rejected[0].SeatID)
}

func TestLockSeats_IdempotentExtend(t *testing.T) {
	st := store.New(nil)
	m := NewManager(st, 5*time.Minute)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	_, err := m.LockSeats(ctx, "show-1", []string{"A1"}, "s1")
	require.NoError(t, err)
	first, err := st.Seat(ctx, "show-1", "A1")
	require.NoError(t, err)

	// Same session re-locks two minutes later: expiry refreshed, same lock.
	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	grant, err := m.LockSeats(ctx, "show-1", []string{"A1"}, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, grant.Granted)

	second, err := st.Seat(ctx, "show-1", "A1")
	require.NoError(t, err)
	assert.Equal(t, first.LockID, second.LockID)
	assert.True(t, second.ExpiresAt.After(first.ExpiresAt))
	assert.Equal(t, "s1", second.HolderID)
}

func TestLockSeats_DeduplicatesRequest(t *testing.T) {
	st := store.New(nil)
	m := NewManager(st, 5*time.Minute)
	ctx := context.Background()

	grant, err := m.LockSeats(ctx, "show-1", []string{"A1", "A1", "", "A1"}, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, grant.Granted)
}

func TestReleaseSeats_NotLockHolder(t *testing.T) {
	st := store.New(nil)
	m := NewManager(st, 5*time.Minute)
	ctx := context.Background()

	_, err := m.LockSeats(ctx, "show-1", []string{"B1", "B2"}, "s1")
	require.NoError(t, err)

	// S2 cannot release S1's seats, and nothing is mutated.
	_, err = m.ReleaseSeats(ctx, "show-1", []string{"B1", "B2"}, "s2")
	assert.ErrorIs(t, err, ErrNotLockHolder)

	seat, err := st.Seat(ctx, "show-1", "B1")
	require.NoError(t, err)
	assert.Equal(t, model.SeatPending, seat.State)
	assert.Equal(t, "s1", seat.HolderID)
}

func TestReleaseSeats_AlreadyAvailableIsNoOp(t *testing.T) {
	st := store.New(nil)
	m := NewManager(st, 5*time.Minute)
	ctx := context.Background()

	// Never locked: releasing is harmless and reports nothing released.
	released, err := m.ReleaseSeats(ctx, "show-1", []string{"Z9"}, "s1")
	require.NoError(t, err)
	assert.Empty(t, released)
}

func TestReleaseSeats_BookedSeatRejected(t *testing.T) {
	st := store.New(nil)
	m := NewManager(st, 5*time.Minute)
	ctx := context.Background()

	_, err := m.LockSeats(ctx, "show-1", []string{"C1"}, "s1")
	require.NoError(t, err)
	_, err = st.ApplyTransition(ctx, "show-1", "C1",
		store.Expect{State: model.SeatPending, HolderID: "s1"}, model.SeatBooked,
		model.SeatMeta{BookingID: "bk-1"}, "commit")
	require.NoError(t, err)

	_, err = m.ReleaseSeats(ctx, "show-1", []string{"C1"}, "s1")
	assert.ErrorIs(t, err, ErrNotLockHolder)
}
