package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/seat-reservation/internal/model"
	"github.com/cinebook/seat-reservation/internal/store"
)

type staticSource struct {
	seats map[string]string
}

func (s *staticSource) BookedSeatsByShowtime(_ context.Context, _ string) (map[string]string, error) {
	return s.seats, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	deltas []model.SeatDelta
}

func (n *recordingNotifier) SeatChanged(d model.SeatDelta) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deltas = append(n.deltas, d)
}

func (n *recordingNotifier) forSeat(seatID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var states []string
	for _, d := range n.deltas {
		if d.SeatID == seatID {
			states = append(states, d.NewState)
		}
	}
	return states
}

func TestApplyTransition_LockThenConflict(t *testing.T) {
	st := store.New(nil)
	ctx := context.Background()

	seat, err := st.ApplyTransition(ctx, "show-1", "B4",
		store.Expect{State: model.SeatAvailable}, model.SeatPending,
		model.SeatMeta{HolderID: "s1", LockID: "lk-1", ExpiresAt: time.Now().Add(time.Minute)}, "lock")
	require.NoError(t, err)
	assert.Equal(t, model.SeatPending, seat.State)
	assert.Equal(t, "s1", seat.HolderID)

	// A second session expecting Available must observe the conflict.
	_, err = st.ApplyTransition(ctx, "show-1", "B4",
		store.Expect{State: model.SeatAvailable}, model.SeatPending,
		model.SeatMeta{HolderID: "s2", LockID: "lk-2"}, "lock")
	var conflict *store.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, model.SeatPending, conflict.Observed.State)
	assert.Equal(t, "s1", conflict.Observed.HolderID)
}

func TestApplyTransition_HolderExpectation(t *testing.T) {
	st := store.New(nil)
	ctx := context.Background()

	_, err := st.ApplyTransition(ctx, "show-1", "C7",
		store.Expect{State: model.SeatAvailable}, model.SeatPending,
		model.SeatMeta{HolderID: "s1", LockID: "lk-1", ExpiresAt: time.Now().Add(time.Minute)}, "lock")
	require.NoError(t, err)

	// Release by the wrong holder fails without mutating the seat.
	_, err = st.ApplyTransition(ctx, "show-1", "C7",
		store.Expect{State: model.SeatPending, HolderID: "s2"}, model.SeatAvailable,
		model.SeatMeta{}, "release")
	var conflict *store.ConflictError
	require.ErrorAs(t, err, &conflict)

	seat, err := st.Seat(ctx, "show-1", "C7")
	require.NoError(t, err)
	assert.Equal(t, model.SeatPending, seat.State)
	assert.Equal(t, "s1", seat.HolderID)

	// The actual holder succeeds.
	seat, err = st.ApplyTransition(ctx, "show-1", "C7",
		store.Expect{State: model.SeatPending, HolderID: "s1"}, model.SeatAvailable,
		model.SeatMeta{}, "release")
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, seat.State)
}

func TestApplyTransition_ExpiredByExpectation(t *testing.T) {
	st := store.New(nil)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := st.ApplyTransition(ctx, "show-1", "D2",
		store.Expect{State: model.SeatAvailable}, model.SeatPending,
		model.SeatMeta{HolderID: "s1", LockID: "lk-1", ExpiresAt: now.Add(time.Minute)}, "lock")
	require.NoError(t, err)

	// A sweep that scanned before the lock was granted must not reclaim a
	// live lock: the expiry expectation fails.
	_, err = st.ApplyTransition(ctx, "show-1", "D2",
		store.Expect{State: model.SeatPending, HolderID: "s1", ExpiredBy: now}, model.SeatAvailable,
		model.SeatMeta{}, "expiry")
	var conflict *store.ConflictError
	require.ErrorAs(t, err, &conflict)

	// Once the expiry horizon passes the lock's expiry, the reclaim goes
	// through.
	_, err = st.ApplyTransition(ctx, "show-1", "D2",
		store.Expect{State: model.SeatPending, HolderID: "s1", ExpiredBy: now.Add(2 * time.Minute)},
		model.SeatAvailable, model.SeatMeta{}, "expiry")
	require.NoError(t, err)
}

func TestApplyTransition_ExtendKeepsLockID(t *testing.T) {
	st := store.New(nil)
	ctx := context.Background()

	_, err := st.ApplyTransition(ctx, "show-1", "A1",
		store.Expect{State: model.SeatAvailable}, model.SeatPending,
		model.SeatMeta{HolderID: "s1", LockID: "lk-1", ExpiresAt: time.Now().Add(time.Minute)}, "lock")
	require.NoError(t, err)

	later := time.Now().Add(5 * time.Minute)
	seat, err := st.ApplyTransition(ctx, "show-1", "A1",
		store.Expect{State: model.SeatPending, HolderID: "s1"}, model.SeatPending,
		model.SeatMeta{HolderID: "s1", ExpiresAt: later}, "lock")
	require.NoError(t, err)
	assert.Equal(t, "lk-1", seat.LockID, "extend must not mint a second lock")
	assert.True(t, seat.ExpiresAt.Equal(later))
}

func TestSeedFromBookedSource(t *testing.T) {
	st := store.New(&staticSource{seats: map[string]string{"E5": "bk-1"}})
	ctx := context.Background()

	snap, err := st.Snapshot(ctx, "show-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"E5"}, snap.BookedSeats)
	assert.Empty(t, snap.PendingSeats)

	// A seeded booked seat cannot be locked.
	_, err = st.ApplyTransition(ctx, "show-9", "E5",
		store.Expect{State: model.SeatAvailable}, model.SeatPending,
		model.SeatMeta{HolderID: "s1", LockID: "lk-1"}, "lock")
	var conflict *store.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "bk-1", conflict.Observed.BookingID)
}

func TestAtMostOneHolderUnderContention(t *testing.T) {
	st := store.New(nil)
	ctx := context.Background()

	const sessions = 64
	var wg sync.WaitGroup
	var won int32
	var mu sync.Mutex
	winners := []string{}

	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			holder := string(rune('a' + n%26))
			_, err := st.ApplyTransition(ctx, "show-1", "F1",
				store.Expect{State: model.SeatAvailable}, model.SeatPending,
				model.SeatMeta{HolderID: holder, LockID: "lk", ExpiresAt: time.Now().Add(time.Minute)}, "lock")
			if err == nil {
				mu.Lock()
				won++
				winners = append(winners, holder)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, won, "exactly one session may win the seat")
	seat, err := st.Seat(ctx, "show-1", "F1")
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, winners[0], seat.HolderID)
}

func TestNotifierSeesDeltasInCommitOrder(t *testing.T) {
	st := store.New(nil)
	n := &recordingNotifier{}
	st.SetNotifier(n)
	ctx := context.Background()

	_, err := st.ApplyTransition(ctx, "show-1", "A1",
		store.Expect{State: model.SeatAvailable}, model.SeatPending,
		model.SeatMeta{HolderID: "s1", LockID: "lk-1", ExpiresAt: time.Now().Add(time.Minute)}, "lock")
	require.NoError(t, err)
	_, err = st.ApplyTransition(ctx, "show-1", "A1",
		store.Expect{State: model.SeatPending, HolderID: "s1"}, model.SeatBooked,
		model.SeatMeta{BookingID: "bk-1"}, "commit")
	require.NoError(t, err)
	_, err = st.ApplyTransition(ctx, "show-1", "A1",
		store.Expect{State: model.SeatBooked, BookingID: "bk-1"}, model.SeatAvailable,
		model.SeatMeta{}, "cancel")
	require.NoError(t, err)

	assert.Equal(t, []string{"PENDING", "BOOKED", "AVAILABLE"}, n.forSeat("A1"))
}

func TestSeatsHeldBy(t *testing.T) {
	st := store.New(nil)
	ctx := context.Background()
	exp := time.Now().Add(time.Minute)

	for _, seat := range []string{"C2", "C1"} {
		_, err := st.ApplyTransition(ctx, "show-1", seat,
			store.Expect{State: model.SeatAvailable}, model.SeatPending,
			model.SeatMeta{HolderID: "s1", LockID: "lk", ExpiresAt: exp}, "lock")
		require.NoError(t, err)
	}
	_, err := st.ApplyTransition(ctx, "show-1", "C3",
		store.Expect{State: model.SeatAvailable}, model.SeatPending,
		model.SeatMeta{HolderID: "s2", LockID: "lk", ExpiresAt: exp}, "lock")
	require.NoError(t, err)

	held, err := st.SeatsHeldBy(ctx, "show-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2"}, held, "sorted, own seats only")
}
