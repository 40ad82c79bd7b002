package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/seat-reservation/internal/hub"
	"github.com/cinebook/seat-reservation/internal/model"
	"github.com/cinebook/seat-reservation/internal/store"
)

func lockSeat(t *testing.T, st *store.SeatStore, showtime, seat, holder string) {
	t.Helper()
	_, err := st.ApplyTransition(context.Background(), showtime, seat,
		store.Expect{State: model.SeatAvailable}, model.SeatPending,
		model.SeatMeta{HolderID: holder, LockID: "lk-" + seat, ExpiresAt: time.Now().Add(time.Minute)}, "lock")
	require.NoError(t, err)
}

func recvEvent(t *testing.T, c <-chan hub.Event) hub.Event {
	t.Helper()
	select {
	case ev, ok := <-c:
		require.True(t, ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return hub.Event{}
	}
}

func TestSubscribe_SnapshotFirst(t *testing.T) {
	st := store.New(nil)
	h := hub.New(st, nil)
	st.SetNotifier(h)

	lockSeat(t, st, "show-1", "B4", "s1")

	sub, err := h.Subscribe(context.Background(), "show-1")
	require.NoError(t, err)
	defer h.Unsubscribe(sub)

	ev := recvEvent(t, sub.C)
	require.NotNil(t, ev.Snapshot)
	assert.Nil(t, ev.Delta)
	assert.Equal(t, []string{"B4"}, ev.Snapshot.PendingSeats)
}

func TestDeltasArriveInCommitOrder(t *testing.T) {
	st := store.New(nil)
	h := hub.New(st, nil)
	st.SetNotifier(h)
	ctx := context.Background()

	sub, err := h.Subscribe(ctx, "show-1")
	require.NoError(t, err)
	defer h.Unsubscribe(sub)
	recvEvent(t, sub.C) // snapshot

	lockSeat(t, st, "show-1", "A1", "s1")
	_, err = st.ApplyTransition(ctx, "show-1", "A1",
		store.Expect{State: model.SeatPending, HolderID: "s1"}, model.SeatBooked,
		model.SeatMeta{BookingID: "bk-1"}, "commit")
	require.NoError(t, err)

	first := recvEvent(t, sub.C)
	require.NotNil(t, first.Delta)
	assert.Equal(t, "PENDING", first.Delta.NewState)
	assert.Equal(t, "lock", first.Delta.Cause)

	second := recvEvent(t, sub.C)
	require.NotNil(t, second.Delta)
	assert.Equal(t, "BOOKED", second.Delta.NewState)
	assert.Equal(t, "bk-1", second.Delta.BookingID)
}

func TestDeltasScopedToShowtime(t *testing.T) {
	st := store.New(nil)
	h := hub.New(st, nil)
	st.SetNotifier(h)
	ctx := context.Background()

	sub, err := h.Subscribe(ctx, "show-1")
	require.NoError(t, err)
	defer h.Unsubscribe(sub)
	recvEvent(t, sub.C)

	lockSeat(t, st, "show-2", "A1", "s1")

	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event for another showtime: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	st := store.New(nil)
	h := hub.New(st, nil)

	sub, err := h.Subscribe(context.Background(), "show-1")
	require.NoError(t, err)
	recvEvent(t, sub.C)

	h.Unsubscribe(sub)
	_, ok := <-sub.C
	assert.False(t, ok)

	// Double unsubscribe must not panic.
	h.Unsubscribe(sub)
}

func TestSlowSubscriberDropped(t *testing.T) {
	st := store.New(nil)
	h := hub.New(st, nil)
	st.SetNotifier(h)
	ctx := context.Background()

	slow, err := h.Subscribe(ctx, "show-1")
	require.NoError(t, err)
	live, err := h.Subscribe(ctx, "show-1")
	require.NoError(t, err)
	defer h.Unsubscribe(live)
	recvEvent(t, live.C)

	// The slow subscriber never reads. Its buffer still holds the
	// snapshot, so the 64th delta finds it full and drops it; the live
	// subscriber consumed its snapshot and exactly fits all 64.
	for i := 0; i < 64; i++ {
		lockSeat(t, st, "show-1", string(rune('A'+i/10))+string(rune('0'+i%10)), "s1")
	}

	deadline := time.After(time.Second)
	closed := false
	for !closed {
		select {
		case _, ok := <-slow.C:
			if !ok {
				closed = true
			}
		case <-deadline:
			t.Fatal("slow subscriber was never dropped")
		}
	}

	// The healthy subscriber keeps receiving.
	ev := recvEvent(t, live.C)
	require.NotNil(t, ev.Delta)
}
