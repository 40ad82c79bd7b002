// Package hub fans seat-state changes out to every session watching a
// showtime. Delivery is best-effort and at-least-once: a subscriber gets a
// full snapshot on join and then deltas in commit order for as long as it
// stays connected; a subscriber that cannot keep up is dropped rather than
// allowed to stall the publisher. Clients self-correct from the next
// snapshot after a reconnect.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cinebook/seat-reservation/internal/model"
)

// subscriberBuffer is the per-subscriber queue depth. A subscriber whose
// queue is full at publish time is disconnected.
const subscriberBuffer = 64

// Event is one message on a subscriber's channel: either a full snapshot
// (always the first message after join) or a single delta.
type Event struct {
	Snapshot *model.SeatSnapshot `json:"snapshot,omitempty"`
	Delta    *model.SeatDelta    `json:"delta,omitempty"`
}

// relayEnvelope wraps a delta published on the Redis relay channel so each
// instance can skip messages it originated itself.
type relayEnvelope struct {
	Origin string          `json:"origin"`
	Delta  model.SeatDelta `json:"delta"`
}

// Subscriber is one connected viewer of one showtime. Read events from C
// until it is closed; a closed channel means the hub dropped the
// subscription (slow consumer or hub shutdown) and the client should
// resubscribe.
type Subscriber struct {
	ID         string
	ShowtimeID string
	C          <-chan Event

	ch chan Event
}

// SnapshotSource provides the full-map view primed onto every new
// subscription. Implemented by the seat store.
type SnapshotSource interface {
	Snapshot(ctx context.Context, showtimeID string) (model.SeatSnapshot, error)
}

type room struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// Hub is the per-showtime broadcast fan-out. With a Redis client attached
// it additionally relays every delta over a `showtime:<id>` channel so
// other server instances can forward it to their own subscribers.
type Hub struct {
	source     SnapshotSource
	rdb        *redis.Client
	instanceID string

	mu    sync.RWMutex
	rooms map[string]*room
}

// New builds a hub over the given snapshot source. rdb may be nil; the hub
// then fans out to local subscribers only.
func New(source SnapshotSource, rdb *redis.Client) *Hub {
	return &Hub{
		source:     source,
		rdb:        rdb,
		instanceID: uuid.NewString(),
		rooms:      make(map[string]*room),
	}
}

func (h *Hub) room(showtimeID string) *room {
	h.mu.RLock()
	r, ok := h.rooms[showtimeID]
	h.mu.RUnlock()
	if ok {
		return r
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok = h.rooms[showtimeID]; ok {
		return r
	}
	r = &room{subs: make(map[*Subscriber]struct{})}
	h.rooms[showtimeID] = r
	return r
}

// Subscribe registers a viewer for one showtime and primes its channel
// with a full snapshot before any delta is delivered on it.
func (h *Hub) Subscribe(ctx context.Context, showtimeID string) (*Subscriber, error) {
	snap, err := h.source.Snapshot(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	sub := &Subscriber{
		ID:         uuid.NewString(),
		ShowtimeID: showtimeID,
		ch:         make(chan Event, subscriberBuffer),
	}
	sub.C = sub.ch

	r := h.room(showtimeID)
	r.mu.Lock()
	sub.ch <- Event{Snapshot: &snap}
	r.subs[sub] = struct{}{}
	r.mu.Unlock()
	return sub, nil
}

// Unsubscribe removes the viewer and closes its channel. Safe to call
// after the hub already dropped the subscriber.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	r := h.room(sub.ShowtimeID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub]; ok {
		delete(r.subs, sub)
		close(sub.ch)
	}
}

// SeatChanged implements store.Notifier. The store calls it while the
// affected seat's slot is held, so per-seat delivery order equals commit
// order for every locally connected subscriber.
func (h *Hub) SeatChanged(delta model.SeatDelta) {
	h.deliver(delta)
	if h.rdb != nil {
		h.relay(delta)
	}
}

func (h *Hub) deliver(delta model.SeatDelta) {
	r := h.room(delta.ShowtimeID)
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.subs {
		select {
		case sub.ch <- Event{Delta: &delta}:
		default:
			// Slow consumer: drop it instead of blocking the store.
			delete(r.subs, sub)
			close(sub.ch)
		}
	}
}

func (h *Hub) relay(delta model.SeatDelta) {
	body, err := json.Marshal(relayEnvelope{Origin: h.instanceID, Delta: delta})
	if err != nil {
		log.Printf("hub: marshal relay envelope: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()
	if err := h.rdb.Publish(ctx, relayChannel(delta.ShowtimeID), body).Err(); err != nil {
		log.Printf("hub: relay publish failed: %v", err)
	}
}

// RunRelay subscribes to the Redis relay channels and forwards deltas
// published by other instances to local subscribers. Blocks until ctx is
// cancelled; a no-op when the hub has no Redis client.
func (h *Hub) RunRelay(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	pubsub := h.rdb.PSubscribe(ctx, relayChannelPattern)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("hub: bad relay payload: %v", err)
				continue
			}
			if env.Origin == h.instanceID {
				continue // already delivered locally
			}
			h.deliver(env.Delta)
		}
	}
}
