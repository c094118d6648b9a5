package notify

import (
	"sync"

	"pos-service/internal/util"

	"go.uber.org/zap"
)

// Subscriber is a live connection that receives order events.
// Send must not block indefinitely; transports set their own deadlines.
type Subscriber interface {
	Send(event interface{}) error
	Close() error
}

// Hub owns the set of connected subscribers for the orders channel.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]Subscriber
	logger *zap.Logger
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[uint64]Subscriber),
		logger: util.Logger("hub"),
	}
}

// Subscribe registers s and returns the handle used to remove it
func (h *Hub) Subscribe(s Subscriber) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.subs[id] = s
	util.NotificationSubscribers.Set(float64(len(h.subs)))
	return id
}

// Unsubscribe removes a subscriber. Unknown ids are ignored, so a handle
// pruned by Broadcast can still be unsubscribed by its transport.
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, id)
	util.NotificationSubscribers.Set(float64(len(h.subs)))
}

// Len returns the number of live subscribers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast sends event to every subscriber present when the call starts and
// returns how many accepted it. Subscribers whose send fails are removed and
// closed once the pass is over.
func (h *Hub) Broadcast(event interface{}) int {
	h.mu.Lock()
	snapshot := make(map[uint64]Subscriber, len(h.subs))
	for id, s := range h.subs {
		snapshot[id] = s
	}
	h.mu.Unlock()

	var failed []uint64
	delivered := 0
	for id, s := range snapshot {
		if err := s.Send(event); err != nil {
			h.logger.Warn("Dropping subscriber after failed send",
				zap.Uint64("subscriber_id", id),
				zap.Error(err))
			failed = append(failed, id)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, id := range failed {
			delete(h.subs, id)
		}
		util.NotificationSubscribers.Set(float64(len(h.subs)))
		h.mu.Unlock()

		for _, id := range failed {
			_ = snapshot[id].Close()
		}
	}

	util.NotificationsSentTotal.Add(float64(delivered))
	util.NotificationsDroppedTotal.Add(float64(len(failed)))
	return delivered
}

// CloseAll disconnects every subscriber, used on shutdown
func (h *Hub) CloseAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]Subscriber)
	util.NotificationSubscribers.Set(0)
	h.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
}
