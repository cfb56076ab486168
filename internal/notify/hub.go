package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"loadmatch/internal/domain/models"
	"loadmatch/internal/utils"
)

const listenerBuffer = 16

// Hub holds one broker subscription per process and fans notifications out to the
// listeners of their recipient. Slow listeners lose messages; they catch up by polling.
type Hub struct {
	sub message.Subscriber

	mu        sync.RWMutex
	listeners map[int64]map[chan models.Notification]struct{}
}

func NewHub(sub message.Subscriber) *Hub {
	return &Hub{sub: sub, listeners: map[int64]map[chan models.Notification]struct{}{}}
}

// Start subscribes to the topic and consumes it in the background until ctx is done or
// the subscriber closes.
func (h *Hub) Start(ctx context.Context) error {
	msgs, err := h.sub.Subscribe(ctx, Topic)
	if err != nil {
		return err
	}
	go h.consume(ctx, msgs)
	return nil
}

func (h *Hub) consume(ctx context.Context, msgs <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			var n models.Notification
			if err := json.Unmarshal(m.Payload, &n); err != nil {
				utils.LogError(ctx, "notify", "hub_decode", err, "message_uuid", m.UUID)
				m.Ack()
				continue
			}
			pushed := h.Broadcast(n)
			utils.LogEvent(ctx, "notify", "deliver", "notification delivered",
				"notification_id", n.ID, "user_id", n.UserID, "kind", n.Kind, "live_listeners", pushed)
			m.Ack()
		}
	}
}

// Listen registers a listener for userID. Call the returned func to unregister.
func (h *Hub) Listen(userID int64) (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, listenerBuffer)
	h.mu.Lock()
	set, ok := h.listeners[userID]
	if !ok {
		set = map[chan models.Notification]struct{}{}
		h.listeners[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners[userID], ch)
			if len(h.listeners[userID]) == 0 {
				delete(h.listeners, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Broadcast hands n to the recipient's listeners without blocking and returns how many
// took it. A full listener misses the push and catches up by polling.
func (h *Hub) Broadcast(n models.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	pushed := 0
	for ch := range h.listeners[n.UserID] {
		select {
		case ch <- n:
			pushed++
		default:
		}
	}
	return pushed
}

func (h *Hub) listenerCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[userID])
}
