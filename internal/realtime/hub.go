// Package realtime implements the continuous-subscription read model: a
// caller subscribes to a topic, receives change events on a channel, and must
// close the subscription when it leaves the screen that opened it. Fanout
// between server instances rides a single Redis pub/sub channel.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/connectsphere/connectsphere/internal/logging"
)

const fanoutChannel = "connectsphere:events"

// subscriptionBuffer bounds how far a slow consumer may lag before events
// are dropped. Events are change notifications, not the data itself, so a
// dropped one costs a refresh, not a lost write.
const subscriptionBuffer = 16

// Topic constructors. Services and the socket layer agree on these names.
func ChatTopic(chatID string) string { return "chat:" + chatID }

func PresenceTopic(userID uuid.UUID) string { return "presence:" + userID.String() }

func InboxTopic(userID uuid.UUID) string { return "inbox:" + userID.String() }

// Event is one change notification on a watched topic.
type Event struct {
	Topic   string          `json:"topic"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Subscription is a caller-held handle. The caller owns the teardown: a
// subscription that is never closed keeps receiving events and leaks.
type Subscription struct {
	topic string
	c     chan Event
	hub   *Hub
	once  sync.Once
}

// C is the event stream. It is closed by Close.
func (s *Subscription) C() <-chan Event {
	return s.c
}

// Topic returns the watched topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Close detaches the subscription from the hub and closes the channel. Safe
// to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
		close(s.c)
	})
}

// Hub routes events from publishers to local subscribers and mirrors them
// through Redis so every server instance sees every event.
type Hub struct {
	redis  *redis.Client
	logger *logging.Logger

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub(redisClient *redis.Client, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default
	}
	return &Hub{
		redis:  redisClient,
		logger: logger,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers interest in a topic. The returned handle must be
// closed when the watcher goes away.
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic: topic,
		c:     make(chan Event, subscriptionBuffer),
		hub:   h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*Subscription]struct{})
	}
	h.subs[topic][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.topic)
		}
	}
}

// Publish marshals the payload and sends the event through Redis. Local
// dispatch happens when the event comes back on the fanout channel, so
// delivery order is the same on every instance. Without Redis (tests) the
// event dispatches directly.
func (h *Hub) Publish(ctx context.Context, topic, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling event payload: %w", err)
	}
	ev := Event{Topic: topic, Kind: kind, Payload: raw}

	if h.redis == nil {
		h.dispatch(ev)
		return nil
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := h.redis.Publish(ctx, fanoutChannel, data).Err(); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

// Run consumes the Redis fanout channel and dispatches to local subscribers
// until the context is cancelled. It is a no-op without Redis.
func (h *Hub) Run(ctx context.Context) error {
	if h.redis == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	pubsub := h.redis.Subscribe(ctx, fanoutChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.logger.Warn("Dropping malformed event", map[string]interface{}{"error": err.Error()})
				continue
			}
			h.dispatch(ev)
		}
	}
}

func (h *Hub) dispatch(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.Topic] {
		select {
		case sub.c <- ev:
		default:
			// Consumer is saturated; it resynchronizes on its next event.
			h.logger.Debug("Dropping event for slow subscriber", map[string]interface{}{"topic": ev.Topic})
		}
	}
}

// SubscriberCount reports how many handles watch a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
