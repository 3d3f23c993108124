package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Subscriber is one dashboard connection attached to a topic.
// Send must be safe for concurrent use; a returned error marks the
// subscriber dead and it is pruned after the current fan-out pass.
type Subscriber interface {
	Send(v any) error
	Close() error
}

// Hub is a per-topic subscriber registry with snapshot push.
// Topics are created on first subscribe and deleted when their last
// subscriber leaves. Isolation is per topic; no cross-topic locking.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[string]Subscriber // topic -> subID -> subscriber
	log    *slog.Logger
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		topics: make(map[string]map[string]Subscriber),
		log:    log.With("component", "realtime_hub"),
	}
}

// Subscribe adds sub to the topic and returns a subscription ID for
// Unsubscribe. If snapshot is non-nil it is sent immediately so late
// joiners see current state without waiting for the next publish.
// A failed snapshot send leaves the subscriber registered; it will be
// pruned on the next publish like any other dead connection.
func (h *Hub) Subscribe(topic string, sub Subscriber, snapshot any) string {
	subID := uuid.NewString()

	h.mu.Lock()
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[string]Subscriber)
	}
	h.topics[topic][subID] = sub
	h.mu.Unlock()

	h.log.Debug("subscriber added", "topic", topic, "sub_id", subID)

	if snapshot != nil {
		if err := sub.Send(snapshot); err != nil {
			h.log.Warn("snapshot send failed", "topic", topic, "sub_id", subID, "err", err)
		}
	}
	return subID
}

// Unsubscribe removes a subscription. The topic entry is deleted once
// its subscriber set is empty. Unknown topic/sub IDs are a no-op.
func (h *Hub) Unsubscribe(topic, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	if _, exists := subs[subID]; !exists {
		return
	}
	delete(subs, subID)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}

	h.log.Debug("subscriber removed", "topic", topic, "sub_id", subID)
}

// Publish sends payload to every subscriber currently in the topic.
// A send failure never aborts delivery to the remaining subscribers and
// never surfaces to the caller: the failing subscriber is closed and
// pruned once the fan-out pass completes.
func (h *Hub) Publish(topic string, payload any) {
	// Copy subscribers under read lock to avoid holding it during sends.
	h.mu.RLock()
	subs, ok := h.topics[topic]
	if !ok || len(subs) == 0 {
		h.mu.RUnlock()
		return
	}
	type target struct {
		id  string
		sub Subscriber
	}
	targets := make([]target, 0, len(subs))
	for id, s := range subs {
		targets = append(targets, target{id: id, sub: s})
	}
	h.mu.RUnlock()

	var dead []target
	for _, t := range targets {
		if err := t.sub.Send(payload); err != nil {
			h.log.Warn("send failed, pruning subscriber", "topic", topic, "sub_id", t.id, "err", err)
			dead = append(dead, t)
		}
	}

	for _, t := range dead {
		_ = t.sub.Close()
		h.Unsubscribe(topic, t.id)
	}
}

// SubscriberCount reports the current size of a topic's subscriber set.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close closes every subscriber and empties the hub.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic, subs := range h.topics {
		for id, s := range subs {
			_ = s.Close()
			delete(subs, id)
		}
		delete(h.topics, topic)
	}
}
