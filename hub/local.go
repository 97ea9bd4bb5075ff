package hub

import (
	"context"
	"log/slog"
	"sync"

	"chat-mesh/domain"
)

// LocalHub is the in-process topic registry: a concurrency-safe mapping
// from chat id to the set of live subscriptions. Topics are created on
// demand and garbage-collected when their last subscriber leaves.
type LocalHub struct {
	log    *slog.Logger
	buffer int

	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

func NewLocalHub(log *slog.Logger, buffer int) *LocalHub {
	return &LocalHub{
		log:    log,
		buffer: buffer,
		topics: make(map[string]map[*Subscription]struct{}),
	}
}

// Publish delivers to every subscriber currently on the topic. Delivery
// happens under the read lock, which serializes publishes against
// unsubscription: a subscription can never be closed mid-delivery.
// A subscriber with a full buffer misses this notification only.
func (h *LocalHub) Publish(_ context.Context, message domain.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[message.ChatID] {
		if !sub.deliver(message) {
			h.log.Debug("live notification dropped, subscriber buffer full",
				"chat_id", message.ChatID, "message_id", message.ID)
		}
	}
}

func (h *LocalHub) Subscribe(chatID string) *Subscription {
	sub := newSubscription(chatID, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.topics[chatID]; !ok {
		h.topics[chatID] = make(map[*Subscription]struct{})
	}
	h.topics[chatID][sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscription and closes its channel. It leaves
// no empty topic behind so the registry does not grow with dead chats.
func (h *LocalHub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.remove(sub)
}

// remove reports whether the subscription was still registered, so a
// wrapping backend can keep its own per-topic accounting exact across
// repeated Unsubscribe calls with the same handle.
func (h *LocalHub) remove(sub *Subscription) bool {
	h.mu.Lock()
	removed := false
	if subs, ok := h.topics[sub.chatID]; ok {
		if _, member := subs[sub]; member {
			delete(subs, sub)
			removed = true
			if len(subs) == 0 {
				delete(h.topics, sub.chatID)
			}
		}
	}
	h.mu.Unlock()
	sub.close()
	return removed
}

func (h *LocalHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.topics {
		for sub := range subs {
			sub.close()
		}
	}
	h.topics = make(map[string]map[*Subscription]struct{})
	return nil
}

// subscriberCount is used by tests and the redis backend's refcounting.
func (h *LocalHub) subscriberCount(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[chatID])
}
