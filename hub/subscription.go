package hub

import (
	"sync"

	"chat-mesh/domain"
)

// Subscription is one live listener on a chat's topic. It owns a bounded
// delivery buffer; the channel is closed on unsubscribe so consumers can
// range over it.
type Subscription struct {
	chatID    string
	messages  chan domain.Message
	closeOnce sync.Once
}

func newSubscription(chatID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	return &Subscription{
		chatID:   chatID,
		messages: make(chan domain.Message, buffer),
	}
}

func (s *Subscription) ChatID() string { return s.chatID }

// Messages yields the live feed for the subscribed chat, in publish order.
// The channel closes when the subscription is released.
func (s *Subscription) Messages() <-chan domain.Message { return s.messages }

// deliver pushes without blocking. A full buffer means this subscriber
// misses the notification; the caller decides how loudly to say so.
// Only called while the registry still holds the subscription, which
// keeps it ordered before the close in Unsubscribe.
func (s *Subscription) deliver(message domain.Message) bool {
	select {
	case s.messages <- message:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.messages)
	})
}
