// Package hub decouples message producers from live consumers through
// per-chat topics. Delivery is best-effort: a message is only ever lost
// to a live notification, never to storage, which happens before any
// publish and stays authoritative.
package hub

import (
	"context"

	"chat-mesh/domain"
)

// Hub fans newly stored messages out to every live subscriber of a chat.
//
// Two backends implement it: LocalHub (single process) and RedisHub
// (multi-instance, Redis pub/sub). Which one runs is decided once at
// startup; a broken broker degrades to local delivery instead of
// failing the service.
type Hub interface {
	// Publish delivers the message to all current subscribers of its chat.
	// It never blocks on a slow consumer and is a no-op without subscribers.
	Publish(ctx context.Context, message domain.Message)
	// Subscribe registers a new listener on the chat's topic. The returned
	// subscription never replays history; callers fetch it separately.
	Subscribe(chatID string) *Subscription
	// Unsubscribe releases the subscription's resources. Idempotent.
	Unsubscribe(sub *Subscription)
	Close() error
}
