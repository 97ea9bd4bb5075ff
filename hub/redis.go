package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"chat-mesh/domain"

	"github.com/google/uuid"
	radix "github.com/mediocregopher/radix/v3"
)

const pubsubBuffer = 1024

// RedisHub is the broker-backed topic registry for multi-instance
// deployments. Every publish goes through a Redis channel named after
// the chat; the pub/sub read loop feeds the embedded LocalHub, so local
// subscribers see the same order every instance sees.
//
// Degradation rules: if Redis cannot be dialed at startup the caller
// should run a LocalHub instead (see NewHub in cmd). If Redis breaks
// later, publishes fall back to direct local delivery and the condition
// is logged; the service keeps running.
type RedisHub struct {
	log    *slog.Logger
	local  *LocalHub
	pool   radix.Client
	pubsub radix.PubSubConn
	msgCh  chan radix.PubSubMessage
	done   chan struct{}

	mu       sync.Mutex
	refs     map[string]int
	degraded bool
}

func NewRedisHub(log *slog.Logger, addr string, buffer int, poolSize int) (*RedisHub, error) {
	pool, err := radix.NewPool("tcp", addr, poolSize)
	if err != nil {
		return nil, err
	}
	pubsub, err := radix.PersistentPubSubWithOpts("tcp", addr)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	h := &RedisHub{
		log:    log,
		local:  NewLocalHub(log, buffer),
		pool:   pool,
		pubsub: pubsub,
		msgCh:  make(chan radix.PubSubMessage, pubsubBuffer),
		done:   make(chan struct{}),
		refs:   make(map[string]int),
	}
	go h.readLoop()
	return h, nil
}

func topicChannel(chatID string) string {
	return "chat:" + chatID
}

// wireMessage is the payload exchanged over the broker.
type wireMessage struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// Publish sends the message through Redis; local delivery happens when
// it echoes back on the subscribed channel. When the broker is degraded
// the message is handed to the local registry directly, so subscribers
// on this instance keep receiving (at-least-once overall).
func (h *RedisHub) Publish(ctx context.Context, message domain.Message) {
	payload, err := json.Marshal(wireMessage{
		ID:        message.ID.String(),
		ChatID:    message.ChatID,
		UserID:    message.UserID,
		Content:   message.Content,
		CreatedAt: message.CreatedAt.UnixNano(),
	})
	if err != nil {
		h.log.Error("broker payload marshal failed", "error", err)
		return
	}

	if h.isDegraded() {
		h.local.Publish(ctx, message)
		return
	}
	err = h.pool.Do(radix.Cmd(nil, "PUBLISH", topicChannel(message.ChatID), string(payload)))
	if err != nil {
		h.log.Warn("broker publish failed, delivering locally", "error", err,
			"chat_id", message.ChatID)
		h.local.Publish(ctx, message)
	}
}

func (h *RedisHub) Subscribe(chatID string) *Subscription {
	sub := h.local.Subscribe(chatID)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs[chatID]++
	if h.refs[chatID] == 1 {
		if err := h.pubsub.Subscribe(h.msgCh, topicChannel(chatID)); err != nil {
			h.log.Warn("broker subscribe failed, falling back to local-only delivery",
				"error", err, "chat_id", chatID)
			h.degraded = true
		}
	}
	return sub
}

// Unsubscribe is idempotent: the refcount only moves when this handle
// was still registered, so releasing one subscription twice can never
// tear down the broker channel under another live subscriber.
func (h *RedisHub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	if !h.local.remove(sub) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs[sub.chatID] == 0 {
		return
	}
	h.refs[sub.chatID]--
	if h.refs[sub.chatID] == 0 {
		delete(h.refs, sub.chatID)
		if err := h.pubsub.Unsubscribe(h.msgCh, topicChannel(sub.chatID)); err != nil {
			h.log.Warn("broker unsubscribe failed", "error", err, "chat_id", sub.chatID)
		}
	}
}

func (h *RedisHub) Close() error {
	close(h.done)
	_ = h.pubsub.Close()
	_ = h.pool.Close()
	return h.local.Close()
}

func (h *RedisHub) isDegraded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.degraded
}

// readLoop turns broker echoes back into local deliveries.
func (h *RedisHub) readLoop() {
	ctx := context.Background()
	for {
		select {
		case <-h.done:
			return
		case raw := <-h.msgCh:
			var wire wireMessage
			if err := json.Unmarshal(raw.Message, &wire); err != nil {
				h.log.Warn("dropping malformed broker payload",
					"channel", raw.Channel, "error", err)
				continue
			}
			id, err := uuid.Parse(wire.ID)
			if err != nil {
				h.log.Warn("dropping broker payload with bad id", "error", err)
				continue
			}
			h.local.Publish(ctx, domain.Message{
				ID:        id,
				ChatID:    wire.ChatID,
				UserID:    wire.UserID,
				Content:   wire.Content,
				CreatedAt: time.Unix(0, wire.CreatedAt).UTC(),
			})
		}
	}
}
