package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"chat-mesh/domain"
	"chat-mesh/hub"
	"chat-mesh/identity"
	"chat-mesh/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamHandler serves the per-chat live feed: one WebSocket per open
// chat view, fed by a hub subscription. Each frame carries the message
// plus its resolved sender.
type StreamHandler struct {
	log       *slog.Logger
	service   services.IChatService
	broadcast hub.Hub
	directory identity.Directory
}

func NewStreamHandler(
	log *slog.Logger,
	service services.IChatService,
	broadcast hub.Hub,
	directory identity.Directory,
) *StreamHandler {
	return &StreamHandler{log: log, service: service, broadcast: broadcast, directory: directory}
}

type streamEvent struct {
	messageResponse
	User userResponse `json:"user"`
}

// Stream upgrades the request and pushes newly created messages for the
// chat until the client goes away. The subscription starts after the
// upgrade, so the feed never replays history; clients page history
// through the regular endpoint.
func (h *StreamHandler) Stream(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := h.service.GetChat(c.Request.Context(), chatID); err != nil {
		respondError(h.log, c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "chat_id", chatID, "error", err)
		return
	}

	sub := h.broadcast.Subscribe(chatID)
	defer h.broadcast.Unsubscribe(sub)

	closed := make(chan struct{})
	go h.readUntilClosed(conn, closed)
	h.writePump(conn, sub, closed)
}

// readUntilClosed drains the connection only to notice the disconnect;
// the live feed is one-directional, sends go through the HTTP endpoint.
func (h *StreamHandler) readUntilClosed(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, sub *hub.Subscription, closed <-chan struct{}) {
	defer conn.Close()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	// senders repeat within a chat, cache resolutions per connection
	senders := make(map[string]domain.User)

	for {
		select {
		case message, ok := <-sub.Messages():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(h.toEvent(senders, message)); err != nil {
				h.log.Debug("subscriber write failed, dropping connection",
					"chat_id", sub.ChatID(), "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *StreamHandler) toEvent(senders map[string]domain.User, message domain.Message) streamEvent {
	sender, ok := senders[message.UserID]
	if !ok {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		resolved, err := h.directory.Resolve(ctx, message.UserID)
		cancel()
		if err != nil {
			resolved = domain.UnknownUser(message.UserID)
		}
		// unresolved senders are not cached, the next frame retries
		if resolved.Resolved {
			senders[message.UserID] = resolved
		}
		sender = resolved
	}
	return streamEvent{
		messageResponse: toMessageResponse(message),
		User:            toUserResponse(sender),
	}
}
