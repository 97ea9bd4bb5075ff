package api

import (
	"log/slog"

	"chat-mesh/hub"
	"chat-mesh/identity"
	"chat-mesh/services"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the query/mutation surface and the live feed.
func NewRouter(
	log *slog.Logger,
	service services.IChatService,
	broadcast hub.Hub,
	directory identity.Directory,
) *gin.Engine {
	handler := NewHandler(log, service)
	stream := NewStreamHandler(log, service, broadcast, directory)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", handler.Health)

	router.POST("/chats", handler.CreateChat)
	router.GET("/chats", handler.ListChats)
	router.GET("/chats/:id", handler.GetChat)
	router.POST("/chats/:id/join", handler.JoinChat)
	router.GET("/chats/:id/messages", handler.MessageHistory)
	router.POST("/chats/:id/messages", handler.SendMessage)
	router.GET("/chats/:id/stream", stream.Stream)

	router.GET("/users/:id/chats", handler.ListChatsByUser)

	return router
}
