// Package api exposes the client-facing query/mutation surface over
// HTTP JSON, plus the per-chat WebSocket live feed.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"chat-mesh/domain"
	"chat-mesh/errors"
	"chat-mesh/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	log     *slog.Logger
	service services.IChatService
}

func NewHandler(log *slog.Logger, service services.IChatService) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	chat, err := h.service.CreateChat(c.Request.Context(), domain.CreateChatCommand{
		Name:           req.Name,
		CreatorID:      req.CreatorID,
		ParticipantIDs: req.Participants,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toChatResponse(chat))
}

func (h *Handler) GetChat(c *gin.Context) {
	detail, err := h.service.GetChatDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toChatDetailResponse(detail))
}

func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.service.ListChats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toChatResponses(chats))
}

func (h *Handler) ListChatsByUser(c *gin.Context) {
	chats, err := h.service.ListChatsByUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toChatResponses(chats))
}

func (h *Handler) JoinChat(c *gin.Context) {
	var req joinChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	chat, err := h.service.JoinChat(c.Request.Context(), domain.JoinChatCommand{
		ChatID: c.Param("id"),
		UserID: req.UserID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toChatResponse(chat))
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	message, err := h.service.SendMessage(c.Request.Context(), domain.SendMessageCommand{
		ChatID:  c.Param("id"),
		UserID:  req.UserID,
		Content: req.Content,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(message))
}

func (h *Handler) MessageHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	messages, err := h.service.MessageHistory(c.Request.Context(), domain.HistoryQuery{
		ChatID: c.Param("id"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageResponses(messages))
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	respondError(h.log, c, err)
}

func respondError(log *slog.Logger, c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
