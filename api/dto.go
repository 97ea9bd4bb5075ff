package api

import (
	"time"

	"chat-mesh/domain"

	"github.com/samber/lo"
)

type createChatRequest struct {
	Name         string   `json:"name" binding:"required"`
	CreatorID    string   `json:"creatorId" binding:"required"`
	Participants []string `json:"participants"`
}

type joinChatRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type sendMessageRequest struct {
	UserID  string `json:"userId" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type chatResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type userResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	Resolved    bool   `json:"resolved"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	UserID    string    `json:"userId"`
	ChatID    string    `json:"chatId"`
	CreatedAt time.Time `json:"createdAt"`
}

type messageViewResponse struct {
	messageResponse
	User userResponse `json:"user"`
}

type chatDetailResponse struct {
	chatResponse
	ParticipantUsers []userResponse        `json:"participantUsers"`
	Messages         []messageViewResponse `json:"messages"`
}

func toChatResponse(chat domain.Chat) chatResponse {
	return chatResponse{
		ID:           chat.ID,
		Name:         chat.Name,
		Participants: chat.Participants,
		CreatedAt:    chat.CreatedAt,
		UpdatedAt:    chat.UpdatedAt,
	}
}

func toChatResponses(chats []domain.Chat) []chatResponse {
	return lo.Map(chats, func(chat domain.Chat, _ int) chatResponse {
		return toChatResponse(chat)
	})
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Resolved:    user.Resolved,
	}
}

func toMessageResponse(message domain.Message) messageResponse {
	return messageResponse{
		ID:        message.ID.String(),
		Content:   message.Content,
		UserID:    message.UserID,
		ChatID:    message.ChatID,
		CreatedAt: message.CreatedAt,
	}
}

func toMessageResponses(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(message domain.Message, _ int) messageResponse {
		return toMessageResponse(message)
	})
}

func toChatDetailResponse(detail domain.ChatDetail) chatDetailResponse {
	return chatDetailResponse{
		chatResponse: toChatResponse(detail.Chat),
		ParticipantUsers: lo.Map(detail.Participants, func(user domain.User, _ int) userResponse {
			return toUserResponse(user)
		}),
		Messages: lo.Map(detail.Messages, func(view domain.MessageView, _ int) messageViewResponse {
			return messageViewResponse{
				messageResponse: toMessageResponse(view.Message),
				User:            toUserResponse(view.Sender),
			}
		}),
	}
}
