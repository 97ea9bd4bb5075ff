package repositories

import (
	"fmt"
	"log/slog"
	"testing"

	apperrors "chat-mesh/errors"

	"github.com/stretchr/testify/require"
)

func Test_Append_And_List_In_Creation_Order(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default(), 0)
	chatID := "chat-1"

	// Given three appended messages
	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		_, err := repository.Append(chatID, "u1", content)
		req.NoError(err)
	}

	// Then they come back ascending, never reordered
	messages, err := repository.ListByChat(chatID, 0, 0)
	req.NoError(err)
	req.Len(messages, len(contents))
	for i, message := range messages {
		req.Equal(contents[i], message.Content)
		req.Equal(chatID, message.ChatID)
		if i > 0 {
			req.False(message.CreatedAt.Before(messages[i-1].CreatedAt))
		}
	}
}

func Test_Append_Rejects_Empty_Content(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default(), 0)

	_, err := repository.Append("chat-1", "u1", "")

	var validation apperrors.ValidationError
	req.ErrorAs(err, &validation)
	req.Equal("content", validation.Field)
}

func Test_Rapid_Succession_Retains_Submission_Order(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default(), 0)
	chatID := "chat-1"

	// Given messages appended as fast as possible, timestamps may collide
	total := 60
	for i := 0; i < total; i++ {
		_, err := repository.Append(chatID, "u1", fmt.Sprintf("message %03d", i))
		req.NoError(err)
	}

	// Then ties are broken by insertion sequence, never reshuffled
	messages, err := repository.ListByChat(chatID, total, 0)
	req.NoError(err)
	req.Len(messages, total)
	for i, message := range messages {
		req.Equal(fmt.Sprintf("message %03d", i), message.Content)
	}
}

func Test_List_Pagination(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default(), 0)
	chatID := "chat-1"

	for i := 0; i < 5; i++ {
		_, err := repository.Append(chatID, "u1", fmt.Sprintf("message %d", i))
		req.NoError(err)
	}

	page, err := repository.ListByChat(chatID, 2, 0)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("message 0", page[0].Content)

	page, err = repository.ListByChat(chatID, 2, 2)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("message 2", page[0].Content)

	page, err = repository.ListByChat(chatID, 2, 4)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("message 4", page[0].Content)
}

func Test_List_Applies_Default_Limit(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default(), 0)
	chatID := "chat-1"

	for i := 0; i < DefaultHistoryLimit+10; i++ {
		_, err := repository.Append(chatID, "u1", "hello")
		req.NoError(err)
	}

	messages, err := repository.ListByChat(chatID, 0, 0)
	req.NoError(err)
	req.Len(messages, DefaultHistoryLimit)
}

func Test_List_Caps_Oversized_Limit(t *testing.T) {
	req := require.New(t)
	maxLimit := 3
	repository := NewMessageRepository(newTestDB(t), slog.Default(), maxLimit)
	chatID := "chat-1"

	for i := 0; i < 10; i++ {
		_, err := repository.Append(chatID, "u1", "hello")
		req.NoError(err)
	}

	messages, err := repository.ListByChat(chatID, 100, 0)
	req.NoError(err)
	req.Len(messages, maxLimit)
}

func Test_List_Rejects_Negative_Pagination(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default(), 0)

	var validation apperrors.ValidationError

	_, err := repository.ListByChat("chat-1", -1, 0)
	req.ErrorAs(err, &validation)
	req.Equal("limit", validation.Field)

	_, err = repository.ListByChat("chat-1", 0, -1)
	req.ErrorAs(err, &validation)
	req.Equal("offset", validation.Field)
}

func Test_Logs_Are_Isolated_Per_Chat(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default(), 0)

	_, err := repository.Append("chat-1", "u1", "for chat one")
	req.NoError(err)
	_, err = repository.Append("chat-2", "u2", "for chat two")
	req.NoError(err)

	messages, err := repository.ListByChat("chat-1", 0, 0)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("for chat one", messages[0].Content)
}
