package repositories

import (
	stderrors "errors"
	"log/slog"
	"testing"

	apperrors "chat-mesh/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Create_Chat_Deduplicates_Participants(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(newTestDB(t), slog.Default())

	// When a chat is created with duplicated ids
	chat, err := repository.CreateChat("Team", []string{"u1", "u2", "u2", "u1", "u3"})

	// Then every id appears exactly once, first occurrence order kept
	req.NoError(err)
	req.NotEmpty(chat.ID)
	req.Equal([]string{"u1", "u2", "u3"}, chat.Participants)
	req.False(chat.CreatedAt.IsZero())
	req.Equal(chat.CreatedAt, chat.UpdatedAt)
}

func Test_Create_Chat_Rejects_Empty_Name(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(newTestDB(t), slog.Default())

	_, err := repository.CreateChat("", []string{"u1"})

	var validation apperrors.ValidationError
	req.ErrorAs(err, &validation)
	req.Equal("name", validation.Field)
}

func Test_Create_Chat_Rejects_Empty_Participants(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(newTestDB(t), slog.Default())

	_, err := repository.CreateChat("Team", nil)

	var validation apperrors.ValidationError
	req.ErrorAs(err, &validation)
	req.Equal("participants", validation.Field)
}

func Test_Get_Unknown_Chat(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(newTestDB(t), slog.Default())

	_, err := repository.GetChat("missing")

	var notFound apperrors.NotFoundError
	req.ErrorAs(err, &notFound)
	req.Equal("chat", notFound.Entity)
	req.Equal("missing", notFound.ID)
}

func Test_Get_Chat_Roundtrip(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(newTestDB(t), slog.Default())

	created, err := repository.CreateChat("Team", []string{"u1", "u2"})
	req.NoError(err)

	fetched, err := repository.GetChat(created.ID)
	req.NoError(err)
	req.Equal(created, fetched)
}

func Test_List_By_Participant_Most_Recently_Active_First(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(newTestDB(t), slog.Default())

	// Given two chats for u1 and one unrelated chat
	first, err := repository.CreateChat("First", []string{"u1", "u2"})
	req.NoError(err)
	second, err := repository.CreateChat("Second", []string{"u1", "u3"})
	req.NoError(err)
	_, err = repository.CreateChat("Other", []string{"u9"})
	req.NoError(err)

	// When the older chat sees new activity
	_, err = repository.AddParticipant(first.ID, "u4")
	req.NoError(err)

	// Then u1's chats come back most recently active first
	chats, err := repository.ListByParticipant("u1")
	req.NoError(err)
	req.Len(chats, 2)
	req.Equal(first.ID, chats[0].ID)
	req.Equal(second.ID, chats[1].ID)
}

func Test_List_By_Participant_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(newTestDB(t), slog.Default())

	chats, err := repository.ListByParticipant("nobody")
	req.NoError(err)
	req.Empty(chats)
}

func Test_List_Chats_Returns_All(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(newTestDB(t), slog.Default())

	_, err := repository.CreateChat("First", []string{"u1"})
	req.NoError(err)
	_, err = repository.CreateChat("Second", []string{"u2"})
	req.NoError(err)

	chats, err := repository.ListChats()
	req.NoError(err)
	req.Len(chats, 2)
}

func Test_Add_Participant_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(newTestDB(t), slog.Default())

	chat, err := repository.CreateChat("Team", []string{"u1"})
	req.NoError(err)

	// When the same user joins twice
	once, err := repository.AddParticipant(chat.ID, "u2")
	req.NoError(err)
	twice, err := repository.AddParticipant(chat.ID, "u2")
	req.NoError(err)

	// Then the participant list is identical
	req.Equal([]string{"u1", "u2"}, once.Participants)
	req.Equal(once.Participants, twice.Participants)

	// And the join is visible through the participant index
	chats, err := repository.ListByParticipant("u2")
	req.NoError(err)
	req.Len(chats, 1)
}

func Test_Add_Participant_Unknown_Chat(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(newTestDB(t), slog.Default())

	_, err := repository.AddParticipant("missing", "u1")

	var notFound apperrors.NotFoundError
	req.ErrorAs(err, &notFound)
}

func Test_Concurrent_Joins_Never_Lose_An_Update(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(newTestDB(t), slog.Default())

	chat, err := repository.CreateChat("Team", []string{"u1"})
	req.NoError(err)

	// When many users join concurrently, conflicting transactions retry
	joiners := []string{"u2", "u3", "u4", "u5", "u6"}
	done := make(chan error, len(joiners))
	for _, userID := range joiners {
		go func() {
			var err error
			for {
				_, err = repository.AddParticipant(chat.ID, userID)
				var conflict apperrors.ConflictError
				if !stderrors.As(err, &conflict) {
					break
				}
			}
			done <- err
		}()
	}
	for range joiners {
		req.NoError(<-done)
	}

	// Then every joiner is present exactly once
	final, err := repository.GetChat(chat.ID)
	req.NoError(err)
	req.Len(final.Participants, 1+len(joiners))
	for _, userID := range joiners {
		req.Contains(final.Participants, userID)
	}
}
