//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"chat-mesh/domain"
	"chat-mesh/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatRepository interface {
	CreateChat(name string, participantIDs []string) (domain.Chat, error)
	GetChat(id string) (domain.Chat, error)
	ListChats() ([]domain.Chat, error)
	ListByParticipant(userID string) ([]domain.Chat, error)
	AddParticipant(chatID, userID string) (domain.Chat, error)
}

type ChatRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChatRepository(db *badger.DB, log *slog.Logger) *ChatRepository {
	return &ChatRepository{db: db, log: log}
}

// diskChat is the stored representation of a chat.
// Equivalent shape is reused by the debug inspector.
type diskChat struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
	CreatedAt    int64    `json:"created_at"`
	UpdatedAt    int64    `json:"updated_at"`
}

// Chats live under "chat:{id}". A secondary index "chatidx:{user_id}:{chat_id}"
// is maintained in the same transaction so ListByParticipant is a prefix scan
// instead of a full table walk.
func chatKey(id string) []byte {
	return []byte("chat:" + id)
}

func chatIndexKey(userID, chatID string) []byte {
	return []byte("chatidx:" + userID + ":" + chatID)
}

// CreateChat persists a new chat with a fresh id. The participant order is
// kept as given, duplicates removed preserving first occurrence.
func (r *ChatRepository) CreateChat(name string, participantIDs []string) (domain.Chat, error) {
	if name == "" {
		return domain.Chat{}, errors.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	participants := lo.Uniq(participantIDs)
	if len(participants) == 0 {
		return domain.Chat{}, errors.ValidationError{Field: "participants", Reason: "must not be empty"}
	}

	now := time.Now().UTC()
	chat := domain.Chat{
		ID:           uuid.NewString(),
		Name:         name,
		Participants: participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	data, err := json.Marshal(fromChat(chat))
	if err != nil {
		return domain.Chat{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(chatKey(chat.ID), data); err != nil {
			return err
		}
		for _, userID := range chat.Participants {
			if err := txn.Set(chatIndexKey(userID, chat.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

func (r *ChatRepository) GetChat(id string) (domain.Chat, error) {
	var chat domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		found, err := readChat(txn, id)
		if err != nil {
			return err
		}
		chat = found
		return nil
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// ListChats returns every chat, most recently active first.
func (r *ChatRepository) ListChats() ([]domain.Chat, error) {
	var chats []domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("chat:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var disk diskChat
				if err := json.Unmarshal(val, &disk); err != nil {
					return err
				}
				chats = append(chats, toChat(disk))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByActivity(chats)
	return chats, nil
}

// ListByParticipant returns the chats containing userID, most recently
// active first. The index prefix scan only touches keys; chat records
// are fetched inside the same snapshot.
func (r *ChatRepository) ListByParticipant(userID string) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := "chatidx:" + userID + ":"
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			chatID := string(it.Item().Key()[len(prefixStr):])
			chat, err := readChat(txn, chatID)
			if err != nil {
				return err
			}
			chats = append(chats, chat)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByActivity(chats)
	return chats, nil
}

// AddParticipant appends userID to the chat and touches UpdatedAt.
// Adding an existing participant is a no-op. Two simultaneous joins on
// the same chat conflict under badger's serializable transactions; the
// loser surfaces as a ConflictError so the service layer can retry.
func (r *ChatRepository) AddParticipant(chatID, userID string) (domain.Chat, error) {
	if userID == "" {
		return domain.Chat{}, errors.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	var chat domain.Chat
	err := r.db.Update(func(txn *badger.Txn) error {
		found, err := readChat(txn, chatID)
		if err != nil {
			return err
		}
		if found.HasParticipant(userID) {
			chat = found
			return nil
		}
		found.Participants = append(found.Participants, userID)
		found.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(fromChat(found))
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		if err := txn.Set(chatKey(found.ID), data); err != nil {
			return err
		}
		if err := txn.Set(chatIndexKey(userID, found.ID), nil); err != nil {
			return err
		}
		chat = found
		return nil
	})
	if err == badger.ErrConflict {
		return domain.Chat{}, errors.ConflictError{Entity: "chat", ID: chatID}
	}
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

func readChat(txn *badger.Txn, id string) (domain.Chat, error) {
	item, err := txn.Get(chatKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.Chat{}, errors.NotFoundError{Entity: "chat", ID: id}
	}
	if err != nil {
		return domain.Chat{}, err
	}
	var disk diskChat
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &disk)
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return toChat(disk), nil
}

func sortByActivity(chats []domain.Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
}

func fromChat(chat domain.Chat) diskChat {
	return diskChat{
		ID:           chat.ID,
		Name:         chat.Name,
		Participants: chat.Participants,
		CreatedAt:    chat.CreatedAt.UnixNano(),
		UpdatedAt:    chat.UpdatedAt.UnixNano(),
	}
}

func toChat(disk diskChat) domain.Chat {
	return domain.Chat{
		ID:           disk.ID,
		Name:         disk.Name,
		Participants: disk.Participants,
		CreatedAt:    time.Unix(0, disk.CreatedAt).UTC(),
		UpdatedAt:    time.Unix(0, disk.UpdatedAt).UTC(),
	}
}
