//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chat-mesh/domain"
	"chat-mesh/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	// DefaultHistoryLimit applies when a caller asks for a page without a size.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit bounds a single history response.
	MaxHistoryLimit = 200
)

type IMessageRepository interface {
	Append(chatID, userID, content string) (domain.Message, error)
	ListByChat(chatID string, limit, offset int) ([]domain.Message, error)
}

type MessageRepository struct {
	db       *badger.DB
	log      *slog.Logger
	maxLimit int
	seq      atomic.Uint64

	mu     sync.Mutex
	lastAt map[string]time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, maxLimit int) *MessageRepository {
	if maxLimit <= 0 {
		maxLimit = MaxHistoryLimit
	}
	return &MessageRepository{
		db:       db,
		log:      log,
		maxLimit: maxLimit,
		lastAt:   make(map[string]time.Time),
	}
}

type diskMessage struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// messageKey is formatted as "msg:{chat_id}:{timestamp_padded}:{seq_padded}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Retain submission order through the process-wide sequence when two
//     messages land on the same nanosecond.
func messageKey(chatID string, at time.Time, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%08d", chatID, at.UnixNano(), seq))
}

// Append durably stores a message before returning it. The creation
// timestamp is clamped per chat so a backwards-stepping clock can never
// break the non-decreasing order of a chat's log. Chat existence is the
// aggregation service's responsibility, not this component's.
func (m *MessageRepository) Append(chatID, userID, content string) (domain.Message, error) {
	if content == "" {
		return domain.Message{}, errors.ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if chatID == "" {
		return domain.Message{}, errors.ValidationError{Field: "chatId", Reason: "must not be empty"}
	}

	at := m.nextTimestamp(chatID)
	seq := m.seq.Add(1)
	message := domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		UserID:    userID,
		Content:   content,
		CreatedAt: at,
	}

	data, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal failed: %w", err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(chatID, at, seq), data)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

func (m *MessageRepository) nextTimestamp(chatID string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := time.Now().UTC()
	if last, ok := m.lastAt[chatID]; ok && at.Before(last) {
		at = last
	}
	m.lastAt[chatID] = at
	return at
}

// ListByChat retrieves one page of a chat's log using a prefix scan.
// Thanks to the padded timestamp in the key, messages come back naturally
// sorted by creation time, ties in submission order.
func (m *MessageRepository) ListByChat(chatID string, limit, offset int) ([]domain.Message, error) {
	if limit < 0 {
		return nil, errors.ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	if offset < 0 {
		return nil, errors.ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit > m.maxLimit {
		m.log.Debug("history limit capped", "requested", limit, "max", m.maxLimit)
		limit = m.maxLimit
	}

	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:" + chatID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		skipped := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(messages) == limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var disk diskMessage
				if err := json.Unmarshal(val, &disk); err != nil {
					return err
				}
				message, err := toMessage(disk)
				if err != nil {
					return err
				}
				messages = append(messages, message)
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
	return messages, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:        message.ID.String(),
		ChatID:    message.ChatID,
		UserID:    message.UserID,
		Content:   message.Content,
		CreatedAt: message.CreatedAt.UnixNano(),
	}
}

func toMessage(disk diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		ChatID:    disk.ChatID,
		UserID:    disk.UserID,
		Content:   disk.Content,
		CreatedAt: time.Unix(0, disk.CreatedAt).UTC(),
	}, nil
}
