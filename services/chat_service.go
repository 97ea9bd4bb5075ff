package services

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"

	"chat-mesh/domain"
	"chat-mesh/errors"
	"chat-mesh/hub"
	"chat-mesh/identity"
	"chat-mesh/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// joinRetryBudget bounds internal retries when a concurrent participant
// update loses its race before the conflict surfaces to the caller.
const joinRetryBudget = 3

type IChatService interface {
	CreateChat(ctx context.Context, cmd domain.CreateChatCommand) (domain.Chat, error)
	GetChat(ctx context.Context, chatID string) (domain.Chat, error)
	GetChatDetail(ctx context.Context, chatID string) (domain.ChatDetail, error)
	ListChats(ctx context.Context) ([]domain.Chat, error)
	ListChatsByUser(ctx context.Context, userID string) ([]domain.Chat, error)
	JoinChat(ctx context.Context, cmd domain.JoinChatCommand) (domain.Chat, error)
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	MessageHistory(ctx context.Context, query domain.HistoryQuery) ([]domain.Message, error)
}

// ChatService composes the chat store, the message store, the identity
// directory and the broadcast hub into the client-facing operations.
type ChatService struct {
	log       *slog.Logger
	chats     repositories.IChatRepository
	messages  repositories.IMessageRepository
	directory identity.Directory
	hub       hub.Hub
	validate  *validator.Validate

	// chatLocks serializes the store-then-publish section per chat so
	// persistence order and live delivery order agree. Unrelated chats
	// never contend. Entries are never evicted: the map holds one mutex
	// per chat ever messaged in this process.
	// TODO: evict a chat's mutex when the hub garbage-collects its topic.
	chatLocks sync.Map
}

func NewChatService(
	log *slog.Logger,
	chats repositories.IChatRepository,
	messages repositories.IMessageRepository,
	directory identity.Directory,
	broadcast hub.Hub,
) *ChatService {
	return &ChatService{
		log:       log,
		chats:     chats,
		messages:  messages,
		directory: directory,
		hub:       broadcast,
		validate:  validator.New(),
	}
}

// CreateChat delegates to the chat store with the creator first in the
// participant list.
func (s *ChatService) CreateChat(_ context.Context, cmd domain.CreateChatCommand) (domain.Chat, error) {
	if err := s.validateCommand(cmd); err != nil {
		return domain.Chat{}, err
	}
	participants := append([]string{cmd.CreatorID}, cmd.ParticipantIDs...)
	return s.chats.CreateChat(cmd.Name, participants)
}

func (s *ChatService) GetChat(_ context.Context, chatID string) (domain.Chat, error) {
	return s.chats.GetChat(chatID)
}

// GetChatDetail assembles the fully populated view: chat, first history
// page and resolved identities. Identity failures degrade the affected
// users to the unknown marker instead of failing the call; the chat
// stays usable while the identity service is down.
func (s *ChatService) GetChatDetail(ctx context.Context, chatID string) (domain.ChatDetail, error) {
	chat, err := s.chats.GetChat(chatID)
	if err != nil {
		return domain.ChatDetail{}, err
	}
	messages, err := s.messages.ListByChat(chatID, 0, 0)
	if err != nil {
		return domain.ChatDetail{}, err
	}

	ids := lo.Uniq(append(
		lo.Map(messages, func(m domain.Message, _ int) string { return m.UserID }),
		chat.Participants...,
	))
	users := s.resolveOrUnknown(ctx, ids)

	return domain.ChatDetail{
		Chat: chat,
		Participants: lo.Map(chat.Participants, func(id string, _ int) domain.User {
			return users[id]
		}),
		Messages: lo.Map(messages, func(m domain.Message, _ int) domain.MessageView {
			return domain.MessageView{Message: m, Sender: users[m.UserID]}
		}),
	}, nil
}

func (s *ChatService) ListChats(_ context.Context) ([]domain.Chat, error) {
	return s.chats.ListChats()
}

func (s *ChatService) ListChatsByUser(_ context.Context, userID string) ([]domain.Chat, error) {
	if userID == "" {
		return nil, errors.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	return s.chats.ListByParticipant(userID)
}

// JoinChat is idempotent. Conflicting concurrent joins are retried a
// bounded number of times before the conflict reaches the caller.
func (s *ChatService) JoinChat(_ context.Context, cmd domain.JoinChatCommand) (domain.Chat, error) {
	if err := s.validateCommand(cmd); err != nil {
		return domain.Chat{}, err
	}
	var lastErr error
	for attempt := 0; attempt < joinRetryBudget; attempt++ {
		chat, err := s.chats.AddParticipant(cmd.ChatID, cmd.UserID)
		if err == nil {
			return chat, nil
		}
		if !isConflict(err) {
			return domain.Chat{}, err
		}
		s.log.Debug("participant update lost a race, retrying",
			"chat_id", cmd.ChatID, "user_id", cmd.UserID, "attempt", attempt+1)
		lastErr = err
	}
	return domain.Chat{}, lastErr
}

// SendMessage verifies the chat exists and the sender belongs to it,
// appends the message durably and only then publishes it. The order is
// mandatory: a live notification must never precede what a concurrent
// history fetch can see.
func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if err := s.validateCommand(cmd); err != nil {
		return domain.Message{}, err
	}

	lock := s.lockFor(cmd.ChatID)
	lock.Lock()
	defer lock.Unlock()

	chat, err := s.chats.GetChat(cmd.ChatID)
	if err != nil {
		return domain.Message{}, err
	}
	if !chat.HasParticipant(cmd.UserID) {
		return domain.Message{}, errors.ValidationError{
			Field:  "userId",
			Reason: "not a participant of chat " + cmd.ChatID,
		}
	}

	message, err := s.messages.Append(cmd.ChatID, cmd.UserID, cmd.Content)
	if err != nil {
		return domain.Message{}, err
	}
	s.hub.Publish(ctx, message)
	return message, nil
}

func (s *ChatService) MessageHistory(_ context.Context, query domain.HistoryQuery) ([]domain.Message, error) {
	if err := s.validateCommand(query); err != nil {
		return nil, err
	}
	if _, err := s.chats.GetChat(query.ChatID); err != nil {
		return nil, err
	}
	return s.messages.ListByChat(query.ChatID, query.Limit, query.Offset)
}

// resolveOrUnknown maps every id to a user, degrading unresolved ids to
// the unknown marker and logging which lookups failed.
func (s *ChatService) resolveOrUnknown(ctx context.Context, ids []string) map[string]domain.User {
	resolved, err := s.directory.ResolveMany(ctx, ids)
	if err != nil {
		s.log.Warn("identity resolution degraded", "error", err)
	}
	users := make(map[string]domain.User, len(ids))
	for _, user := range resolved {
		users[user.ID] = user
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			users[id] = domain.UnknownUser(id)
		}
	}
	return users
}

func (s *ChatService) lockFor(chatID string) *sync.Mutex {
	lock, _ := s.chatLocks.LoadOrStore(chatID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// validateCommand turns the first tag violation into a ValidationError
// naming the field, so transports report the offending input verbatim.
func (s *ChatService) validateCommand(cmd any) error {
	err := s.validate.Struct(cmd)
	if err == nil {
		return nil
	}
	if fieldErrors, ok := err.(validator.ValidationErrors); ok && len(fieldErrors) > 0 {
		first := fieldErrors[0]
		return errors.ValidationError{
			Field:  first.Field(),
			Reason: "failed on " + first.Tag(),
		}
	}
	return err
}

func isConflict(err error) bool {
	var conflict errors.ConflictError
	return stderrors.As(err, &conflict)
}
