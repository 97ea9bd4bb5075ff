package domain

// CreateChatCommand opens a new chat. The creator always ends up first
// in the participant list; duplicates are removed keeping first occurrence.
type CreateChatCommand struct {
	Name           string `validate:"required"`
	CreatorID      string `validate:"required"`
	ParticipantIDs []string
}

// SendMessageCommand posts a message to an existing chat.
type SendMessageCommand struct {
	ChatID  string `validate:"required"`
	UserID  string `validate:"required"`
	Content string `validate:"required"`
}

// JoinChatCommand adds a participant to an existing chat.
// Joining twice is a no-op.
type JoinChatCommand struct {
	ChatID string `validate:"required"`
	UserID string `validate:"required"`
}

// HistoryQuery pages through a chat's message log in ascending
// creation order. Zero Limit means the server default.
type HistoryQuery struct {
	ChatID string `validate:"required"`
	Limit  int
	Offset int
}
