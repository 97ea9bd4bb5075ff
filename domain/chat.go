package domain

import "time"

// Chat is a named container for an ordered participant list
// and its message history.
type Chat struct {
	ID           string
	Name         string
	Participants []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasParticipant reports whether the user id is part of the chat.
func (c Chat) HasParticipant(userID string) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}
