// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the stores.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event.
// Within a chat, CreatedAt is non-decreasing and is the canonical
// ordering for history and live delivery.
type Message struct {
	ID        uuid.UUID
	ChatID    string
	UserID    string
	Content   string
	CreatedAt time.Time
}
