// Package domain contains core concepts of the chat system.
// This file defines User references owned by the external identity service.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// User is a reference to an account held by the identity service.
// It is never persisted by this service; chats and messages only store ids.
type User struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Resolved    bool
}

// UnknownUser is the degraded stand-in used when the identity service
// could not resolve an id. Resolved stays false.
func UnknownUser(id string) User {
	return User{ID: id, Username: "unknown"}
}
