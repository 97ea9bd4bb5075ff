package domain

// MessageView is a message joined with its resolved sender.
// Sender degrades to UnknownUser when the identity service is unavailable.
type MessageView struct {
	Message
	Sender User
}

// ChatDetail is a fully populated chat view: the chat itself, its
// participants resolved against the identity service, and one page
// of its message history.
type ChatDetail struct {
	Chat
	Participants []User
	Messages     []MessageView
}
