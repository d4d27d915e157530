package entities

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one entry of a plan's conversation log.
type ChatTurn struct {
	Role    string    `json:"role"`
	Message string    `json:"message"`
	TS      time.Time `json:"ts"`
}

// NewChatTurn creates a turn stamped with now.
func NewChatTurn(role, message string, now time.Time) ChatTurn {
	return ChatTurn{Role: role, Message: message, TS: now.UTC()}
}
