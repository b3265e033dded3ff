package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DisplayTimeLayout is the display format of Message.Timestamp.
const DisplayTimeLayout = "15:04"

// Message is one turn in a conversation.
type Message struct {
	ID                string    `json:"id"`
	Role              Role      `json:"role"`
	Content           string    `json:"content"`
	Timestamp         string    `json:"timestamp"`
	OriginalTimestamp time.Time `json:"original_timestamp"`
}

// NewMessage builds a message stamped at the provided time.
func NewMessage(id string, role Role, content string, at time.Time) Message {
	return Message{
		ID:                id,
		Role:              role,
		Content:           content,
		Timestamp:         at.Local().Format(DisplayTimeLayout),
		OriginalTimestamp: at,
	}
}
