package history

import "time"

// Message role constants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single transcript entry of a chat session.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
