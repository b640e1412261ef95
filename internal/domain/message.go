package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message es inmutable una vez escrito; se borra en cascada con su conversación.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ValidRole indica si role es uno de los tres valores permitidos.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant || role == RoleSystem
}
