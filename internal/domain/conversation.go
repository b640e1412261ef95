package domain

import "time"

// Conversation agrupa los mensajes de un usuario. El borrado es lógico:
// DeletedAt marcado excluye la conversación de los listados.
type Conversation struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
