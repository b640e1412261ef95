package domain

import "time"

// Profile guarda datos por usuario, incluido el contador de mensajes gratis.
// FreeMessagesUsed solo crece; nunca se resetea al otorgar un entitlement.
type Profile struct {
	UserID           string    `json:"user_id"`
	DisplayName      string    `json:"display_name,omitempty"`
	FreeMessagesUsed int       `json:"free_messages_used"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
