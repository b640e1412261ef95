package domain

import "time"

const (
	EntitlementLifetime   = "LIFETIME"
	EntitlementSubscriber = "SUBSCRIBER"
)

// Entitlement otorga acceso pagado/desbloqueado, posiblemente con expiración.
// Nunca se borra: revocar marca Active=false.
type Entitlement struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Type      string     `json:"type"`
	Active    bool       `json:"active"`
	Source    string     `json:"source"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
