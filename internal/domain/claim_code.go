package domain

import "time"

// ClaimCode es un código de un solo uso canjeable por un entitlement vitalicio.
// IsRedeemed transiciona exactamente una vez de false a true.
type ClaimCode struct {
	Code       string     `json:"code"`
	IsRedeemed bool       `json:"is_redeemed"`
	RedeemedBy string     `json:"redeemed_by,omitempty"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
