package models

import "time"

// RefreshToken represents one outstanding session grant. Only the SHA-256
// hash of the raw secret is stored; the raw value leaves the process exactly
// once, in the issuance response.
type RefreshToken struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
