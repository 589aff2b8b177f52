package models

import "time"

// ResetRequest is a pending password reset. Only the SHA-256 of the token
// handed to the user is kept.
type ResetRequest struct {
	UserID    string
	TokenHash []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}
