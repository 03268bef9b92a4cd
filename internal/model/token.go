package model

import "time"

// BlacklistedToken records a refresh token that was revoked on logout.
// Only the token id (jti) is stored, never the token itself.
type BlacklistedToken struct {
	JTI           string    `db:"jti"`
	UserID        int64     `db:"user_id"`
	ExpiresAt     time.Time `db:"expires_at"`
	BlacklistedAt time.Time `db:"blacklisted_at"`
}
