package entities

import "time"

type TokenStatus string

const (
	TokenStatusActive  TokenStatus = "active"
	TokenStatusUsed    TokenStatus = "used"
	TokenStatusRevoked TokenStatus = "revoked"
)

// VoteToken is a single-use credential binding an electronic ballot to one
// member and one motion. Tokens are consumed exactly once on cast and revoked
// en masse when the motion closes.
type VoteToken struct {
	TokenHash string
	MotionID  string
	MemberID  string
	Status    TokenStatus
	IssuedAt  time.Time
	ExpiresAt *time.Time
	UsedAt    *time.Time
}

// Expired reports whether an unused token has passed its expiry.
func (t VoteToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.UTC().Before(now.UTC())
}

// Usable reports whether the token can still consume a cast.
func (t VoteToken) Usable(now time.Time) bool {
	return t.Status == TokenStatusActive && !t.Expired(now)
}
