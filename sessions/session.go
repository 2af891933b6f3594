// Package sessions persists the server-side record binding an issued token
// to a user and a client context. A signature-valid token is only usable
// while its session is valid.
package sessions

import "time"

// RevokeReason enumerates why a session was revoked.
type RevokeReason string

const (
	ReasonLogout   RevokeReason = "logout"
	ReasonExpired  RevokeReason = "expired"
	ReasonSecurity RevokeReason = "security"
	ReasonManual   RevokeReason = "manual"
)

// Session binds one issued token to one user and one client context.
type Session struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Token     string `json:"token"` // opaque here; unique per session
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// Coarse client metadata, informational only
	Device   string `json:"device,omitempty"`
	Location string `json:"location,omitempty"`

	IsActive      bool         `json:"is_active"`
	LastActivity  time.Time    `json:"last_activity"`
	ExpiresAt     time.Time    `json:"expires_at"` // mirrors the token's expiry claim
	RevokedAt     *time.Time   `json:"revoked_at,omitempty"`
	RevokedReason RevokeReason `json:"revoked_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// IsValid reports whether the session is usable at the given instant:
// active, unrevoked, and not past its expiry.
func (s *Session) IsValid(now time.Time) bool {
	return s.IsActive && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
