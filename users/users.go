// Package users defines the user identity record and its repository contract.
package users

import (
	"strings"
	"time"
)

// RoleType represents a user role
type RoleType string

const (
	RoleUser      RoleType = "user"
	RoleAdmin     RoleType = "admin"
	RoleModerator RoleType = "moderator"
)

// ValidRole reports whether the role is one of the enumerated values.
func ValidRole(role RoleType) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// User is an identity record. Email and username are globally unique; email
// uniqueness is case-insensitive.
type User struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"` // never serialize
	Role         RoleType       `json:"role"`
	Preferences  map[string]any `json:"preferences,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// DefaultPreferences returns the preference set assigned at registration.
func DefaultPreferences() map[string]any {
	return map[string]any{
		"theme":    "system",
		"language": "en",
	}
}

// NormalizeEmail lowercases an email address for case-insensitive matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
