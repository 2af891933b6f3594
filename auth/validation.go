package auth

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	usernameMinLength = 3
	usernameMaxLength = 32
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// validateEmail checks the email shape and appends any violation to violations.
func validateEmail(email string, violations []string) []string {
	email = strings.TrimSpace(email)
	if email == "" {
		return append(violations, "email is required")
	}
	if !emailPattern.MatchString(email) {
		return append(violations, "email format is invalid")
	}
	return violations
}

// validateUsername checks the username rules and appends any violations.
func validateUsername(username string, violations []string) []string {
	username = strings.TrimSpace(username)
	if username == "" {
		return append(violations, "username is required")
	}
	if len(username) < usernameMinLength || len(username) > usernameMaxLength {
		violations = append(violations, fmt.Sprintf("username must be between %d and %d characters", usernameMinLength, usernameMaxLength))
	}
	if !usernamePattern.MatchString(username) {
		violations = append(violations, "username may only contain letters, digits, '_', '.' and '-'")
	}
	return violations
}
