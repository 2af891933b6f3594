// Package password provides one-way password hashing, verification, and
// strength validation for the authentication service.
package password

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	// WeakInputErr is returned by Hash when the plaintext is shorter than the configured minimum.
	WeakInputErr = errors.New("password below minimum length")

	// InvalidInputErr is returned by Compare when either argument is empty.
	InvalidInputErr = errors.New("invalid password input")
)

const (
	// DefaultCost is the bcrypt work factor used when none is configured.
	DefaultCost = 10

	// MinLength is the minimum accepted password length.
	MinLength = 8

	// MaxLength is the maximum accepted password length.
	MaxLength = 128
)

const (
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars   = "0123456789"
	specialChars = "!@#$%^&*()-_=+[]{};:,.<>?"
)

// commonPasswords is a small deny-list of passwords that pass the character
// class rules but are too widely used to accept.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"password1!": {},
	"passw0rd":   {},
	"qwerty123":  {},
	"letmein123": {},
	"admin123":   {},
	"welcome1":   {},
	"iloveyou1":  {},
	"12345678":   {},
}

// Hasher hashes and verifies passwords using bcrypt.
type Hasher struct {
	cost      int
	minLength int
}

// HasherOption configures a Hasher.
type HasherOption func(*Hasher)

// WithCost overrides the bcrypt work factor.
func WithCost(cost int) HasherOption {
	return func(h *Hasher) {
		h.cost = cost
	}
}

// WithMinLength overrides the minimum plaintext length accepted by Hash.
func WithMinLength(min int) HasherOption {
	return func(h *Hasher) {
		h.minLength = min
	}
}

// NewHasher creates a Hasher with the default cost and minimum length.
func NewHasher(options ...HasherOption) *Hasher {
	h := &Hasher{
		cost:      DefaultCost,
		minLength: MinLength,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Hash computes a salted bcrypt hash of the plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) < h.minLength {
		return "", errors.Wrapf(WeakInputErr, "[Hasher.Hash] need at least %d characters", h.minLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", errors.Wrap(err, "[Hasher.Hash] bcrypt.GenerateFromPassword")
	}
	return string(hash), nil
}

// Compare reports whether the plaintext matches the stored hash.
// The comparison is delegated to bcrypt, which is constant-time on the digest.
func (h *Hasher) Compare(plaintext, hash string) (bool, error) {
	if plaintext == "" || hash == "" {
		return false, errors.Wrap(InvalidInputErr, "[Hasher.Compare] empty argument")
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	return err == nil, nil
}

// ValidateStrength checks the plaintext against the package strength rules.
func (h *Hasher) ValidateStrength(plaintext string) StrengthResult {
	return ValidateStrength(plaintext)
}

// StrengthResult holds the outcome of ValidateStrength. Errors lists every
// violated rule, not just the first.
type StrengthResult struct {
	IsValid bool
	Errors  []string
}

// ValidateStrength checks length bounds, character classes, and the common
// password deny-list. All violated rules are accumulated.
func ValidateStrength(plaintext string) StrengthResult {
	var violations []string

	if len(plaintext) < MinLength {
		violations = append(violations, "must be at least 8 characters long")
	}
	if len(plaintext) > MaxLength {
		violations = append(violations, "must be at most 128 characters long")
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range plaintext {
		switch {
		case strings.ContainsRune(lowerChars, r):
			hasLower = true
		case strings.ContainsRune(upperChars, r):
			hasUpper = true
		case strings.ContainsRune(digitChars, r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if !hasLower {
		violations = append(violations, "must contain at least one lowercase letter")
	}
	if !hasUpper {
		violations = append(violations, "must contain at least one uppercase letter")
	}
	if !hasDigit {
		violations = append(violations, "must contain at least one number")
	}
	if !hasSpecial {
		violations = append(violations, "must contain at least one special character")
	}

	if _, common := commonPasswords[strings.ToLower(plaintext)]; common {
		violations = append(violations, "is too common")
	}

	return StrengthResult{
		IsValid: len(violations) == 0,
		Errors:  violations,
	}
}

// GenerateRandom produces a random password that satisfies every strength
// rule by construction: one character from each required class, filled to
// length, then shuffled.
func GenerateRandom(length int) (string, error) {
	if length < MinLength {
		length = 16
	}
	if length > MaxLength {
		length = MaxLength
	}

	all := lowerChars + upperChars + digitChars + specialChars
	chars := make([]byte, 0, length)

	for _, class := range []string{lowerChars, upperChars, digitChars, specialChars} {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	for len(chars) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Fisher-Yates so the required class characters are not predictable prefixes.
	for i := len(chars) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", errors.Wrap(err, "[GenerateRandom] rand.Int")
		}
		j := n.Int64()
		chars[i], chars[j] = chars[j], chars[i]
	}

	return string(chars), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, errors.Wrap(err, "[randomChar] rand.Int")
	}
	return set[n.Int64()], nil
}
