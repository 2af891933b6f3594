package password_test

import (
	"strings"
	"testing"

	"github.com/avalontm/gemini-auth/password"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	h := password.NewHasher(password.WithCost(4)) // low cost keeps the test fast

	hash, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	require.NotEqual(t, "Passw0rd!", hash)

	ok, err := h.Compare("Passw0rd!", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Compare("NotThePassword1!", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashRejectsShortInput(t *testing.T) {
	h := password.NewHasher()

	_, err := h.Hash("short")
	require.Error(t, err)
	require.True(t, errors.Is(err, password.WeakInputErr))
}

func TestCompareRejectsEmptyInput(t *testing.T) {
	h := password.NewHasher()

	_, err := h.Compare("", "some-hash")
	require.Error(t, err)
	require.True(t, errors.Is(err, password.InvalidInputErr))

	_, err = h.Compare("Passw0rd!", "")
	require.Error(t, err)
	require.True(t, errors.Is(err, password.InvalidInputErr))
}

func TestHashesAreSalted(t *testing.T) {
	h := password.NewHasher(password.WithCost(4))

	h1, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	h2, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestValidateStrengthAccumulatesViolations(t *testing.T) {
	// Violates length, uppercase, digit, and special character rules at once.
	result := password.ValidateStrength("abc")
	require.False(t, result.IsValid)
	require.Len(t, result.Errors, 4)
}

func TestValidateStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"valid", "Passw0rd!", true},
		{"missing special", "Passw0rd1", false},
		{"missing digit", "Password!", false},
		{"missing upper", "passw0rd!", false},
		{"missing lower", "PASSW0RD!", false},
		{"too short", "Pw0rd!", false},
		{"too long", strings.Repeat("Aa1!", 40), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := password.ValidateStrength(tt.password)
			require.Equal(t, tt.valid, result.IsValid, "errors: %v", result.Errors)
		})
	}
}

func TestHasherValidateStrength(t *testing.T) {
	h := password.NewHasher()

	require.False(t, h.ValidateStrength("abc").IsValid)
	require.True(t, h.ValidateStrength("Passw0rd!").IsValid)
}

func TestValidateStrengthDenyList(t *testing.T) {
	// "Passw0rd" carries every character class except special, so the
	// deny-list violation must appear alongside the class violation.
	result := password.ValidateStrength("Passw0rd")
	require.False(t, result.IsValid)
	require.Contains(t, result.Errors, "is too common")
}

func TestGenerateRandomSatisfiesAllRules(t *testing.T) {
	for i := 0; i < 20; i++ {
		generated, err := password.GenerateRandom(16)
		require.NoError(t, err)
		require.Len(t, generated, 16)

		result := password.ValidateStrength(generated)
		require.True(t, result.IsValid, "generated password failed strength check: %v", result.Errors)
	}
}

func TestGenerateRandomDefaultsLength(t *testing.T) {
	generated, err := password.GenerateRandom(0)
	require.NoError(t, err)
	require.Len(t, generated, 16)
}
