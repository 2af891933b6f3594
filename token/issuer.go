// Package token issues and verifies the signed bearer tokens used by the
// authentication service. Tokens are stateless; session state lives in the
// sessions package.
package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// RefreshTokenType tags the payload of refresh tokens. A refresh token must
// never be accepted where an access token is expected.
const RefreshTokenType = "refresh"

// Claims is the decoded payload of an issued token.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsRefresh reports whether the payload is tagged as a refresh token.
func (c Claims) IsRefresh() bool {
	return c.TokenType == RefreshTokenType
}

// Issuer signs and verifies bearer tokens. The signing secret, expiries,
// issuer, and audience are fixed at construction.
type Issuer struct {
	signer     Signer
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowFunc    func() time.Time
}

// IssuerOption defines a function type to modify the Issuer instance.
type IssuerOption func(*Issuer)

// WithTokenExpiry sets the access and refresh token lifetimes.
func WithTokenExpiry(accessTTL, refreshTTL time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.accessTTL = accessTTL
		i.refreshTTL = refreshTTL
	}
}

// WithIssuer sets the issuer claim embedded in and required from every token.
func WithIssuer(issuer string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = issuer
	}
}

// WithAudience sets the audience claim embedded in and required from every token.
func WithAudience(audience string) IssuerOption {
	return func(i *Issuer) {
		i.audience = audience
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

// NewIssuer creates an Issuer signing with the given signer.
func NewIssuer(signer Signer, options ...IssuerOption) *Issuer {
	i := &Issuer{
		signer:     signer,
		issuer:     "gemini-auth",
		audience:   "gemini-api",
		accessTTL:  7 * 24 * time.Hour,
		refreshTTL: 30 * 24 * time.Hour,
	}

	for _, opt := range options {
		opt(i)
	}

	if i.nowFunc == nil {
		i.nowFunc = time.Now
	}
	return i
}

// AccessTTL returns the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// Issue creates a signed access token for the given subject.
func (i *Issuer) Issue(subjectID, email, role string) (string, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", errors.Wrap(InvalidPayloadErr, "[Issuer.Issue] missing subject ID")
	}

	now := i.nowFunc()
	claims := jwt.MapClaims{
		"iss":   i.issuer,
		"aud":   i.audience,
		"sub":   subjectID,
		"email": email,
		"role":  role,
		"iat":   now.Unix(),
		"exp":   now.Add(i.accessTTL).Unix(),
		"jti":   uuid.New().String(),
	}

	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.Issue] signer.Sign")
	}
	return signed, nil
}

// IssueRefresh creates a signed refresh token for the given subject. Refresh
// tokens carry a type tag and a longer expiry, independent of the access
// token lifetime.
func (i *Issuer) IssueRefresh(subjectID string) (string, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", errors.Wrap(InvalidPayloadErr, "[Issuer.IssueRefresh] missing subject ID")
	}

	now := i.nowFunc()
	claims := jwt.MapClaims{
		"iss":  i.issuer,
		"aud":  i.audience,
		"sub":  subjectID,
		"type": RefreshTokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(i.refreshTTL).Unix(),
		"jti":  uuid.New().String(),
	}

	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.IssueRefresh] signer.Sign")
	}
	return signed, nil
}

// Verify parses the token, checks the signature, and validates the expiry,
// not-before, issuer, and audience claims. Issuer or audience mismatch is
// reported as a malformed token.
func (i *Issuer) Verify(rawToken string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithTimeFunc(i.nowFunc),
	)

	parsed, err := parser.Parse(rawToken, i.signer.GetVerificationKey)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, errors.Wrap(TokenExpiredErr, err.Error())
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return Claims{}, errors.Wrap(TokenNotYetValidErr, err.Error())
		default:
			return Claims{}, errors.Wrap(TokenMalformedErr, err.Error())
		}
	}
	if !parsed.Valid {
		return Claims{}, errors.Wrap(TokenMalformedErr, "[Issuer.Verify] token invalid")
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.Wrap(TokenMalformedErr, "[Issuer.Verify] error extracting claims")
	}

	return claimsFromMap(mapClaims), nil
}

// Decode extracts the payload without checking the signature. It exists so
// session lifetimes can be derived from the expiry claim; it must not be
// used for authorization decisions.
func (i *Issuer) Decode(rawToken string) (Claims, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return Claims{}, errors.Wrap(TokenMalformedErr, err.Error())
	}

	mapClaims, ok := unverified.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.Wrap(TokenMalformedErr, "[Issuer.Decode] error extracting claims")
	}

	return claimsFromMap(mapClaims), nil
}

// IsRefreshToken reports whether the token verifies and its payload is
// tagged as a refresh token.
func (i *Issuer) IsRefreshToken(rawToken string) bool {
	claims, err := i.Verify(rawToken)
	if err != nil {
		return false
	}
	return claims.IsRefresh()
}

// RemainingSeconds returns the seconds until the token's expiry claim,
// floored at zero. Malformed tokens also report zero.
func (i *Issuer) RemainingSeconds(rawToken string) int64 {
	claims, err := i.Decode(rawToken)
	if err != nil {
		return 0
	}
	remaining := int64(claims.ExpiresAt.Sub(i.nowFunc()).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExtractFromHeader pulls the token out of an Authorization header value.
// Only the exact scheme prefix "Bearer " (case-sensitive, single space) is
// accepted; any other shape returns the empty string.
func ExtractFromHeader(header string) string {
	rawToken, found := strings.CutPrefix(header, "Bearer ")
	if !found || rawToken == "" || strings.ContainsRune(rawToken, ' ') {
		return ""
	}
	return rawToken
}

func claimsFromMap(mapClaims jwt.MapClaims) Claims {
	sub, _ := mapClaims["sub"].(string)
	email, _ := mapClaims["email"].(string)
	role, _ := mapClaims["role"].(string)
	tokenType, _ := mapClaims["type"].(string)
	iat, _ := mapClaims["iat"].(float64)
	exp, _ := mapClaims["exp"].(float64)

	return Claims{
		Subject:   sub,
		Email:     email,
		Role:      role,
		TokenType: tokenType,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}
}
