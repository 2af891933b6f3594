package token

import "github.com/pkg/errors"

var (
	// InvalidPayloadErr is returned by Issue when the subject ID is missing.
	InvalidPayloadErr = errors.New("invalid token payload")

	// TokenExpiredErr is returned by Verify when the expiry claim is in the past.
	TokenExpiredErr = errors.New("token expired")

	// TokenMalformedErr is returned by Verify when the signature or structure
	// is invalid, or when the issuer/audience claims do not match.
	TokenMalformedErr = errors.New("token malformed")

	// TokenNotYetValidErr is returned by Verify when the token carries a
	// not-before claim in the future.
	TokenNotYetValidErr = errors.New("token not yet valid")
)
