package server

import (
	"context"
	"net/http"

	"github.com/avalontm/gemini-auth/sessions"
	"github.com/avalontm/gemini-auth/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUser stores the authenticated user
	ContextKeyUser ContextKey = "user"
	// ContextKeySession stores the session backing the request token
	ContextKeySession ContextKey = "session"
	// ContextKeyToken stores the raw access token of the request
	ContextKeyToken ContextKey = "token"
)

// RequireAuth validates the request's access token and injects the user and
// session into the request context. The Authorization header takes precedence
// over the auth cookie when both are present.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rawToken := s.tokenFromRequest(r)

			user, session, err := s.auth.VerifyAuth(r.Context(), rawToken)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			ctx = context.WithValue(ctx, ContextKeySession, session)
			ctx = context.WithValue(ctx, ContextKeyToken, rawToken)
			next(w, r.WithContext(ctx))
		}
	}
}

// UserFromContext returns the authenticated user injected by RequireAuth.
func UserFromContext(ctx context.Context) (*users.User, bool) {
	user, ok := ctx.Value(ContextKeyUser).(*users.User)
	return user, ok
}

// SessionFromContext returns the session injected by RequireAuth.
func SessionFromContext(ctx context.Context) (*sessions.Session, bool) {
	session, ok := ctx.Value(ContextKeySession).(*sessions.Session)
	return session, ok
}

// TokenFromContext returns the raw access token injected by RequireAuth.
func TokenFromContext(ctx context.Context) (string, bool) {
	rawToken, ok := ctx.Value(ContextKeyToken).(string)
	return rawToken, ok
}
