package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/avalontm/gemini-auth/auth"
	"github.com/avalontm/gemini-auth/sessions"
	"github.com/avalontm/gemini-auth/token"
	"github.com/avalontm/gemini-auth/users"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type authResponse struct {
	User   *users.User     `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

// writeAuthError maps authentication failures onto 401 responses.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.TokenRequiredErr):
		writeError(w, http.StatusUnauthorized, "authentication token required")
	case errors.Is(err, token.TokenExpiredErr):
		writeError(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, auth.SessionInvalidErr):
		writeError(w, http.StatusUnauthorized, "session is no longer valid")
	default:
		writeError(w, http.StatusUnauthorized, "invalid token")
	}
}

// writeServiceError maps service errors onto HTTP statuses. Unknown errors
// become an opaque 500.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	if ve, ok := auth.AsValidationError(err); ok {
		writeError(w, http.StatusBadRequest, "validation failed", ve.Violations...)
		return
	}

	switch {
	case errors.Is(err, auth.InvalidCredentialsErr):
		writeError(w, http.StatusUnauthorized, auth.InvalidCredentialsErr.Error())
	case errors.Is(err, auth.EmailExistsErr):
		writeError(w, http.StatusConflict, auth.EmailExistsErr.Error())
	case errors.Is(err, auth.UsernameExistsErr):
		writeError(w, http.StatusConflict, auth.UsernameExistsErr.Error())
	case errors.Is(err, auth.UserNotFoundErr):
		writeError(w, http.StatusNotFound, auth.UserNotFoundErr.Error())
	case errors.Is(err, auth.PasswordMismatchErr):
		writeError(w, http.StatusBadRequest, auth.PasswordMismatchErr.Error())
	case errors.Is(err, auth.PasswordUnchangedErr):
		writeError(w, http.StatusBadRequest, auth.PasswordUnchangedErr.Error())
	case errors.Is(err, auth.NotRefreshTokenErr):
		writeError(w, http.StatusUnauthorized, auth.NotRefreshTokenErr.Error())
	case errors.Is(err, auth.TokenRequiredErr),
		errors.Is(err, auth.SessionInvalidErr),
		errors.Is(err, token.TokenExpiredErr),
		errors.Is(err, token.TokenMalformedErr):
		writeAuthError(w, err)
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// clientIP returns the originating client address, honouring X-Forwarded-For.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) loginParamsFromRequest(r *http.Request, email, password string) auth.LoginParams {
	return auth.LoginParams{
		Email:     email,
		Password:  password,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// RegisterHandler creates a new account and returns its first token pair.
func (s *Server) RegisterHandler() http.HandlerFunc {
	type request struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, pair, err := s.auth.Register(r.Context(), auth.RegisterParams{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, authResponse{User: user, Tokens: pair})
	}
}

// LoginHandler authenticates credentials and opens a session.
func (s *Server) LoginHandler() http.HandlerFunc {
	type request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, pair, err := s.auth.Login(r.Context(), s.loginParamsFromRequest(r, req.Email, req.Password))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}

		s.SetAuthCookie(w, r, pair.AccessToken)
		writeJSON(w, http.StatusOK, authResponse{User: user, Tokens: pair})
	}
}

// LogoutHandler revokes the current session. It is deliberately not behind
// RequireAuth so a client with a dead session can still clear its cookie.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawToken := s.tokenFromRequest(r)
		if rawToken != "" {
			if err := s.auth.Logout(r.Context(), rawToken); err != nil {
				s.writeServiceError(w, err)
				return
			}
		}

		s.ClearAuthCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

// RefreshHandler exchanges a refresh token for a new access token.
func (s *Server) RefreshHandler() http.HandlerFunc {
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, pair, err := s.auth.Refresh(r.Context(), req.RefreshToken, auth.LoginParams{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}

		s.SetAuthCookie(w, r, pair.AccessToken)
		writeJSON(w, http.StatusOK, authResponse{User: user, Tokens: pair})
	}
}

// MeHandler returns the authenticated user.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// ChangePasswordHandler rotates the password and signs the user out of every
// device.
func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	type request struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := s.auth.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
			s.writeServiceError(w, err)
			return
		}

		s.ClearAuthCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetProfileHandler returns the authenticated user's profile.
func (s *Server) GetProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		profile, err := s.auth.GetProfile(r.Context(), user.ID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// UpdateProfileHandler applies profile changes.
func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	type request struct {
		Username    *string        `json:"username"`
		Preferences map[string]any `json:"preferences"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		updated, err := s.auth.UpdateProfile(r.Context(), user.ID, auth.UpdateProfileParams{
			Username:    req.Username,
			Preferences: req.Preferences,
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// SessionsHandler lists the user's active sessions.
func (s *Server) SessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		active, err := s.auth.Sessions(r.Context(), user.ID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if active == nil {
			active = []*sessions.Session{}
		}
		writeJSON(w, http.StatusOK, active)
	}
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": s.config.GetAppName(),
		})
	}
}
