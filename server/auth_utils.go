package server

import (
	"net/http"

	"github.com/avalontm/gemini-auth/token"
)

// authCookieName is the cookie carrying the access token for browser clients
const authCookieName = "auth_token"

// tokenFromRequest extracts the access token from the request. A Bearer
// Authorization header takes precedence, even when its token is bad; the
// auth cookie is consulted only when no Bearer header is present.
func (s *Server) tokenFromRequest(r *http.Request) string {
	if rawToken := token.ExtractFromHeader(r.Header.Get("Authorization")); rawToken != "" {
		return rawToken
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// SetAuthCookie stores the access token in an http-only cookie whose
// lifetime matches the token's.
func (s *Server) SetAuthCookie(w http.ResponseWriter, r *http.Request, accessToken string) {
	isSecure := getScheme(r) == "https"

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    accessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.config.GetAccessTokenTTL().Seconds()),
	})
}

// ClearAuthCookie removes the auth cookie.
func (s *Server) ClearAuthCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
