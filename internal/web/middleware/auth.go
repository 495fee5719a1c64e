package middleware

import (
	"log/slog"
	"net/http"
	"strings"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "recon_session"

// SessionValidator reports whether a session token is live.
type SessionValidator interface {
	Validate(token string) bool
}

// SessionAuth returns middleware that rejects requests without a valid
// session token. The token is read from the session cookie, falling back
// to an Authorization: Bearer header for non-browser clients.
func SessionAuth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				slog.Warn("auth: missing session token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, `{"error":"missing session token","code":"AUTH_MISSING_SESSION"}`, http.StatusUnauthorized)
				return
			}

			if !sessions.Validate(token) {
				slog.Warn("auth: invalid or expired session",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, `{"error":"invalid or expired session","code":"AUTH_INVALID_SESSION"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromRequest extracts the session token from cookie or bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
