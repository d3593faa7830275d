// Package middleware provides HTTP middleware for the dashboard's local API.
package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/models"
)

// SessionState is what RequireSession needs to know about the session.
// *auth.Guard satisfies it.
type SessionState interface {
	State() models.SessionState
}

// SessionMiddleware gates protected routes on the session guard.
type SessionMiddleware struct {
	session  SessionState
	loginURL string
}

// NewSessionMiddleware creates a new SessionMiddleware.
func NewSessionMiddleware(session SessionState, loginURL string) *SessionMiddleware {
	return &SessionMiddleware{session: session, loginURL: loginURL}
}

// RequireSession lets requests through only once the session is
// authenticated. While verification is pending it answers 503; an
// unauthenticated session is redirected to the login page.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch m.session.State() {
		case models.SessionAuthenticated:
			next.ServeHTTP(w, r)
		case models.SessionVerifying:
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, "session is being verified")
		default:
			http.Redirect(w, r, m.loginURL, http.StatusFound)
		}
	})
}

// RequestLogger logs one line per request.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	l := logger.Component("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
