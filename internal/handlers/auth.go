package handlers

import (
	"context"
	"net/http"
	"strings"

	"trade_dashboard/internal/auth"
	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/middleware"
	"trade_dashboard/internal/models"
)

// AuthHandler handles login, signup, logout and the session status.
type AuthHandler struct {
	manager   *auth.Manager
	guard     *auth.Guard
	logoutBus *auth.LogoutBus
	relay     *auth.LogoutRelay
	logger    *logging.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(deps *Dependencies) *AuthHandler {
	return &AuthHandler{
		manager:   deps.Manager,
		guard:     deps.Guard,
		logoutBus: deps.LogoutBus,
		relay:     deps.Relay,
		logger:    deps.Logger.Component("handlers.auth"),
	}
}

type loginForm struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signupForm struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse describes the session after an auth action.
type sessionResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	State   models.SessionState `json:"state"`
	User    *models.User        `json:"user,omitempty"`
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, err)
		return
	}

	var errs middleware.ValidationErrors
	form.Username = middleware.SanitizeString(form.Username)
	if !middleware.ValidateRequired(form.Username) {
		errs.Add("username", "is required")
	}
	if !middleware.ValidateRequired(form.Password) {
		errs.Add("password", "is required")
	}
	if errs.HasErrors() {
		errs.WriteJSON(w)
		return
	}

	outcome := h.manager.Login(r.Context(), form.Username, form.Password)
	h.respond(w, r, outcome)
}

// Signup handles POST /signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var form signupForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, err)
		return
	}

	var errs middleware.ValidationErrors
	form.Username = middleware.SanitizeString(form.Username)
	form.Email = strings.TrimSpace(form.Email)
	if !middleware.ValidateLength(form.Username, 1, 64) {
		errs.Add("username", "must be between 1 and 64 characters")
	}
	if !middleware.ValidateEmail(form.Email) {
		errs.Add("email", "is not a valid email address")
	}
	if !middleware.ValidateRequired(form.Password) {
		errs.Add("password", "is required")
	}
	if errs.HasErrors() {
		errs.WriteJSON(w)
		return
	}

	outcome := h.manager.Signup(r.Context(), form.Username, form.Email, form.Password)
	h.respond(w, r, outcome)
}

func (h *AuthHandler) respond(w http.ResponseWriter, r *http.Request, outcome auth.Outcome) {
	if !outcome.Success {
		writeJSON(w, http.StatusUnauthorized, sessionResponse{
			Message: outcome.Message,
			State:   h.guard.State(),
		})
		return
	}

	state := h.reverify(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{
		Success: true,
		State:   state,
		User:    h.manager.User(),
	})
}

// reverify runs the guard again for a freshly stored token.
func (h *AuthHandler) reverify(ctx context.Context) models.SessionState {
	h.guard.Reset()
	return h.guard.Verify(ctx)
}

// Logout handles POST /logout by raising a force logout, locally and on
// the relay when one is configured.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.logoutBus.Emit("logout")
	if h.relay != nil {
		if err := h.relay.Publish(r.Context()); err != nil {
			h.logger.Warn().Err(err).Msg("failed to relay logout")
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Session handles GET /api/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     h.guard.State(),
		"user":      h.manager.User(),
		"loading":   h.manager.IsLoading(),
		"lastError": h.manager.LastError(),
	})
}

// Bootstrap is middleware for GET /dashboard. A token passed in the query
// string is stored, verified and then stripped by redirecting to the bare
// path.
func (h *AuthHandler) Bootstrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		if err := h.manager.Bootstrap(token); err != nil {
			h.logger.Error().Err(err).Msg("failed to store bootstrap token")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "failed to store token"})
			return
		}
		h.reverify(r.Context())
		http.Redirect(w, r, r.URL.Path, http.StatusFound)
	})
}
