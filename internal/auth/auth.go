// Package auth owns the persisted credential and decides whether the
// dashboard may be shown.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"trade_dashboard/internal/api"
	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/models"
	"trade_dashboard/internal/repository"
)

// Fallback messages used when the backend did not explain a failure.
const (
	LoginFailedMessage  = "Login failed"
	SignupFailedMessage = "Signup failed"
)

// Store is the durable key/value store the credential lives in.
// *repository.StorageRepository satisfies it.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	SetSecret(key, value string) error
	Delete(keys ...string) error
}

// Authenticator exchanges user input for a credential.
type Authenticator interface {
	Login(ctx context.Context, req api.LoginRequest) (models.Credential, api.Result)
	Signup(ctx context.Context, req api.SignupRequest) (models.Credential, api.Result)
}

// Outcome is what a login or signup attempt reports back to the caller.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Manager is the single owner of the credential. Reads come from an
// in-memory copy; every write goes through to the store first.
type Manager struct {
	store  Store
	authn  Authenticator
	logger *logging.Logger

	mu   sync.RWMutex
	cred models.Credential

	opMu    sync.Mutex
	loading bool
	lastErr string
}

// NewManager creates a manager over store. Call Load to pick up a credential
// persisted by an earlier run.
func NewManager(store Store, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewSilent()
	}
	return &Manager{
		store:  store,
		logger: logger.Component("auth"),
	}
}

// WithAuthenticator sets the backend used by Login and Signup.
func (m *Manager) WithAuthenticator(a Authenticator) *Manager {
	m.authn = a
	return m
}

// Load reads the persisted credential. A user record that cannot be decoded
// is dropped; the token is kept.
func (m *Manager) Load() error {
	token, _, err := m.store.Get(repository.KeyToken)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}

	var user *models.User
	raw, ok, err := m.store.Get(repository.KeyUser)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if ok && raw != "" {
		var u models.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			m.logger.Warn().Err(err).Msg("discarding unreadable stored user")
		} else {
			user = &u
		}
	}

	m.mu.Lock()
	m.cred = models.Credential{Token: token, User: user}
	m.mu.Unlock()
	return nil
}

// Token returns the current bearer token, or "" when signed out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred.Token
}

// User returns the signed-in user, or nil.
func (m *Manager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cred.User == nil {
		return nil
	}
	u := *m.cred.User
	return &u
}

// Bootstrap stores a token handed over out of band (for example in a
// redirect URL). The stored user is left untouched.
func (m *Manager) Bootstrap(token string) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}
	if err := m.store.SetSecret(repository.KeyToken, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	m.mu.Lock()
	m.cred.Token = token
	m.mu.Unlock()
	m.logger.Info().Msg("token bootstrapped")
	return nil
}

// Login authenticates with username and password and persists the result.
func (m *Manager) Login(ctx context.Context, username, password string) Outcome {
	return m.authenticate(ctx, LoginFailedMessage, func(a Authenticator) (models.Credential, api.Result) {
		return a.Login(ctx, api.LoginRequest{Username: username, Password: password})
	})
}

// Signup registers a new user and persists the resulting credential.
func (m *Manager) Signup(ctx context.Context, username, email, password string) Outcome {
	return m.authenticate(ctx, SignupFailedMessage, func(a Authenticator) (models.Credential, api.Result) {
		return a.Signup(ctx, api.SignupRequest{Username: username, Email: email, Password: password})
	})
}

func (m *Manager) authenticate(ctx context.Context, fallback string, call func(Authenticator) (models.Credential, api.Result)) Outcome {
	if m.authn == nil {
		return m.finish(Outcome{Message: fallback})
	}

	m.opMu.Lock()
	m.loading = true
	m.lastErr = ""
	m.opMu.Unlock()

	cred, res := call(m.authn)
	if !res.Success {
		// Only the backend's own explanation is shown; transport text is not.
		msg := fallback
		if res.FromServer && res.Message != "" {
			msg = res.Message
		}
		m.logger.Warn().Int("status", res.StatusCode).Str("reason", res.Message).Msg("authentication failed")
		return m.finish(Outcome{Message: msg})
	}

	if err := m.save(cred); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist credential")
		return m.finish(Outcome{Message: fallback})
	}
	return m.finish(Outcome{Success: true})
}

func (m *Manager) finish(o Outcome) Outcome {
	m.opMu.Lock()
	m.loading = false
	if !o.Success {
		m.lastErr = o.Message
	}
	m.opMu.Unlock()
	return o
}

func (m *Manager) save(cred models.Credential) error {
	if err := m.store.SetSecret(repository.KeyToken, cred.Token); err != nil {
		return err
	}
	if cred.User != nil {
		data, err := json.Marshal(cred.User)
		if err != nil {
			return err
		}
		if err := m.store.Set(repository.KeyUser, string(data)); err != nil {
			return err
		}
	} else if err := m.store.Delete(repository.KeyUser); err != nil {
		return err
	}

	m.mu.Lock()
	m.cred = cred
	m.mu.Unlock()
	return nil
}

// IsLoading reports whether a login or signup is in progress.
func (m *Manager) IsLoading() bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.loading
}

// LastError returns the message of the last failed login or signup.
func (m *Manager) LastError() string {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.lastErr
}

// Clear removes the token and the user from memory and from the store.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.cred = models.Credential{}
	m.mu.Unlock()

	if err := m.store.Delete(repository.KeyToken, repository.KeyUser); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
