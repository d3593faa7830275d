package auth

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/skip2/go-qrcode"

	"trade_dashboard/internal/api"
	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/metrics"
	"trade_dashboard/internal/models"
)

// Verifier checks a token against the backend.
type Verifier interface {
	Verify(ctx context.Context, token string) api.Result
}

// Navigator sends the user somewhere else.
type Navigator interface {
	Redirect(url string)
}

var sessionStates = []string{
	string(models.SessionVerifying),
	string(models.SessionAuthenticated),
	string(models.SessionUnauthenticated),
}

// Guard decides whether protected content may be rendered. It starts in
// Verifying and settles in Authenticated or Unauthenticated.
type Guard struct {
	manager  *Manager
	verifier Verifier
	nav      Navigator
	loginURL string
	logger   *logging.Logger

	mu        sync.Mutex
	state     models.SessionState
	listeners []func(models.SessionState)
}

// NewGuard creates a guard in the Verifying state.
func NewGuard(manager *Manager, verifier Verifier, nav Navigator, loginURL string, logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.NewSilent()
	}
	g := &Guard{
		manager:  manager,
		verifier: verifier,
		nav:      nav,
		loginURL: loginURL,
		logger:   logger.Component("guard"),
		state:    models.SessionVerifying,
	}
	metrics.SetSessionState(string(g.state), sessionStates...)
	return g
}

// State returns the current guard state.
func (g *Guard) State() models.SessionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// OnChange registers fn to run after every state transition.
func (g *Guard) OnChange(fn func(models.SessionState)) {
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

// Verify resolves the Verifying state. Without a token it settles on
// Unauthenticated without touching the network. A rejected token is cleared
// from storage. Leaving as Unauthenticated redirects to the login page.
// Calling Verify on a settled guard returns the settled state.
//
// The answer only applies if the guard is still Verifying and the stored
// token is the one that was checked. Otherwise the current state wins.
func (g *Guard) Verify(ctx context.Context) models.SessionState {
	if s := g.State(); s != models.SessionVerifying {
		return s
	}

	token := g.manager.Token()
	if token == "" {
		g.logger.Debug().Msg("no token, skipping verification")
		return g.settle(token, models.SessionUnauthenticated, false)
	}

	res := g.verifier.Verify(ctx, token)
	if !res.Success {
		g.logger.Info().Int("status", res.StatusCode).Str("reason", res.Message).Msg("token rejected")
		return g.settle(token, models.SessionUnauthenticated, true)
	}
	return g.settle(token, models.SessionAuthenticated, false)
}

// Reset returns the guard to Verifying so the next Verify checks the
// current token again.
func (g *Guard) Reset() {
	g.transition(models.SessionVerifying)
}

// Invalidate marks the session Unauthenticated without redirecting. The
// caller is responsible for navigation.
func (g *Guard) Invalidate() {
	g.transition(models.SessionUnauthenticated)
}

// settle leaves Verifying for state when token is still the stored one.
// clear removes the credential in the same step.
func (g *Guard) settle(token string, state models.SessionState, clear bool) models.SessionState {
	g.mu.Lock()
	if g.state != models.SessionVerifying || g.manager.Token() != token {
		current := g.state
		g.mu.Unlock()
		g.logger.Debug().Str("state", string(current)).Msg("discarding stale verification")
		return current
	}
	if clear {
		if err := g.manager.Clear(); err != nil {
			g.logger.Error().Err(err).Msg("failed to clear rejected credential")
		}
	}
	g.state = state
	listeners := append([]func(models.SessionState){}, g.listeners...)
	g.mu.Unlock()

	g.announce(state, listeners)
	if state == models.SessionUnauthenticated && g.nav != nil {
		g.nav.Redirect(g.loginURL)
	}
	return state
}

// transition moves to state and reports whether it changed anything.
func (g *Guard) transition(state models.SessionState) bool {
	g.mu.Lock()
	if g.state == state {
		g.mu.Unlock()
		return false
	}
	g.state = state
	listeners := append([]func(models.SessionState){}, g.listeners...)
	g.mu.Unlock()

	g.announce(state, listeners)
	return true
}

func (g *Guard) announce(state models.SessionState, listeners []func(models.SessionState)) {
	metrics.SetSessionState(string(state), sessionStates...)
	g.logger.Debug().Str("state", string(state)).Msg("session state changed")
	for _, fn := range listeners {
		fn(state)
	}
}

// TerminalNavigator "navigates" by writing the target to a terminal, with
// a QR code so the page can be opened on another device.
type TerminalNavigator struct {
	out    io.Writer
	logger *logging.Logger

	mu   sync.Mutex
	last string
}

// NewTerminalNavigator creates a navigator writing to out.
func NewTerminalNavigator(out io.Writer, logger *logging.Logger) *TerminalNavigator {
	if logger == nil {
		logger = logging.NewSilent()
	}
	return &TerminalNavigator{out: out, logger: logger.Component("navigator")}
}

// Redirect prints url and remembers it.
func (n *TerminalNavigator) Redirect(url string) {
	n.mu.Lock()
	n.last = url
	n.mu.Unlock()

	n.logger.Info().Str("url", url).Msg("redirect")
	if n.out == nil {
		return
	}

	fmt.Fprintf(n.out, "Open %s\n", url)
	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to render QR code")
		return
	}
	fmt.Fprint(n.out, qr.ToSmallString(false))
}

// Last returns the most recent redirect target.
func (n *TerminalNavigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}
