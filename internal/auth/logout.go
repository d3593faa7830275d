package auth

import (
	"context"
	"errors"
	"sync/atomic"

	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/metrics"
)

// ErrHandlerRegistered is returned when a second consumer tries to run the
// logout bus.
var ErrHandlerRegistered = errors.New("force-logout handler already registered")

// LogoutEvent asks the process to drop the session.
type LogoutEvent struct {
	Source string
}

// LogoutBus carries force-logout signals from any emitter to exactly one
// handler. Signals raised while one is still pending are coalesced.
type LogoutBus struct {
	events  chan LogoutEvent
	running atomic.Bool
}

// NewLogoutBus creates an idle logout bus.
func NewLogoutBus() *LogoutBus {
	return &LogoutBus{events: make(chan LogoutEvent, 1)}
}

// Emit raises a force-logout signal. It never blocks.
func (b *LogoutBus) Emit(source string) {
	select {
	case b.events <- LogoutEvent{Source: source}:
	default:
	}
}

// Run delivers events to handler until ctx is done. Only one Run may be
// active for the lifetime of the bus.
func (b *LogoutBus) Run(ctx context.Context, handler func(LogoutEvent)) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrHandlerRegistered
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.events:
			metrics.ForceLogouts.WithLabelValues(ev.Source).Inc()
			handler(ev)
		}
	}
}

// LogoutHandler performs the force logout: storage is cleared, the guard
// drops to Unauthenticated, hooks run and the user lands on the home page.
type LogoutHandler struct {
	Manager   *Manager
	Guard     *Guard
	Navigator Navigator
	HomeURL   string
	Hooks     []func()
	Logger    *logging.Logger
}

// Handle runs the logout for ev.
func (h *LogoutHandler) Handle(ev LogoutEvent) {
	logger := h.Logger
	if logger == nil {
		logger = logging.NewSilent()
	}
	logger.Info().Str("source", ev.Source).Msg("force logout")

	if err := h.Manager.Clear(); err != nil {
		logger.Error().Err(err).Msg("failed to clear storage on logout")
	}
	if h.Guard != nil {
		h.Guard.Invalidate()
	}
	for _, hook := range h.Hooks {
		hook()
	}

	home := h.HomeURL
	if home == "" {
		home = "/"
	}
	if h.Navigator != nil {
		h.Navigator.Redirect(home)
	}
}
