// Package handlers provides HTTP handlers for the dashboard's local API.
package handlers

import (
	"trade_dashboard/internal/auth"
	"trade_dashboard/internal/config"
	"trade_dashboard/internal/dashboard"
	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/notify"
	"trade_dashboard/internal/repository"
	"trade_dashboard/internal/services"
)

// Dependencies holds all handler dependencies.
type Dependencies struct {
	Config *config.Config
	Logger *logging.Logger

	// Session
	Manager   *auth.Manager
	Guard     *auth.Guard
	LogoutBus *auth.LogoutBus
	Relay     *auth.LogoutRelay // optional

	// Views and actions
	Dashboard *dashboard.Dashboard
	Orders    *services.OrderService
	Toasts    *notify.Bus

	// Repositories
	FetchLogRepo *repository.FetchLogRepository
}

// NewDependencies creates an empty Dependencies container.
func NewDependencies(cfg *config.Config) *Dependencies {
	return &Dependencies{Config: cfg, Logger: logging.NewSilent()}
}

// WithLogger sets the logger.
func (d *Dependencies) WithLogger(l *logging.Logger) *Dependencies {
	d.Logger = l
	return d
}

// WithSession sets the credential owner, the guard and the logout bus.
func (d *Dependencies) WithSession(m *auth.Manager, g *auth.Guard, bus *auth.LogoutBus) *Dependencies {
	d.Manager = m
	d.Guard = g
	d.LogoutBus = bus
	return d
}

// WithRelay sets the cross-process logout relay.
func (d *Dependencies) WithRelay(r *auth.LogoutRelay) *Dependencies {
	d.Relay = r
	return d
}

// WithDashboard sets the dashboard views.
func (d *Dependencies) WithDashboard(db *dashboard.Dashboard) *Dependencies {
	d.Dashboard = db
	return d
}

// WithOrderService sets the order service.
func (d *Dependencies) WithOrderService(s *services.OrderService) *Dependencies {
	d.Orders = s
	return d
}

// WithToasts sets the notification bus.
func (d *Dependencies) WithToasts(b *notify.Bus) *Dependencies {
	d.Toasts = b
	return d
}

// WithFetchLogRepo sets the fetch log repository.
func (d *Dependencies) WithFetchLogRepo(r *repository.FetchLogRepository) *Dependencies {
	d.FetchLogRepo = r
	return d
}
