package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"trade_dashboard/internal/api"
	"trade_dashboard/internal/auth"
	"trade_dashboard/internal/config"
	"trade_dashboard/internal/dashboard"
	"trade_dashboard/internal/database"
	"trade_dashboard/internal/handlers"
	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/metrics"
	"trade_dashboard/internal/middleware"
	"trade_dashboard/internal/models"
	"trade_dashboard/internal/notify"
	"trade_dashboard/internal/poller"
	"trade_dashboard/internal/repository"
	"trade_dashboard/internal/secure"
	"trade_dashboard/internal/services"
)

// fetchLogRetention is how long fetch history is kept.
const fetchLogRetention = 7 * 24 * time.Hour

// App holds the application dependencies.
type App struct {
	config *config.Config
	db     *database.DB
	logger *logging.Logger
	router *chi.Mux

	manager      *auth.Manager
	guard        *auth.Guard
	logoutBus    *auth.LogoutBus
	relay        *auth.LogoutRelay
	redis        *redis.Client
	dashboard    *dashboard.Dashboard
	toasts       *notify.Bus
	fetchLogRepo *repository.FetchLogRepository

	sessionMiddleware *middleware.SessionMiddleware
	authLimiter       *middleware.RateLimiter
	apiLimiter        *middleware.RateLimiter
	authHandler       *handlers.AuthHandler
	dashHandler       *handlers.DashboardHandler
}

func main() {
	cfg, err := config.Load("config.toml", os.Getenv("DASH_CONFIG"))
	if err != nil {
		logging.New("info", "console").Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New(cfg.Logging.Level, cfg.LogFormat())

	// Initialize database
	db, err := database.New(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	logger.Info().Str("path", cfg.DBPath).Msg("database migrations completed")

	sealer, err := secure.NewSealer(cfg.EncryptionSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid encryption secret")
	}

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	app, err := newApp(appCtx, cfg, db, sealer, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer app.close()

	app.setupRouter()
	app.start(appCtx)

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      app.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Msgf("server starting on http://%s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server...")

	app.dashboard.Unmount()
	cancelApp()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

func newApp(ctx context.Context, cfg *config.Config, db *database.DB, sealer *secure.Sealer, logger *logging.Logger) (*App, error) {
	storage := repository.NewStorageRepository(db, sealer)
	fetchLogRepo := repository.NewFetchLogRepository(db)

	manager := auth.NewManager(storage, logger)
	if err := manager.Load(); err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.BackendURL, manager, api.Options{
		Timeout:   cfg.Client.GetTimeout(),
		RateLimit: cfg.Client.RateLimit,
		Burst:     cfg.Client.Burst,
		Logger:    logger,
	})
	manager.WithAuthenticator(client.Fork())

	toasts := notify.NewBus(logger)
	navigator := auth.NewTerminalNavigator(os.Stdout, logger)
	guard := auth.NewGuard(manager, client.Fork(), navigator, cfg.LoginURL(), logger)

	policy := poller.LastWriteWins
	if cfg.Polling.DiscardStale {
		policy = poller.DiscardStale
	}
	dash := dashboard.New(client, toasts, dashboard.Options{
		Intervals: dashboard.Intervals{
			Holdings:  cfg.Polling.HoldingsInterval(),
			Positions: cfg.Polling.PositionsInterval(),
			Orders:    cfg.Polling.OrdersInterval(),
			Watchlist: cfg.Polling.WatchlistInterval(),
		},
		Policy:   policy,
		Recorder: fetchLogRepo,
		Logger:   logger,
	})
	orders := services.NewOrderService(client.Fork(), toasts, logger)

	guard.OnChange(func(state models.SessionState) {
		if state == models.SessionAuthenticated {
			dash.Mount(ctx)
			return
		}
		dash.Unmount()
	})

	app := &App{
		config:       cfg,
		db:           db,
		logger:       logger,
		manager:      manager,
		guard:        guard,
		logoutBus:    auth.NewLogoutBus(),
		dashboard:    dash,
		toasts:       toasts,
		fetchLogRepo: fetchLogRepo,
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		app.redis = redis.NewClient(opts)
		app.relay = auth.NewLogoutRelay(app.redis, cfg.Redis.Channel, app.logoutBus, logger)
	}

	app.sessionMiddleware = middleware.NewSessionMiddleware(guard, cfg.LoginURL())
	app.authLimiter = middleware.NewRateLimiter(cfg.RateLimit.Auth, 5)
	app.apiLimiter = middleware.NewRateLimiter(cfg.RateLimit.API, int(cfg.RateLimit.API*2)+1)

	deps := handlers.NewDependencies(cfg).
		WithLogger(logger).
		WithSession(manager, guard, app.logoutBus).
		WithDashboard(dash).
		WithOrderService(orders).
		WithToasts(toasts).
		WithFetchLogRepo(fetchLogRepo)
	if app.relay != nil {
		deps.WithRelay(app.relay)
	}
	app.authHandler = handlers.NewAuthHandler(deps)
	app.dashHandler = handlers.NewDashboardHandler(deps)

	return app, nil
}

// start launches the background workers and the first session check.
func (app *App) start(ctx context.Context) {
	handler := &auth.LogoutHandler{
		Manager:   app.manager,
		Guard:     app.guard,
		Navigator: auth.NewTerminalNavigator(os.Stdout, app.logger),
		HomeURL:   app.config.HomeURL(),
		Hooks:     []func(){app.dashboard.Unmount},
		Logger:    app.logger,
	}
	go func() {
		if err := app.logoutBus.Run(ctx, handler.Handle); err != nil {
			app.logger.Error().Err(err).Msg("logout handler stopped")
		}
	}()

	if app.relay != nil {
		go func() {
			if err := app.relay.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				app.logger.Error().Err(err).Msg("logout relay stopped")
			}
		}()
	}

	go app.pruneFetchLog(ctx)

	go app.guard.Verify(ctx)
}

func (app *App) pruneFetchLog(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		n, err := app.fetchLogRepo.DeleteOlderThan(time.Now().Add(-fetchLogRetention))
		if err != nil {
			app.logger.Warn().Err(err).Msg("failed to prune fetch log")
		} else if n > 0 {
			app.logger.Debug().Int64("deleted", n).Msg("pruned fetch log")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (app *App) close() {
	app.authLimiter.Stop()
	app.apiLimiter.Stop()
	app.toasts.Close()
	if app.redis != nil {
		_ = app.redis.Close()
	}
}

func (app *App) setupRouter() {
	r := chi.NewRouter()

	// Chi middleware (aliased as chimw to avoid conflict with our middleware package)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(app.logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", app.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	// Rate limited to prevent brute force attacks
	r.Group(func(r chi.Router) {
		r.Use(app.authLimiter.Limit)
		r.Use(middleware.NoStore)
		r.Post("/login", app.authHandler.Login)
		r.Post("/signup", app.authHandler.Signup)
	})

	r.With(middleware.NoStore).Post("/logout", app.authHandler.Logout)
	r.With(middleware.NoStore).Get("/api/session", app.authHandler.Session)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(app.apiLimiter.Limit)
		r.Use(middleware.NoStore)
		r.With(app.authHandler.Bootstrap, app.sessionMiddleware.RequireSession).
			Get("/dashboard", app.dashHandler.Overview)

		r.Group(func(r chi.Router) {
			r.Use(app.sessionMiddleware.RequireSession)

			r.Get("/api/holdings", app.dashHandler.Holdings)
			r.Get("/api/positions", app.dashHandler.Positions)

			r.Get("/api/orders", app.dashHandler.Orders)
			r.Post("/api/orders", app.dashHandler.PlaceOrder)
			r.Get("/api/orders/preview", app.dashHandler.PreviewOrder)

			r.Get("/api/watchlist", app.dashHandler.Watchlist)
			r.Post("/api/watchlist", app.dashHandler.AddWatchlist)
			r.Delete("/api/watchlist/{id}", app.dashHandler.RemoveWatchlist)

			r.Get("/api/toasts", app.dashHandler.Toasts)
			r.Delete("/api/toasts/{id}", app.dashHandler.DismissToast)

			r.Get("/api/fetch-log", app.dashHandler.FetchLog)
		})
	})

	r.Get("/", app.handleIndex)

	app.router = r
}

// handleHealth returns the server health status.
func (app *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"session": string(app.guard.State()),
	})
}

// handleIndex redirects to the dashboard or the login page based on the session.
func (app *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	if app.guard.State() == models.SessionAuthenticated {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, app.config.LoginURL(), http.StatusSeeOther)
}
