package dashboard

import (
	"context"
	"sync"
	"time"

	"trade_dashboard/internal/api"
	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/notify"
	"trade_dashboard/internal/poller"
)

// Intervals holds the refresh interval of every view. Zero fetches once.
type Intervals struct {
	Holdings  time.Duration
	Positions time.Duration
	Orders    time.Duration
	Watchlist time.Duration
}

// Options configures a Dashboard.
type Options struct {
	Intervals Intervals
	Policy    poller.Policy
	Recorder  FetchRecorder
	Logger    *logging.Logger
}

// Dashboard groups the views shown once a session is authenticated. Each
// view owns a fork of the client, so loading and error state stay per view.
type Dashboard struct {
	Holdings  *HoldingsView
	Positions *PositionsView
	Orders    *OrdersView
	Watchlist *WatchlistView

	logger *logging.Logger

	mu      sync.Mutex
	mounted bool
}

// New creates an unmounted dashboard.
func New(client *api.Client, publisher notify.Publisher, opts Options) *Dashboard {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewSilent()
	}
	viewOpts := func(interval time.Duration) ViewOptions {
		return ViewOptions{
			Interval: interval,
			Policy:   opts.Policy,
			Recorder: opts.Recorder,
			Logger:   logger,
		}
	}

	return &Dashboard{
		Holdings:  NewHoldingsView(client.Fork(), viewOpts(opts.Intervals.Holdings)),
		Positions: NewPositionsView(client.Fork(), viewOpts(opts.Intervals.Positions)),
		Orders:    NewOrdersView(client.Fork(), viewOpts(opts.Intervals.Orders)),
		Watchlist: NewWatchlistView(client.Fork(), publisher, viewOpts(opts.Intervals.Watchlist)),
		logger:    logger.Component("dashboard"),
	}
}

// Mount starts every view. Mounting twice does nothing.
func (d *Dashboard) Mount(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mounted {
		return
	}
	d.mounted = true

	d.Holdings.Mount(ctx)
	d.Positions.Mount(ctx)
	d.Orders.Mount(ctx)
	d.Watchlist.Mount(ctx)
	d.logger.Info().Msg("dashboard mounted")
}

// Unmount stops every view. Once it returns no view changes state.
func (d *Dashboard) Unmount() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mounted {
		return
	}
	d.mounted = false

	d.Holdings.Unmount()
	d.Positions.Unmount()
	d.Orders.Unmount()
	d.Watchlist.Unmount()
	d.logger.Info().Msg("dashboard unmounted")
}

// Mounted reports whether the views are polling.
func (d *Dashboard) Mounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounted
}

// Wait blocks until every started fetch of every view has returned.
func (d *Dashboard) Wait() {
	d.Holdings.Wait()
	d.Positions.Wait()
	d.Orders.Wait()
	d.Watchlist.Wait()
}
