// Package dashboard keeps the holdings, positions, orders and watchlist
// views fresh and turns their data into display-ready snapshots.
package dashboard

import (
	"context"
	"sync"
	"time"

	"trade_dashboard/internal/api"
	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/poller"
)

// FetchRecorder keeps a history of fetch outcomes.
// *repository.FetchLogRepository satisfies it.
type FetchRecorder interface {
	Start(view string) (int64, error)
	Complete(id int64, records int) error
	Fail(id int64, errorMsg string) error
}

// loader fetches the data of one view and reports how many records it holds.
type loader[T any] func(ctx context.Context, client *api.Client) (T, int, api.Result)

// view is the polling core shared by every dashboard view. The last
// successfully fetched data is kept until a newer fetch succeeds; a failed
// fetch only sets the inline error.
type view[T any] struct {
	name     string
	client   *api.Client
	poller   *poller.Poller
	load     loader[T]
	recorder FetchRecorder
	logger   *logging.Logger

	mu        sync.RWMutex
	data      T
	loaded    bool
	lastErr   string
	updatedAt time.Time
}

// ViewOptions configures one view.
type ViewOptions struct {
	Interval time.Duration
	Policy   poller.Policy
	Recorder FetchRecorder
	Logger   *logging.Logger
}

func newView[T any](name string, client *api.Client, load loader[T], opts ViewOptions) *view[T] {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewSilent()
	}
	v := &view[T]{
		name:     name,
		client:   client,
		load:     load,
		recorder: opts.Recorder,
		logger:   logger.Component("view." + name),
	}
	v.poller = poller.New(name, opts.Interval, v.fetch, opts.Policy, logger)
	return v
}

func (v *view[T]) fetch(ctx context.Context, tick *poller.Tick) {
	logID := v.recordStart()

	data, count, res := v.load(ctx, v.client)
	if !res.Success {
		applied := tick.Apply(func() {
			v.mu.Lock()
			v.lastErr = res.Message
			v.mu.Unlock()
		})
		if applied {
			v.logger.Warn().Uint64("tick", tick.Seq).Str("error", res.Message).Msg("fetch failed")
		}
		v.recordFail(logID, res.Message)
		return
	}

	tick.Apply(func() {
		v.mu.Lock()
		v.data = data
		v.loaded = true
		v.lastErr = ""
		v.updatedAt = time.Now()
		v.mu.Unlock()
	})
	v.recordComplete(logID, count)
}

func (v *view[T]) recordStart() int64 {
	if v.recorder == nil {
		return 0
	}
	id, err := v.recorder.Start(v.name)
	if err != nil {
		v.logger.Debug().Err(err).Msg("failed to record fetch start")
		return 0
	}
	return id
}

func (v *view[T]) recordComplete(id int64, records int) {
	if v.recorder == nil || id == 0 {
		return
	}
	if err := v.recorder.Complete(id, records); err != nil {
		v.logger.Debug().Err(err).Msg("failed to record fetch completion")
	}
}

func (v *view[T]) recordFail(id int64, msg string) {
	if v.recorder == nil || id == 0 {
		return
	}
	if err := v.recorder.Fail(id, msg); err != nil {
		v.logger.Debug().Err(err).Msg("failed to record fetch failure")
	}
}

// Mount starts polling.
func (v *view[T]) Mount(ctx context.Context) { v.poller.Start(ctx) }

// Unmount stops polling. No result is applied after it returns.
func (v *view[T]) Unmount() { v.poller.Stop() }

// Mounted reports whether the view is polling.
func (v *view[T]) Mounted() bool { return v.poller.Active() }

// Refresh fetches again right away.
func (v *view[T]) Refresh() { v.poller.Refresh() }

// Wait blocks until every started fetch has returned.
func (v *view[T]) Wait() { v.poller.Wait() }

// current returns the last applied data and view status.
func (v *view[T]) current() (T, Status) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.data, Status{
		Loading:   v.client.IsLoading(),
		Loaded:    v.loaded,
		Error:     v.lastErr,
		UpdatedAt: v.updatedAt,
	}
}

// Status is the part of every snapshot that describes the fetch itself.
type Status struct {
	Loading   bool      `json:"loading"`
	Loaded    bool      `json:"loaded"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}
