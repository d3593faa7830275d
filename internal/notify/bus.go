// Package notify implements the in-process notification bus behind the
// dashboard's toasts.
package notify

import (
	"sync"
	"time"

	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/metrics"
	"trade_dashboard/internal/models"
)

// DefaultDuration is how long a toast stays visible unless told otherwise.
const DefaultDuration = 3000 * time.Millisecond

// Publisher is the emitting side of the bus.
type Publisher interface {
	Emit(message string, severity models.Severity) int64
	EmitFor(message string, severity models.Severity, d time.Duration) int64
}

// Listener receives the ordered list of active toasts after every change.
type Listener func(active []models.Toast)

// Bus keeps active toasts in emission order and expires each independently.
type Bus struct {
	mu        sync.Mutex
	toasts    []models.Toast
	timers    map[int64]*time.Timer
	lastID    int64
	listeners map[int]Listener
	nextSub   int
	now       func() time.Time
	logger    *logging.Logger
}

// NewBus creates an empty notification bus.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NewSilent()
	}
	return &Bus{
		timers:    make(map[int64]*time.Timer),
		listeners: make(map[int]Listener),
		now:       time.Now,
		logger:    logger.Component("notify"),
	}
}

// Emit publishes a toast with the default duration.
func (b *Bus) Emit(message string, severity models.Severity) int64 {
	return b.EmitFor(message, severity, DefaultDuration)
}

// EmitFor publishes a toast that expires after d. A non-positive d keeps the
// toast until it is dismissed.
func (b *Bus) EmitFor(message string, severity models.Severity, d time.Duration) int64 {
	if severity == "" {
		severity = models.SeverityInfo
	}

	b.mu.Lock()
	now := b.now()
	id := now.UnixMilli()
	if id <= b.lastID {
		id = b.lastID + 1
	}
	b.lastID = id

	toast := models.Toast{
		ID:        id,
		Message:   message,
		Severity:  severity,
		CreatedAt: now,
	}
	if d > 0 {
		toast.ExpiresAt = now.Add(d)
		b.timers[id] = time.AfterFunc(d, func() { b.Dismiss(id) })
	}
	b.toasts = append(b.toasts, toast)
	snapshot, listeners := b.snapshotLocked()
	b.mu.Unlock()

	metrics.ToastsEmitted.WithLabelValues(string(severity)).Inc()
	b.logger.Debug().Int64("id", id).Str("severity", string(severity)).Msg(message)
	notifyAll(listeners, snapshot)
	return id
}

// Success publishes a success toast.
func (b *Bus) Success(message string) int64 { return b.Emit(message, models.SeveritySuccess) }

// Error publishes an error toast.
func (b *Bus) Error(message string) int64 { return b.Emit(message, models.SeverityError) }

// Warning publishes a warning toast.
func (b *Bus) Warning(message string) int64 { return b.Emit(message, models.SeverityWarning) }

// Dismiss removes the toast with the given id. Unknown ids are ignored.
func (b *Bus) Dismiss(id int64) {
	b.mu.Lock()
	idx := -1
	for i, t := range b.toasts {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return
	}
	if timer, ok := b.timers[id]; ok {
		timer.Stop()
		delete(b.timers, id)
	}
	b.toasts = append(b.toasts[:idx:idx], b.toasts[idx+1:]...)
	snapshot, listeners := b.snapshotLocked()
	b.mu.Unlock()

	notifyAll(listeners, snapshot)
}

// Active returns the active toasts in emission order.
func (b *Bus) Active() []models.Toast {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Toast, len(b.toasts))
	copy(out, b.toasts)
	return out
}

// Subscribe registers a listener and returns a function that removes it.
func (b *Bus) Subscribe(fn Listener) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Close stops every pending expiry timer.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, timer := range b.timers {
		timer.Stop()
		delete(b.timers, id)
	}
}

func (b *Bus) snapshotLocked() ([]models.Toast, []Listener) {
	if len(b.listeners) == 0 {
		return nil, nil
	}
	snapshot := make([]models.Toast, len(b.toasts))
	copy(snapshot, b.toasts)
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	return snapshot, listeners
}

func notifyAll(listeners []Listener, snapshot []models.Toast) {
	for _, l := range listeners {
		l(snapshot)
	}
}
