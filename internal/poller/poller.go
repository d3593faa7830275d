// Package poller runs a fetch immediately and then on a fixed interval until
// stopped.
//
// Ticks are scheduled from initiation, not completion, so a slow fetch can
// overlap the next one. Responses apply through Tick.Apply, which refuses
// to run once the poller has been stopped.
package poller

import (
	"context"
	"sync"
	"time"

	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/metrics"
)

// Policy decides what happens when responses arrive out of order.
type Policy int

const (
	// LastWriteWins applies whichever response arrives last.
	LastWriteWins Policy = iota
	// DiscardStale drops a response when a later-initiated one was already applied.
	DiscardStale
)

// Fetch performs one tick. It should apply its result through tick.Apply.
type Fetch func(ctx context.Context, tick *Tick)

// Poller drives a Fetch on an interval. An interval of zero fetches once.
type Poller struct {
	name     string
	interval time.Duration
	fetch    Fetch
	policy   Policy
	logger   *logging.Logger

	// mu also serializes Apply against Stop.
	mu          sync.Mutex
	active      bool
	generation  uint64
	seq         uint64
	lastApplied uint64
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}

	inFlight sync.WaitGroup
}

// Tick identifies one fetch.
type Tick struct {
	Seq uint64

	p   *Poller
	gen uint64
}

// New creates a stopped poller.
func New(name string, interval time.Duration, fetch Fetch, policy Policy, logger *logging.Logger) *Poller {
	if logger == nil {
		logger = logging.NewSilent()
	}
	return &Poller{
		name:     name,
		interval: interval,
		fetch:    fetch,
		policy:   policy,
		logger:   logger.Component("poller." + name),
	}
}

// Name returns the view name the poller was created for.
func (p *Poller) Name() string { return p.name }

// Interval returns the refresh interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Start activates the poller: one fetch now, then one per interval. Calling
// Start on an active poller does nothing.
func (p *Poller) Start(parent context.Context) {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return
	}
	p.active = true
	p.generation++
	p.ctx, p.cancel = context.WithCancel(parent)
	p.done = make(chan struct{})
	ctx, done := p.ctx, p.done
	p.mu.Unlock()

	p.logger.Debug().Dur("interval", p.interval).Msg("polling started")
	p.launch()
	go p.loop(ctx, done)
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.launch()
		}
	}
}

// Refresh starts an extra fetch right away if the poller is active.
func (p *Poller) Refresh() {
	p.launch()
}

func (p *Poller) launch() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.seq++
	tick := &Tick{Seq: p.seq, p: p, gen: p.generation}
	ctx := p.ctx
	p.inFlight.Add(1)
	p.mu.Unlock()

	metrics.PollTicks.WithLabelValues(p.name).Inc()
	go func() {
		defer p.inFlight.Done()
		p.fetch(ctx, tick)
	}()
}

// Stop deactivates the poller. Once Stop returns no new fetch begins and no
// in-flight fetch can apply its result. It does not wait for in-flight
// requests; their contexts are cancelled.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	p.cancel()
	done := p.done
	p.mu.Unlock()

	<-done
	p.logger.Debug().Msg("polling stopped")
}

// Active reports whether the poller is running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Wait blocks until every launched fetch has returned.
func (p *Poller) Wait() {
	p.inFlight.Wait()
}

// Live reports whether the tick's result may still be applied.
func (t *Tick) Live() bool {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	return t.p.active && t.p.generation == t.gen
}

// Apply runs fn if the tick is still live and, under DiscardStale, no newer
// tick has been applied. It reports whether fn ran. fn must not call back
// into the poller.
func (t *Tick) Apply(fn func()) bool {
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || p.generation != t.gen {
		metrics.PollDiscarded.WithLabelValues(p.name).Inc()
		return false
	}
	if p.policy == DiscardStale && t.Seq < p.lastApplied {
		metrics.PollDiscarded.WithLabelValues(p.name).Inc()
		return false
	}
	if t.Seq > p.lastApplied {
		p.lastApplied = t.Seq
	}
	fn()
	return true
}
