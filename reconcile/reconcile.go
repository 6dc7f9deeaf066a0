// Package reconcile implements the periodic loop that re-sends stored
// records to the authoritative DNS server.
//
// A tick pushes when a record was registered after the last push, or
// when the resync interval has elapsed since the last push. Every push
// re-sends the whole store; per-record failures are logged and skipped,
// and the next forced resync heals them.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"jabberwocky238/jw238ddns/storage"
	"jabberwocky238/jw238ddns/update"
)

// Config controls push timing.
type Config struct {
	Interval time.Duration // forced resync period
	Tick     time.Duration // how often the push condition is checked
}

// DefaultConfig returns a Config with a 10 minute resync interval checked
// every 10 seconds.
func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Minute,
		Tick:     10 * time.Second,
	}
}

// Result summarises one tick. Err is set when the store could not be
// listed, in which case nothing was pushed.
type Result struct {
	Pushed    bool  `json:"pushed"`
	Records   int   `json:"records"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	Err       error `json:"-"`
}

// Reconciler owns the two push timestamps. lastNewEntry is written by
// request handlers through MarkNewEntry; lastPush is written only by
// Tick. Both are Unix nanoseconds.
type Reconciler struct {
	store  storage.EntryStore
	client update.Client
	config Config
	now    func() time.Time

	lastNewEntry atomic.Int64
	lastPush     atomic.Int64

	tickMu sync.Mutex
}

// Option configures optional Reconciler behaviour.
type Option func(*Reconciler)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// New creates a Reconciler. The last push is placed one interval in the
// past so the first tick pushes everything already in the store.
func New(store storage.EntryStore, client update.Client, cfg Config, opts ...Option) *Reconciler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}

	r := &Reconciler{
		store:  store,
		client: client,
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	now := r.now()
	r.lastNewEntry.Store(now.UnixNano())
	r.lastPush.Store(now.Add(-cfg.Interval).UnixNano())
	return r
}

// MarkNewEntry records that a binding was registered just now.
func (r *Reconciler) MarkNewEntry() {
	r.lastNewEntry.Store(r.now().UnixNano())
}

// ForceResync makes the next tick push regardless of the interval.
func (r *Reconciler) ForceResync() {
	r.MarkNewEntry()
}

// LastPush returns the time of the last push pass.
func (r *Reconciler) LastPush() time.Time {
	return time.Unix(0, r.lastPush.Load())
}

// LastNewEntry returns the time of the last registration.
func (r *Reconciler) LastNewEntry() time.Time {
	return time.Unix(0, r.lastNewEntry.Load())
}

// Interval returns the forced resync period.
func (r *Reconciler) Interval() time.Duration {
	return r.config.Interval
}

// shouldPush reports whether a tick at now must push.
func (r *Reconciler) shouldPush(now int64) bool {
	lastNew := r.lastNewEntry.Load()
	lastPush := r.lastPush.Load()
	return lastNew > lastPush || now > lastPush+r.config.Interval.Nanoseconds()
}

// Tick evaluates the push condition once and, if it holds, pushes every
// stored record. Failures are logged and counted; a list failure is also
// reported in Result.Err.
func (r *Reconciler) Tick(ctx context.Context) Result {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	now := r.now()
	if !r.shouldPush(now.UnixNano()) {
		tickCount.WithLabelValues(outcomeSkipped).Inc()
		return Result{}
	}

	// Advance before iterating so a failing pass does not repeat on the
	// very next tick; the forced resync retries it.
	r.lastPush.Store(now.UnixNano())
	lastPushGauge.Set(float64(now.Unix()))

	records, err := r.store.List(ctx)
	if err != nil {
		tickCount.WithLabelValues(outcomeListFailed).Inc()
		slog.Error("Failed to list records for push", "error", err)
		return Result{Pushed: true, Err: err}
	}
	storeRecordGauge.Set(float64(len(records)))

	res := Result{Pushed: true, Records: len(records)}
	for _, rec := range records {
		if err := update.Push(ctx, r.client, rec); err != nil {
			res.Failed++
			pushCount.WithLabelValues(string(rec.Type), resultFailure).Inc()
			slog.Error("Failed to register record",
				"name", rec.Name,
				"record", rec.String(),
				"error", err,
			)
			continue
		}
		res.Succeeded++
		pushCount.WithLabelValues(string(rec.Type), resultSuccess).Inc()
	}

	tickCount.WithLabelValues(outcomePushed).Inc()
	slog.Info("push pass complete",
		"records", res.Records,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
	)
	return res
}

// PushAll runs a push pass unconditionally, for one-shot use.
func (r *Reconciler) PushAll(ctx context.Context) Result {
	r.ForceResync()
	// Step past lastNewEntry in case the clock did not move.
	r.lastPush.Store(r.lastNewEntry.Load() - 1)
	return r.Tick(ctx)
}

// Run ticks immediately and then every Config.Tick until ctx is
// cancelled. A tick that has started runs to completion; cancellation
// only stops further ticks.
func (r *Reconciler) Run(ctx context.Context) error {
	slog.Info("Reconciliation loop starting",
		"interval", r.config.Interval.String(),
		"tick", r.config.Tick.String(),
	)

	tickCtx := context.WithoutCancel(ctx)
	r.Tick(tickCtx)

	ticker := time.NewTicker(r.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Reconciliation loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Tick(tickCtx)
		}
	}
}
