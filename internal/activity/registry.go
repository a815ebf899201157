package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/boro/internal/eventlog"
	"github.com/erazemk/boro/internal/live"
	"github.com/erazemk/boro/internal/model"
)

// Registry shares one Aggregator per user between concurrent sessions.
type Registry struct {
	hub     *live.Hub
	fetcher Fetcher
	events  eventlog.Store
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	agg  *Aggregator
	refs int
}

// NewRegistry creates a registry whose aggregators read through fetcher and
// persist their logs to events.
func NewRegistry(hub *live.Hub, fetcher Fetcher, events eventlog.Store, logger *slog.Logger) *Registry {
	return &Registry{
		hub:     hub,
		fetcher: fetcher,
		events:  events,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Acquire returns the user's aggregator, starting one if needed. The
// aggregator is closed when the last holder calls release.
func (r *Registry) Acquire(ctx context.Context, userID string) (agg *Aggregator, release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		e = &entry{agg: newAggregator(ctx, userID, r.hub, r.fetcher, r.events, r.logger, r.now)}
		r.entries[userID] = e
		r.logger.Debug("activity aggregator started", slog.String("user_id", userID))
	}
	e.refs++

	var once sync.Once
	return e.agg, func() {
		once.Do(func() { r.release(userID, e) })
	}
}

func (r *Registry) release(userID string, e *entry) {
	r.mu.Lock()
	e.refs--
	last := e.refs == 0
	if last && r.entries[userID] == e {
		delete(r.entries, userID)
	}
	r.mu.Unlock()

	if last {
		e.agg.Close()
		r.logger.Debug("activity aggregator stopped", slog.String("user_id", userID))
	}
}

// Active returns the number of running aggregators.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// View returns userID's view at the current time. The state of a running
// aggregator that has heard from every source is used; otherwise the view is
// computed once from the store without synthesizing events.
func (r *Registry) View(ctx context.Context, userID string) (View, error) {
	r.mu.Lock()
	e, ok := r.entries[userID]
	r.mu.Unlock()

	if ok {
		if v, ready := e.agg.ViewAt(r.now()); ready {
			return v, nil
		}
	}

	return Snapshot(ctx, userID, r.fetcher, r.restore(ctx, userID), r.now())
}

func (r *Registry) restore(ctx context.Context, userID string) []model.ActivityEvent {
	if r.events == nil {
		return nil
	}
	log, err := r.events.Load(ctx, userID)
	if err != nil {
		r.logger.Warn("restoring activity log",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil
	}
	return log
}

// Close stops every aggregator.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.agg.Close()
	}
}
