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

// Aggregator keeps one user's State current by reducing live snapshots on a
// single goroutine, and hands the latest View to watchers.
type Aggregator struct {
	userID  string
	hub     *live.Hub
	fetcher Fetcher
	events  eventlog.Store
	logger  *slog.Logger
	now     func() time.Time

	updates chan Update
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	subs    []*live.Subscription

	// state is owned by the run goroutine.
	state State

	// latest is the state last reduced; views are derived from it on read
	// so due-date fields follow the clock.
	mu          sync.Mutex
	latest      State
	ready       bool
	watchers    map[int]chan View
	nextWatcher int
}

// NewAggregator restores userID's log and subscribes every source on hub.
// The caller must Close the aggregator.
func NewAggregator(ctx context.Context, userID string, hub *live.Hub, fetcher Fetcher, events eventlog.Store, logger *slog.Logger) *Aggregator {
	return newAggregator(ctx, userID, hub, fetcher, events, logger, time.Now)
}

func newAggregator(ctx context.Context, userID string, hub *live.Hub, fetcher Fetcher, events eventlog.Store, logger *slog.Logger, now func() time.Time) *Aggregator {
	a := &Aggregator{
		userID:   userID,
		hub:      hub,
		fetcher:  fetcher,
		events:   events,
		logger:   logger.With(slog.String("user_id", userID)),
		now:      now,
		updates:  make(chan Update, 64),
		done:     make(chan struct{}),
		watchers: make(map[int]chan View),
	}

	a.state = NewState(userID, a.restore(ctx))
	a.latest = a.state

	a.wg.Add(1)
	go a.run()

	for _, src := range Sources {
		a.subs = append(a.subs, live.Subscribe(hub, live.Query[Update]{
			Name:        string(src),
			UserID:      userID,
			Collections: collections[src],
			Fetch: func(ctx context.Context) (Update, error) {
				return fetcher.Fetch(ctx, src, userID)
			},
		}, a.deliver))
	}

	return a
}

func (a *Aggregator) restore(ctx context.Context) []model.ActivityEvent {
	if a.events == nil {
		return nil
	}
	log, err := a.events.Load(ctx, a.userID)
	if err != nil {
		a.logger.Warn("restoring activity log", slog.String("error", err.Error()))
		return nil
	}
	return log
}

// deliver runs on the hub's dispatch goroutine.
func (a *Aggregator) deliver(u Update) {
	select {
	case a.updates <- u:
	case <-a.done:
	}
}

func (a *Aggregator) run() {
	defer a.wg.Done()
	for {
		select {
		case u := <-a.updates:
			a.apply(u)
		case <-a.done:
			return
		}
	}
}

func (a *Aggregator) apply(u Update) {
	now := a.now()
	next, events := Reduce(a.state, u, now)
	a.state = next

	if len(events) > 0 && a.events != nil {
		if err := a.events.Save(context.Background(), a.userID, next.Log); err != nil {
			a.logger.Warn("persisting activity log", slog.String("error", err.Error()))
		}
	}

	ready := true
	for _, src := range Sources {
		if !next.Seen(src) {
			ready = false
			break
		}
	}

	a.publish(next, next.View(now), ready)
}

func (a *Aggregator) publish(s State, v View, ready bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.latest = s
	a.ready = ready
	for _, ch := range a.watchers {
		offer(ch, v)
	}
}

// offer replaces any undelivered view in ch with v.
func offer(ch chan View, v View) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// ViewAt derives the view of the latest state at now, and reports whether
// every source has delivered.
func (a *Aggregator) ViewAt(now time.Time) (View, bool) {
	a.mu.Lock()
	s, ready := a.latest, a.ready
	a.mu.Unlock()
	return s.View(now), ready
}

// Watch returns a channel that always holds the most recent undelivered view,
// starting with the current one. Call stop to unregister.
func (a *Aggregator) Watch() (<-chan View, func()) {
	ch := make(chan View, 1)

	a.mu.Lock()
	a.nextWatcher++
	watcherID := a.nextWatcher
	a.watchers[watcherID] = ch
	ch <- a.latest.View(a.now())
	a.mu.Unlock()

	stop := func() {
		a.mu.Lock()
		delete(a.watchers, watcherID)
		a.mu.Unlock()
	}
	return ch, stop
}

// Done is closed once the aggregator is closed.
func (a *Aggregator) Done() <-chan struct{} {
	return a.done
}

// Close unsubscribes every source and stops the reduction goroutine.
func (a *Aggregator) Close() {
	a.once.Do(func() {
		for _, sub := range a.subs {
			sub.Cancel()
		}
		close(a.done)
		a.wg.Wait()
	})
}

// Snapshot computes a view without a live session. Every source is fetched
// once and no events are synthesized; log is the restored event log.
func Snapshot(ctx context.Context, userID string, fetcher Fetcher, log []model.ActivityEvent, now time.Time) (View, error) {
	state := NewState(userID, log)
	for _, src := range Sources {
		u, err := fetcher.Fetch(ctx, src, userID)
		if err != nil {
			return View{}, err
		}
		state, _ = Reduce(state, u, now)
	}
	return state.View(now), nil
}
