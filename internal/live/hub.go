// Package live re-runs registered queries when the store changes and
// delivers their results to subscribers.
package live

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// Collection names a group of documents mutations are reported against.
type Collection string

// Collections.
const (
	Items         Collection = "items"
	Requests      Collection = "requests"
	Favorites     Collection = "favorites"
	Notifications Collection = "notifications"
	Users         Collection = "users"
)

// Change describes a committed mutation. An empty UserIDs means the change may
// affect any user.
type Change struct {
	Collections []Collection
	UserIDs     []string
}

// Query is a live query scoped to one user. Fetch is re-run whenever a change
// touches one of Collections for that user.
type Query[T any] struct {
	Name        string
	UserID      string
	Collections []Collection
	Fetch       func(ctx context.Context) (T, error)
}

// Subscription is a handle to a registered query.
type Subscription struct {
	hub *Hub
	id  uint64
	sub *subscription
}

// Cancel stops deliveries. It is safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.hub == nil {
		return
	}
	s.sub.cancelled.Store(true)
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()
}

type subscription struct {
	name        string
	userID      string
	collections []Collection
	refresh     func(ctx context.Context) error
	cancelled   atomic.Bool

	// last is only touched from the dispatch goroutine.
	last      []byte
	delivered bool
}

// affectedBy reports whether change can alter this subscription's result.
func (s *subscription) affectedBy(c Change) bool {
	if len(c.UserIDs) > 0 && !slices.Contains(c.UserIDs, s.userID) {
		return false
	}
	for _, col := range c.Collections {
		if slices.Contains(s.collections, col) {
			return true
		}
	}
	return false
}

type job struct {
	change Change
	sub    *subscription // initial snapshot when set
}

// Hub owns the live queries and the goroutine that refreshes them.
type Hub struct {
	logger  *slog.Logger
	jobs    chan job
	stopped chan struct{}
	stop    sync.Once

	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64

	shutdownMu sync.RWMutex
	shutdown   bool

	wg sync.WaitGroup
}

// NewHub creates a hub. Call Start to begin dispatching.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		jobs:    make(chan job, 256),
		stopped: make(chan struct{}),
		subs:    make(map[uint64]*subscription),
	}
}

// Start launches the dispatch loop, which runs until ctx is cancelled or
// Shutdown is called.
func (h *Hub) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.run(ctx)
}

func (h *Hub) run(ctx context.Context) {
	defer h.wg.Done()
	defer h.stop.Do(func() { close(h.stopped) })

	h.logger.Debug("live hub starting")

	for {
		select {
		case j, ok := <-h.jobs:
			if !ok {
				return
			}
			h.dispatch(ctx, j)
		case <-ctx.Done():
			h.logger.Debug("live hub stopping")
			h.dropAll()
			return
		}
	}
}

// Shutdown stops accepting changes, drops all subscriptions and waits for the
// dispatch loop to exit.
func (h *Hub) Shutdown() {
	h.shutdownMu.Lock()
	if h.shutdown {
		h.shutdownMu.Unlock()
		return
	}
	h.shutdown = true
	close(h.jobs)
	h.shutdownMu.Unlock()

	h.wg.Wait()
	h.dropAll()
}

// Publish reports a committed change. Affected queries are refreshed
// asynchronously.
func (h *Hub) Publish(c Change) {
	h.enqueue(job{change: c})
}

func (h *Hub) enqueue(j job) {
	h.shutdownMu.RLock()
	defer h.shutdownMu.RUnlock()
	if h.shutdown {
		return
	}
	select {
	case h.jobs <- j:
	case <-h.stopped:
	}
}

// Subscribe registers q and delivers its first result, then every result that
// differs from the previous delivery. Fetch errors are logged and the prior
// result stands.
func Subscribe[T any](h *Hub, q Query[T], deliver func(T)) *Subscription {
	sub := &subscription{
		name:        q.Name,
		userID:      q.UserID,
		collections: q.Collections,
	}
	sub.refresh = func(ctx context.Context) error {
		v, err := q.Fetch(ctx)
		if err != nil {
			return err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if sub.delivered && bytes.Equal(b, sub.last) {
			return nil
		}
		if sub.cancelled.Load() {
			return nil
		}
		sub.last = b
		sub.delivered = true
		deliver(v)
		return nil
	}

	h.mu.Lock()
	h.nextID++
	subID := h.nextID
	h.subs[subID] = sub
	h.mu.Unlock()

	h.enqueue(job{sub: sub})

	return &Subscription{hub: h, id: subID, sub: sub}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) dispatch(ctx context.Context, j job) {
	if j.sub != nil {
		h.refresh(ctx, j.sub)
		return
	}

	h.mu.Lock()
	affected := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.affectedBy(j.change) {
			affected = append(affected, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range affected {
		h.refresh(ctx, sub)
	}
}

func (h *Hub) refresh(ctx context.Context, sub *subscription) {
	if sub.cancelled.Load() {
		return
	}
	if err := sub.refresh(ctx); err != nil {
		h.logger.Warn("live query failed",
			slog.String("query", sub.name),
			slog.String("user_id", sub.userID),
			slog.String("error", err.Error()))
	}
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for subID, sub := range h.subs {
		sub.cancelled.Store(true)
		delete(h.subs, subID)
	}
}
