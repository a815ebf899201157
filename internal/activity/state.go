// Package activity merges a user's live item, favorite, notification and
// request snapshots into one feed, and synthesizes a short human readable log
// from the differences between consecutive loan snapshots.
package activity

import (
	"maps"
	"time"

	"github.com/erazemk/boro/internal/model"
)

// Source tags the live query an update came from.
type Source string

// Sources.
const (
	SourceOwned            Source = "owned"
	SourceHeld             Source = "held"
	SourceLent             Source = "lent"
	SourceFavoriteStorages Source = "favorite_storages"
	SourceFavoriteItems    Source = "favorite_items"
	SourceNotifications    Source = "notifications"
	SourceRequests         Source = "requests"
)

// Sources lists every source an aggregator subscribes to.
var Sources = []Source{
	SourceOwned,
	SourceHeld,
	SourceLent,
	SourceFavoriteStorages,
	SourceFavoriteItems,
	SourceNotifications,
	SourceRequests,
}

// Update is one snapshot from a single source. Only the field matching
// Source is read.
type Update struct {
	Source           Source
	Items            []model.Item
	FavoriteStorages []model.FavoriteStorage
	FavoriteItems    []model.FavoriteItem
	Notifications    []model.Notification
	Requests         model.PendingRequests
}

// State is everything known about one user's activity. Values are treated as
// immutable: Reduce returns a new State and leaves its input untouched.
type State struct {
	UserID           string
	Owned            []model.Item
	Held             []model.Item
	Lent             []model.Item
	FavoriteStorages []model.FavoriteStorage
	FavoriteItems    []model.FavoriteItem
	Notifications    []model.Notification
	Requests         model.PendingRequests
	Log              []model.ActivityEvent

	seen map[Source]bool
}

// NewState returns an empty state for userID with a restored log.
func NewState(userID string, log []model.ActivityEvent) State {
	return State{
		UserID: userID,
		Log:    MergeLog(nil, log),
		seen:   map[Source]bool{},
	}
}

// Seen reports whether src has delivered at least one snapshot.
func (s State) Seen(src Source) bool {
	return s.seen[src]
}

// Reduce folds u into s. Each update replaces the previous snapshot of its
// source. Events are synthesized only once a source has delivered a prior
// snapshot, so the first snapshot of each source produces none.
func Reduce(s State, u Update, now time.Time) (State, []model.ActivityEvent) {
	next := s
	next.seen = maps.Clone(s.seen)
	if next.seen == nil {
		next.seen = map[Source]bool{}
	}
	diff := s.seen[u.Source]

	var events []model.ActivityEvent
	switch u.Source {
	case SourceOwned:
		next.Owned = u.Items
	case SourceHeld:
		if diff {
			events = DiffLoans(s.Held, u.Items, RoleBorrower, now)
		}
		next.Held = u.Items
	case SourceLent:
		lent := lentByOthers(u.Items, s.UserID)
		if diff {
			events = DiffLoans(s.Lent, lent, RoleLender, now)
		}
		next.Lent = lent
	case SourceFavoriteStorages:
		if diff {
			prev := make(map[string]bool, len(s.FavoriteStorages))
			for _, f := range s.FavoriteStorages {
				prev[f.ID] = true
			}
			events = DiffFavoriteStorages(prev, u.FavoriteStorages, now)
		}
		next.FavoriteStorages = u.FavoriteStorages
	case SourceFavoriteItems:
		next.FavoriteItems = u.FavoriteItems
	case SourceNotifications:
		next.Notifications = u.Notifications
	case SourceRequests:
		next.Requests = u.Requests
	default:
		return s, nil
	}
	next.seen[u.Source] = true

	if len(events) > 0 {
		next.Log = MergeLog(s.Log, events)
	}
	return next, events
}

// lentByOthers drops items the viewer holds themselves.
func lentByOthers(items []model.Item, viewerID string) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, item := range items {
		if item.HolderID != viewerID {
			out = append(out, item)
		}
	}
	return out
}
