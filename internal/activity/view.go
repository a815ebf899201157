package activity

import (
	"cmp"
	"slices"
	"time"

	"github.com/erazemk/boro/internal/duedate"
	"github.com/erazemk/boro/internal/feed"
	"github.com/erazemk/boro/internal/model"
)

// Counts summarizes the feed for badges.
type Counts struct {
	Storage             int `json:"storage"`
	Borrowed            int `json:"borrowed"`
	Lent                int `json:"lent"`
	Overdue             int `json:"overdue"`
	DueSoon             int `json:"due_soon"`
	UnreadNotifications int `json:"unread_notifications"`
	PendingRequests     int `json:"pending_requests"`
}

// View is the derived, read-only projection of a State.
type View struct {
	Feed             []feed.Entry          `json:"feed"`
	Counts           Counts                `json:"counts"`
	Log              []model.ActivityEvent `json:"log"`
	FavoriteOwnerIDs []string              `json:"favorite_owner_ids"`
	FavoriteItemIDs  []string              `json:"favorite_item_ids"`
	GeneratedAt      time.Time             `json:"generated_at"`
}

// FavoriteItems returns the favorited item ids as a set.
func (v View) FavoriteItems() map[string]bool {
	set := make(map[string]bool, len(v.FavoriteItemIDs))
	for _, id := range v.FavoriteItemIDs {
		set[id] = true
	}
	return set
}

// Filtered returns a copy of v whose feed only holds entries matching f.
// Counts describe the unfiltered feed.
func (v View) Filtered(f feed.Filter) View {
	out := v
	out.Feed = f.Apply(v.Feed, v.FavoriteItems(), v.GeneratedAt)
	return out
}

// View derives the merged feed and counts at time now.
func (s State) View(now time.Time) View {
	var counts Counts
	entries := make([]feed.Entry, 0, len(s.Owned)+len(s.Held)+len(s.Lent))
	seen := make(map[string]bool, cap(entries))
	add := func(kind feed.Kind, items []model.Item, n *int) {
		for _, item := range items {
			key := string(kind) + ":" + item.ID
			if seen[key] {
				continue
			}
			seen[key] = true
			*n++
			entries = append(entries, feed.NewEntry(kind, item, now))

			if kind == feed.KindStorage || item.BorrowedUntil == nil {
				continue
			}
			if duedate.IsOverdue(*item.BorrowedUntil, now) {
				counts.Overdue++
			} else if duedate.IsDueSoon(*item.BorrowedUntil, now) {
				counts.DueSoon++
			}
		}
	}
	add(feed.KindStorage, s.Owned, &counts.Storage)
	add(feed.KindBorrowed, s.Held, &counts.Borrowed)
	add(feed.KindLent, s.Lent, &counts.Lent)

	slices.SortStableFunc(entries, func(a, b feed.Entry) int {
		if c := b.TS.Compare(a.TS); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.Item.ID, b.Item.ID)
	})

	counts.PendingRequests = s.Requests.Count()
	for _, n := range s.Notifications {
		if !n.Read {
			counts.UnreadNotifications++
		}
	}

	owners := make([]string, 0, len(s.FavoriteStorages))
	for _, f := range s.FavoriteStorages {
		owners = append(owners, f.OwnerID)
	}
	items := make([]string, 0, len(s.FavoriteItems))
	for _, f := range s.FavoriteItems {
		items = append(items, f.ItemID)
	}

	log := s.Log
	if log == nil {
		log = []model.ActivityEvent{}
	}

	return View{
		Feed:             entries,
		Counts:           counts,
		Log:              log,
		FavoriteOwnerIDs: owners,
		FavoriteItemIDs:  items,
		GeneratedAt:      now,
	}
}
