package activity

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/erazemk/boro/internal/duedate"
	"github.com/erazemk/boro/internal/model"
)

// MaxLogEntries caps the per-user activity log.
const MaxLogEntries = 20

// Role says which side of a loan a snapshot was taken from.
type Role string

// Loan roles.
const (
	RoleBorrower Role = "borrower"
	RoleLender   Role = "lender"
)

const day = 24 * time.Hour

// DiffLoans infers activity events from two consecutive loan snapshots. An
// item that disappeared was returned; an item whose due date moved later was
// extended. A due date moved earlier produces nothing. Several changes to one
// item between snapshots collapse into at most one event.
func DiffLoans(prev, curr []model.Item, role Role, now time.Time) []model.ActivityEvent {
	current := make(map[string]*model.Item, len(curr))
	for i := range curr {
		current[curr[i].ID] = &curr[i]
	}

	var events []model.ActivityEvent
	for i := range prev {
		before := &prev[i]
		after, ok := current[before.ID]
		if !ok {
			events = append(events, returnedEvent(before, role, now))
			continue
		}
		if before.BorrowedUntil == nil || after.BorrowedUntil == nil {
			continue
		}
		if after.BorrowedUntil.After(*before.BorrowedUntil) {
			delta := after.BorrowedUntil.Sub(*before.BorrowedUntil)
			n := int(math.Round(float64(delta) / float64(day)))
			events = append(events, model.ActivityEvent{
				ID:     "extended:" + after.ID + ":" + stamp(after.BorrowedUntil),
				Kind:   model.ActivityExtended,
				ItemID: after.ID,
				TS:     now,
				Text:   fmt.Sprintf("%s extended by %s", after.Title, duedate.Days(n)),
			})
		}
	}
	return events
}

func returnedEvent(item *model.Item, role Role, now time.Time) model.ActivityEvent {
	text := fmt.Sprintf("%s returned %s", item.HolderName, item.Title)
	if role == RoleBorrower {
		text = fmt.Sprintf("You returned %s to %s", item.Title, item.OwnerName)
	}
	return model.ActivityEvent{
		ID:     "returned:" + item.ID + ":" + stamp(item.BorrowedFrom) + ":" + stamp(item.BorrowedUntil),
		Kind:   model.ActivityReturned,
		ItemID: item.ID,
		TS:     now,
		Text:   text,
	}
}

// DiffFavoriteStorages emits a "favorited" event for every favorite in curr
// whose id is not in prevIDs.
func DiffFavoriteStorages(prevIDs map[string]bool, curr []model.FavoriteStorage, now time.Time) []model.ActivityEvent {
	var events []model.ActivityEvent
	for _, f := range curr {
		if prevIDs[f.ID] {
			continue
		}
		events = append(events, model.ActivityEvent{
			ID:   "favorited:" + f.ID,
			Kind: model.ActivityFavorited,
			TS:   now,
			Text: fmt.Sprintf("Favorited %s's storage", f.OwnerName),
		})
	}
	return events
}

// MergeLog unions log and events, keeps the first occurrence of each id,
// orders newest first (ties by id) and keeps at most MaxLogEntries.
func MergeLog(log, events []model.ActivityEvent) []model.ActivityEvent {
	seen := make(map[string]bool, len(log)+len(events))
	merged := make([]model.ActivityEvent, 0, len(log)+len(events))
	for _, e := range slices.Concat(log, events) {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		merged = append(merged, e)
	}

	slices.SortFunc(merged, func(a, b model.ActivityEvent) int {
		if c := b.TS.Compare(a.TS); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if len(merged) > MaxLogEntries {
		merged = merged[:MaxLogEntries]
	}
	return merged
}

func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
