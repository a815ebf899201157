// Package feed defines the merged activity feed entries and the filters a
// client can apply to them.
package feed

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/boro/internal/duedate"
	"github.com/erazemk/boro/internal/errors"
	"github.com/erazemk/boro/internal/model"
)

// Kind is the feed category of an entry.
type Kind string

// Feed kinds.
const (
	KindStorage  Kind = "storage"
	KindBorrowed Kind = "borrowed"
	KindLent     Kind = "lent"
)

// Entry is one item in the feed, tagged with the category it appears under.
type Entry struct {
	Kind        Kind           `json:"kind"`
	Item        model.Item     `json:"item"`
	TS          time.Time      `json:"ts"`
	DueStatus   duedate.Status `json:"due_status,omitempty"`
	DaysLeft    int            `json:"days_left"`
	OverdueDays int            `json:"overdue_days"`
}

// NewEntry builds an entry for item. Loans are timestamped by when they
// started, storage items by their last update.
func NewEntry(kind Kind, item model.Item, now time.Time) Entry {
	e := Entry{Kind: kind, Item: item, TS: item.UpdatedAt}
	if kind == KindStorage {
		return e
	}
	if item.BorrowedFrom != nil {
		e.TS = *item.BorrowedFrom
	}
	if item.BorrowedUntil != nil {
		due := *item.BorrowedUntil
		e.DueStatus = duedate.Classify(due, now)
		e.DaysLeft = duedate.DaysLeft(due, now)
		e.OverdueDays = duedate.OverdueDays(due, now)
	}
	return e
}

// Filter selects feed entries. The zero Filter passes everything.
type Filter struct {
	Types         []Kind
	Modes         []string
	FavoritesOnly bool
	Overdue       bool
	DueSoon       bool
	Query         string
}

// Match reports whether e passes every enabled criterion. favorites holds the
// favorited item ids.
func (f Filter) Match(e Entry, favorites map[string]bool, now time.Time) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, e.Kind) {
		return false
	}
	if len(f.Modes) > 0 && e.Item.BorrowMode != "" && !slices.Contains(f.Modes, e.Item.BorrowMode) {
		return false
	}
	if f.FavoritesOnly && !favorites[e.Item.ID] {
		return false
	}
	if (f.Overdue || f.DueSoon) && !f.matchDue(e, now) {
		return false
	}
	if f.Query != "" && !matchQuery(e.Item, f.Query) {
		return false
	}
	return true
}

// matchDue ORs the overdue and due soon toggles. Only loans with a due date
// can match.
func (f Filter) matchDue(e Entry, now time.Time) bool {
	if e.Kind == KindStorage || e.Item.BorrowedUntil == nil {
		return false
	}
	due := *e.Item.BorrowedUntil
	return (f.Overdue && duedate.IsOverdue(due, now)) || (f.DueSoon && duedate.IsDueSoon(due, now))
}

func matchQuery(item model.Item, query string) bool {
	haystack := strings.ToLower(strings.Join([]string{
		item.Title,
		item.Category,
		item.Location,
		item.Note,
		item.Description,
		item.OwnerName,
		item.HolderName,
	}, " "))
	return strings.Contains(haystack, strings.ToLower(query))
}

// Apply returns the entries that match f, preserving order.
func (f Filter) Apply(entries []Entry, favorites map[string]bool, now time.Time) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e, favorites, now) {
			out = append(out, e)
		}
	}
	return out
}

// ParseFilter reads a filter from query parameters: type and mode may repeat
// or hold comma separated values; favorites, overdue and due_soon are
// booleans; q is the search text.
func ParseFilter(values url.Values) (Filter, error) {
	var f Filter

	for _, t := range splitValues(values["type"]) {
		kind := Kind(t)
		switch kind {
		case KindStorage, KindBorrowed, KindLent:
			f.Types = append(f.Types, kind)
		default:
			return Filter{}, errors.ValidationWithDetails("invalid filter", map[string]string{
				"type": "must be one of: storage borrowed lent",
			})
		}
	}

	for _, m := range splitValues(values["mode"]) {
		switch m {
		case model.BorrowModeFree, model.BorrowModeRequest:
			f.Modes = append(f.Modes, m)
		default:
			return Filter{}, errors.ValidationWithDetails("invalid filter", map[string]string{
				"mode": "must be one of: free request",
			})
		}
	}

	var err error
	if f.FavoritesOnly, err = parseBool(values, "favorites"); err != nil {
		return Filter{}, err
	}
	if f.Overdue, err = parseBool(values, "overdue"); err != nil {
		return Filter{}, err
	}
	if f.DueSoon, err = parseBool(values, "due_soon"); err != nil {
		return Filter{}, err
	}

	f.Query = strings.TrimSpace(values.Get("q"))
	return f, nil
}

func splitValues(raw []string) []string {
	var out []string
	for _, v := range raw {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseBool(values url.Values, key string) (bool, error) {
	raw := values.Get(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.ValidationWithDetails("invalid filter", map[string]string{
			key: "must be a boolean",
		})
	}
	return b, nil
}
