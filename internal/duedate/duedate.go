// Package duedate derives lending status from due dates.
//
// Both sides of every computation are normalized to local midnight in the
// location of the supplied "now", so results count calendar days. A due date
// equal to today yields zero for both DaysLeft and OverdueDays, and at most one
// of the two is positive for any input.
package duedate

import (
	"fmt"
	"strings"
	"time"
)

// DueSoonDays is the largest number of remaining days considered "due soon".
const DueSoonDays = 3

// Status is the badge derived for a due date.
type Status string

// Due-date statuses.
const (
	StatusOK       Status = "ok"
	StatusDueSoon  Status = "due_soon"
	StatusDueToday Status = "due_today"
	StatusOverdue  Status = "overdue"
)

// Parse reads an ISO-8601 date. Plain dates (YYYY-MM-DD) are interpreted as
// local midnight in loc; full timestamps must be RFC 3339.
func Parse(iso string, loc *time.Location) (time.Time, error) {
	iso = strings.TrimSpace(iso)
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(time.DateOnly, iso, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing due date %q: %w", iso, err)
	}
	return t, nil
}

// DaysLeft returns the whole days from now until due, never negative.
func DaysLeft(due, now time.Time) int {
	return max(0, calendarDays(now, due, now.Location()))
}

// OverdueDays returns the whole days due lies in the past, never negative.
func OverdueDays(due, now time.Time) int {
	return max(0, calendarDays(due, now, now.Location()))
}

// DaysLeftISO is DaysLeft for an ISO-8601 due date.
func DaysLeftISO(iso string, now time.Time) (int, error) {
	due, err := Parse(iso, now.Location())
	if err != nil {
		return 0, err
	}
	return DaysLeft(due, now), nil
}

// OverdueDaysISO is OverdueDays for an ISO-8601 due date.
func OverdueDaysISO(iso string, now time.Time) (int, error) {
	due, err := Parse(iso, now.Location())
	if err != nil {
		return 0, err
	}
	return OverdueDays(due, now), nil
}

// IsOverdue reports whether due lies at least one day in the past.
func IsOverdue(due, now time.Time) bool {
	return OverdueDays(due, now) > 0
}

// IsDueSoon reports whether due is one to DueSoonDays days away.
func IsDueSoon(due, now time.Time) bool {
	left := DaysLeft(due, now)
	return left > 0 && left <= DueSoonDays
}

// Classify returns the badge for a due date.
func Classify(due, now time.Time) Status {
	switch left := DaysLeft(due, now); {
	case OverdueDays(due, now) > 0:
		return StatusOverdue
	case left == 0:
		return StatusDueToday
	case left <= DueSoonDays:
		return StatusDueSoon
	default:
		return StatusOK
	}
}

// Describe renders a due date relative to now, e.g. "due in 2 days".
func Describe(due, now time.Time) string {
	if over := OverdueDays(due, now); over > 0 {
		return fmt.Sprintf("%s overdue", Days(over))
	}
	left := DaysLeft(due, now)
	switch left {
	case 0:
		return "due today"
	case 1:
		return "due tomorrow"
	default:
		return fmt.Sprintf("due in %s", Days(left))
	}
}

// Days formats a day count with the right plural.
func Days(n int) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d day", n)
	}
	return fmt.Sprintf("%d days", n)
}

// calendarDays counts midnights crossed going from a to b, both taken in
// loc. The difference is computed on UTC dates so DST transitions do not skew
// the count.
// NextDay returns the start of the calendar day after now, in now's location.
func NextDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

func calendarDays(from, to time.Time, loc *time.Location) int {
	a := dateUTC(from.In(loc))
	b := dateUTC(to.In(loc))
	return int(b.Sub(a).Hours() / 24)
}

func dateUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
