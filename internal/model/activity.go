package model

import "time"

// ActivityEvent is a human readable log line inferred from changes between
// consecutive snapshots. It is never stored in the document store.
type ActivityEvent struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	ItemID string    `json:"item_id,omitempty"`
	TS     time.Time `json:"ts"`
	Text   string    `json:"text"`
}

// Activity event kinds.
const (
	ActivityReturned  = "returned"
	ActivityExtended  = "extended"
	ActivityFavorited = "favorited"
)
