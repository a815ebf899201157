package model

import "time"

// Item is a thing a user keeps in their storage and may lend out.
type Item struct {
	ID            string      `json:"id"`
	OwnerID       string      `json:"owner_id"`
	HolderID      string      `json:"holder_id"`
	Title         string      `json:"title"`
	Category      string      `json:"category,omitempty"`
	Location      string      `json:"location,omitempty"`
	Note          string      `json:"note,omitempty"`
	Description   string      `json:"description,omitempty"`
	BorrowMode    string      `json:"borrow_mode"`
	Status        string      `json:"status"`
	BorrowedFrom  *time.Time  `json:"borrowed_from,omitempty"`
	BorrowedUntil *time.Time  `json:"borrowed_until,omitempty"`
	Images        []ItemImage `json:"images,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	DeletedAt     *time.Time  `json:"deleted_at,omitempty"`

	// Joined fields (not always populated).
	OwnerName  string `json:"owner_name,omitempty"`
	HolderName string `json:"holder_name,omitempty"`
}

// Item statuses.
const (
	ItemStatusAvailable = "available"
	ItemStatusRequested = "requested"
	ItemStatusBorrowed  = "borrowed"
)

// Borrow modes.
const (
	BorrowModeFree    = "free"
	BorrowModeRequest = "request"
)

// MaxImagesPerItem caps how many images an item can carry.
const MaxImagesPerItem = 3

// IsLent reports whether the item is currently with someone other than its owner.
func (i *Item) IsLent() bool {
	return i.Status == ItemStatusBorrowed && i.HolderID != i.OwnerID
}

// ItemImage is a stored, compressed image attached to an item.
type ItemImage struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	Position  int       `json:"position"`
	MIME      string    `json:"mime"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}
