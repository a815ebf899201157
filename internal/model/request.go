package model

import "time"

// Request statuses, shared by borrow and extend requests.
const (
	RequestStatusPending   = "pending"
	RequestStatusApproved  = "approved"
	RequestStatusRejected  = "rejected"
	RequestStatusCancelled = "cancelled"
)

// BorrowRequest asks an owner for permission to borrow an item.
type BorrowRequest struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"item_id"`
	OwnerID     string    `json:"owner_id"`
	RequesterID string    `json:"requester_id"`
	From        time.Time `json:"from"`
	Until       time.Time `json:"until"`
	Message     string    `json:"message,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	ItemTitle     string `json:"item_title,omitempty"`
	RequesterName string `json:"requester_name,omitempty"`
}

// ExtendDateRequest asks an owner to move the due date of a borrowed item.
type ExtendDateRequest struct {
	ID             string    `json:"id"`
	ItemID         string    `json:"item_id"`
	OwnerID        string    `json:"owner_id"`
	RequesterID    string    `json:"requester_id"`
	CurrentUntil   time.Time `json:"current_until"`
	RequestedUntil time.Time `json:"requested_until"`
	Message        string    `json:"message,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	ItemTitle     string `json:"item_title,omitempty"`
	RequesterName string `json:"requester_name,omitempty"`
}

// PendingRequests groups the pending requests waiting on one owner.
type PendingRequests struct {
	Borrow []BorrowRequest     `json:"borrow"`
	Extend []ExtendDateRequest `json:"extend"`
}

// Count returns the number of pending requests.
func (p PendingRequests) Count() int {
	return len(p.Borrow) + len(p.Extend)
}
