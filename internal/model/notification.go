package model

import "time"

// Notification is a message addressed to one user about an item.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	ItemID    string    `json:"item_id,omitempty"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification types.
const (
	NotificationBorrowRequested = "borrow_requested"
	NotificationBorrowApproved  = "borrow_approved"
	NotificationBorrowRejected  = "borrow_rejected"
	NotificationBorrowCancelled = "borrow_cancelled"
	NotificationBorrowed        = "borrowed"
	NotificationReturned        = "returned"
	NotificationExtendRequested = "extend_requested"
	NotificationExtendApproved  = "extend_approved"
	NotificationExtendRejected  = "extend_rejected"
	NotificationExtended        = "extended"
)
