package model

import "time"

// FavoriteStorage bookmarks another user's storage.
type FavoriteStorage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`

	OwnerName string `json:"owner_name,omitempty"`
}

// FavoriteItem bookmarks a single item.
type FavoriteItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	CreatedAt time.Time `json:"created_at"`

	ItemTitle string `json:"item_title,omitempty"`
}
