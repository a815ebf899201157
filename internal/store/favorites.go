package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/boro/internal/id"
	"github.com/erazemk/boro/internal/model"
)

// AddFavoriteStorage bookmarks ownerID's storage for userID. Adding an
// existing favorite is a no-op.
func AddFavoriteStorage(ctx context.Context, db *sql.DB, userID, ownerID string) error {
	favoriteID, err := id.Generate(id.PrefixFavoriteStorage)
	if err != nil {
		return fmt.Errorf("adding favorite storage: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO favorite_storages (id, user_id, owner_id) VALUES (?, ?, ?)`,
		favoriteID, userID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("adding favorite storage: %w", err)
	}
	return nil
}

// RemoveFavoriteStorage removes a storage bookmark.
func RemoveFavoriteStorage(ctx context.Context, db *sql.DB, userID, ownerID string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM favorite_storages WHERE user_id = ? AND owner_id = ?`, userID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("removing favorite storage: %w", err)
	}
	return nil
}

// ListFavoriteStorages returns the storages userID bookmarked, newest first.
func ListFavoriteStorages(ctx context.Context, db *sql.DB, userID string) ([]model.FavoriteStorage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT f.id, f.user_id, f.owner_id, f.created_at, COALESCE(NULLIF(u.display_name, ''), u.username)
		 FROM favorite_storages f
		 JOIN users u ON u.id = f.owner_id
		 WHERE f.user_id = ? AND u.deleted_at IS NULL
		 ORDER BY f.created_at DESC, f.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing favorite storages: %w", err)
	}
	defer rows.Close()

	var favorites []model.FavoriteStorage
	for rows.Next() {
		var f model.FavoriteStorage
		if err := rows.Scan(&f.ID, &f.UserID, &f.OwnerID, &f.CreatedAt, &f.OwnerName); err != nil {
			return nil, fmt.Errorf("scanning favorite storage: %w", err)
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

// AddFavoriteItem bookmarks an item for userID.
func AddFavoriteItem(ctx context.Context, db *sql.DB, userID, itemID string) error {
	favoriteID, err := id.Generate(id.PrefixFavoriteItem)
	if err != nil {
		return fmt.Errorf("adding favorite item: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO favorite_items (id, user_id, item_id) VALUES (?, ?, ?)`,
		favoriteID, userID, itemID,
	)
	if err != nil {
		return fmt.Errorf("adding favorite item: %w", err)
	}
	return nil
}

// RemoveFavoriteItem removes an item bookmark.
func RemoveFavoriteItem(ctx context.Context, db *sql.DB, userID, itemID string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM favorite_items WHERE user_id = ? AND item_id = ?`, userID, itemID,
	)
	if err != nil {
		return fmt.Errorf("removing favorite item: %w", err)
	}
	return nil
}

// ListFavoriteItems returns the items userID bookmarked, skipping deleted items.
func ListFavoriteItems(ctx context.Context, db *sql.DB, userID string) ([]model.FavoriteItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT f.id, f.user_id, f.item_id, f.created_at, i.title
		 FROM favorite_items f
		 JOIN items i ON i.id = f.item_id
		 WHERE f.user_id = ? AND i.deleted_at IS NULL
		 ORDER BY f.created_at DESC, f.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing favorite items: %w", err)
	}
	defer rows.Close()

	var favorites []model.FavoriteItem
	for rows.Next() {
		var f model.FavoriteItem
		if err := rows.Scan(&f.ID, &f.UserID, &f.ItemID, &f.CreatedAt, &f.ItemTitle); err != nil {
			return nil, fmt.Errorf("scanning favorite item: %w", err)
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}
