package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/boro/internal/id"
	"github.com/erazemk/boro/internal/model"
)

// ItemFields holds the owner-editable item metadata.
type ItemFields struct {
	Title       string
	Category    string
	Location    string
	Note        string
	Description string
	BorrowMode  string
}

const itemSelect = `SELECT i.id, i.owner_id, i.holder_id, i.title, i.category, i.location, i.note, i.description,
        i.borrow_mode, i.status, i.borrowed_from, i.borrowed_until, i.created_at, i.updated_at, i.deleted_at,
        COALESCE(NULLIF(o.display_name, ''), o.username) AS owner_name,
        COALESCE(NULLIF(h.display_name, ''), h.username) AS holder_name
 FROM items i
 JOIN users o ON o.id = i.owner_id
 JOIN users h ON h.id = i.holder_id`

// CreateItem creates a new item in the owner's storage.
func CreateItem(ctx context.Context, db *sql.DB, ownerID string, f ItemFields) (*model.Item, error) {
	itemID, err := id.Generate(id.PrefixItem)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	if f.BorrowMode == "" {
		f.BorrowMode = model.BorrowModeRequest
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO items (id, owner_id, holder_id, title, category, location, note, description, borrow_mode)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		itemID, ownerID, ownerID, f.Title, f.Category, f.Location, f.Note, f.Description, f.BorrowMode,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, db, itemID)
}

// GetItem returns an item by ID, including soft-deleted ones.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	return getItem(ctx, db, id)
}

func getItem(ctx context.Context, q querier, id string) (*model.Item, error) {
	items, err := queryItems(ctx, q, itemSelect+` WHERE i.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// ListOwnedItems returns the items in a user's storage, lent or not.
func ListOwnedItems(ctx context.Context, db *sql.DB, ownerID string) ([]model.Item, error) {
	items, err := queryItems(ctx, db,
		itemSelect+` WHERE i.owner_id = ? AND i.deleted_at IS NULL ORDER BY i.updated_at DESC, i.id`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing owned items: %w", err)
	}
	return items, nil
}

// ListHeldItems returns items the user currently holds on loan from others.
func ListHeldItems(ctx context.Context, db *sql.DB, holderID string) ([]model.Item, error) {
	items, err := queryItems(ctx, db,
		itemSelect+` WHERE i.holder_id = ? AND i.owner_id != ? AND i.status = 'borrowed' AND i.deleted_at IS NULL
		 ORDER BY i.borrowed_until, i.id`, holderID, holderID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing held items: %w", err)
	}
	return items, nil
}

// ListLentItems returns the owner's items currently on loan.
func ListLentItems(ctx context.Context, db *sql.DB, ownerID string) ([]model.Item, error) {
	items, err := queryItems(ctx, db,
		itemSelect+` WHERE i.owner_id = ? AND i.status = 'borrowed' AND i.deleted_at IS NULL
		 ORDER BY i.borrowed_until, i.id`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing lent items: %w", err)
	}
	return items, nil
}

// UpdateItem updates an item's metadata.
func UpdateItem(ctx context.Context, db *sql.DB, id string, f ItemFields) error {
	res, err := db.ExecContext(ctx,
		`UPDATE items SET title = ?, category = ?, location = ?, note = ?, description = ?, borrow_mode = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		f.Title, f.Category, f.Location, f.Note, f.Description, f.BorrowMode, id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return expectOne(res)
}

// DeleteItem soft-deletes an item. Only available items can be deleted.
func DeleteItem(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE items SET deleted_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL AND status = 'available'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return expectOne(res)
}

// queryItems runs an item query and attaches image references.
func queryItems(ctx context.Context, q querier, query string, args ...any) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.HolderID, &item.Title, &item.Category,
			&item.Location, &item.Note, &item.Description, &item.BorrowMode, &item.Status,
			&item.BorrowedFrom, &item.BorrowedUntil, &item.CreatedAt, &item.UpdatedAt, &item.DeletedAt,
			&item.OwnerName, &item.HolderName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := attachImages(ctx, q, items); err != nil {
		return nil, err
	}
	return items, nil
}
