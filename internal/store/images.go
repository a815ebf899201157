package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/boro/internal/id"
	"github.com/erazemk/boro/internal/model"
)

// ImageURL returns the API path serving an item image.
func ImageURL(itemID, imageID string) string {
	return "/api/items/" + itemID + "/images/" + imageID
}

// AddItemImage stores a processed image for an item, up to model.MaxImagesPerItem.
func AddItemImage(ctx context.Context, db *sql.DB, itemID string, data []byte, mime string) (*model.ItemImage, error) {
	imageID, err := id.Generate(id.PrefixImage)
	if err != nil {
		return nil, fmt.Errorf("adding item image: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var count, next int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(position), -1) + 1 FROM item_images WHERE item_id = ?`, itemID,
	).Scan(&count, &next)
	if err != nil {
		return nil, fmt.Errorf("counting item images: %w", err)
	}
	if count >= model.MaxImagesPerItem {
		return nil, fmt.Errorf("item already has %d images: %w", count, ErrLimitReached)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO item_images (id, item_id, position, data, mime) VALUES (?, ?, ?, ?, ?)`,
		imageID, itemID, next, data, mime,
	)
	if err != nil {
		return nil, fmt.Errorf("storing item image: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, itemID,
	); err != nil {
		return nil, fmt.Errorf("touching item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item image: %w", err)
	}

	return &model.ItemImage{
		ID:       imageID,
		ItemID:   itemID,
		Position: next,
		MIME:     mime,
		URL:      ImageURL(itemID, imageID),
	}, nil
}

// GetItemImage returns an image's data and MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, itemID, imageID string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM item_images WHERE id = ? AND item_id = ?`, imageID, itemID,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return data, mime, nil
}

// DeleteItemImage removes one image from an item.
func DeleteItemImage(ctx context.Context, db *sql.DB, itemID, imageID string) error {
	res, err := db.ExecContext(ctx,
		`DELETE FROM item_images WHERE id = ? AND item_id = ?`, imageID, itemID,
	)
	if err != nil {
		return fmt.Errorf("deleting item image: %w", err)
	}
	return expectOne(res)
}

// attachImages fills in image references for a batch of items.
func attachImages(ctx context.Context, q querier, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}

	index := make(map[string]int, len(items))
	args := make([]any, 0, len(items))
	for i, item := range items {
		index[item.ID] = i
		args = append(args, item.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, item_id, position, mime, created_at FROM item_images
		 WHERE item_id IN (`+placeholders(len(args))+`) ORDER BY item_id, position`, args...,
	)
	if err != nil {
		return fmt.Errorf("listing item images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img model.ItemImage
		if err := rows.Scan(&img.ID, &img.ItemID, &img.Position, &img.MIME, &img.CreatedAt); err != nil {
			return fmt.Errorf("scanning item image: %w", err)
		}
		img.URL = ImageURL(img.ItemID, img.ID)
		i := index[img.ItemID]
		items[i].Images = append(items[i].Images, img)
	}
	return rows.Err()
}
