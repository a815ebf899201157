package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/boro/internal/id"
	"github.com/erazemk/boro/internal/model"
)

// UserProfile holds the user-editable identity fields.
type UserProfile struct {
	DisplayName string
	Email       string
	PhotoURL    string
}

const userColumns = `id, username, display_name, email, photo_url, password_hash, role, created_at, deleted_at`

func scanUser(row interface{ Scan(...any) error }, u *model.User) error {
	return row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.PhotoURL, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt)
}

// CreateUser creates a new user.
func CreateUser(ctx context.Context, db *sql.DB, username, passwordHash, role string, profile UserProfile) (*model.User, error) {
	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, email, photo_url, password_hash, role)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, username, profile.DisplayName, profile.Email, profile.PhotoURL, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, db, userID)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id string) (*model.User, error) {
	u := &model.User{}
	err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	), u)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the active user with the given username.
func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*model.User, error) {
	u := &model.User{}
	err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND deleted_at IS NULL`, username,
	), u)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserProfile updates a user's display name, email and photo.
func UpdateUserProfile(ctx context.Context, db *sql.DB, id string, profile UserProfile) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, email = ?, photo_url = ? WHERE id = ? AND deleted_at IS NULL`,
		profile.DisplayName, profile.Email, profile.PhotoURL, id,
	)
	if err != nil {
		return fmt.Errorf("updating user profile: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id string, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// DeleteUser soft-deletes a user. Fails while the user owns or holds lent items.
func DeleteUser(ctx context.Context, db *sql.DB, id string) error {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items
		 WHERE deleted_at IS NULL AND status = 'borrowed' AND (owner_id = ? OR holder_id = ?)`,
		id, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking user loans: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("cannot delete user: %d active loans: %w", count, ErrStale)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}
