// Package store persists BORO documents in SQLite.
//
// Functions take the database handle explicitly. Lookups of a missing
// document return (nil, nil). Conditional updates that find the document in
// an unexpected state return ErrStale, leaving the transaction rolled back.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

var (
	// ErrStale reports that a guarded update matched no row because the
	// document changed (or was never in the expected state).
	ErrStale = errors.New("document changed concurrently")

	// ErrLimitReached reports that a per-document cap was hit.
	ErrLimitReached = errors.New("limit reached")

	// ErrPending reports that a pending request already exists.
	ErrPending = errors.New("pending request exists")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// expectOne turns a zero-row update into ErrStale.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// utc normalizes a time before it is written.
func utc(t time.Time) time.Time {
	return t.UTC()
}

