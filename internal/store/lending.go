package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/boro/internal/id"
	"github.com/erazemk/boro/internal/model"
)

// Loan is the borrow interval applied to an item when it changes hands.
type Loan struct {
	HolderID string
	From     time.Time
	Until    time.Time
}

// BorrowNow hands an available item to loan.HolderID without approval.
func BorrowNow(ctx context.Context, db *sql.DB, itemID string, loan Loan, n model.Notification) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lendItem(ctx, tx, itemID, model.ItemStatusAvailable, loan); err != nil {
		return fmt.Errorf("borrowing item: %w", err)
	}
	if err := insertNotification(ctx, tx, &n); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateBorrowRequest records a pending request and marks the item requested.
func CreateBorrowRequest(ctx context.Context, db *sql.DB, req model.BorrowRequest, n model.Notification) (*model.BorrowRequest, error) {
	requestID, err := id.Generate(id.PrefixBorrowRequest)
	if err != nil {
		return nil, fmt.Errorf("creating borrow request: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE items SET status = 'requested', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'available' AND deleted_at IS NULL`,
		req.ItemID,
	)
	if err != nil {
		return nil, fmt.Errorf("marking item requested: %w", err)
	}
	if err := expectOne(res); err != nil {
		return nil, fmt.Errorf("marking item requested: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO borrow_requests (id, item_id, owner_id, requester_id, from_date, until_date, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		requestID, req.ItemID, req.OwnerID, req.RequesterID, utc(req.From), utc(req.Until), req.Message,
	)
	if err != nil {
		return nil, fmt.Errorf("creating borrow request: %w", err)
	}

	if err := insertNotification(ctx, tx, &n); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing borrow request: %w", err)
	}

	return GetBorrowRequest(ctx, db, requestID)
}

// ResolveBorrowRequest closes a pending borrow request with status approved,
// rejected or cancelled. Approval lends the item to the requester; the other
// outcomes make it available again.
func ResolveBorrowRequest(ctx context.Context, db *sql.DB, requestID, status string, n model.Notification) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	req, err := getBorrowRequest(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if req == nil || req.Status != model.RequestStatusPending {
		return fmt.Errorf("resolving borrow request: %w", ErrStale)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE borrow_requests SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = 'pending'`,
		status, requestID,
	)
	if err != nil {
		return fmt.Errorf("resolving borrow request: %w", err)
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("resolving borrow request: %w", err)
	}

	switch status {
	case model.RequestStatusApproved:
		err = lendItem(ctx, tx, req.ItemID, model.ItemStatusRequested, Loan{
			HolderID: req.RequesterID,
			From:     req.From,
			Until:    req.Until,
		})
	case model.RequestStatusRejected, model.RequestStatusCancelled:
		res, err = tx.ExecContext(ctx,
			`UPDATE items SET status = 'available', updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND status = 'requested'`,
			req.ItemID,
		)
		if err == nil {
			err = expectOne(res)
		}
	default:
		return fmt.Errorf("resolving borrow request: unknown status %q", status)
	}
	if err != nil {
		return fmt.Errorf("updating requested item: %w", err)
	}

	if err := insertNotification(ctx, tx, &n); err != nil {
		return err
	}
	return tx.Commit()
}

// ReturnItem gives a borrowed item back to its owner and cancels any pending
// extend requests for it.
func ReturnItem(ctx context.Context, db *sql.DB, itemID, holderID string, n model.Notification) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE items SET status = 'available', holder_id = owner_id, borrowed_from = NULL, borrowed_until = NULL,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'borrowed' AND holder_id = ?`,
		itemID, holderID,
	)
	if err != nil {
		return fmt.Errorf("returning item: %w", err)
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("returning item: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE extend_requests SET status = 'cancelled', updated_at = CURRENT_TIMESTAMP
		 WHERE item_id = ? AND status = 'pending'`,
		itemID,
	)
	if err != nil {
		return fmt.Errorf("cancelling extend requests: %w", err)
	}

	if err := insertNotification(ctx, tx, &n); err != nil {
		return err
	}
	return tx.Commit()
}

// ExtendNow moves the due date of a borrowed item held by holderID.
func ExtendNow(ctx context.Context, db *sql.DB, itemID, holderID string, until time.Time, n model.Notification) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := extendItem(ctx, tx, itemID, holderID, until); err != nil {
		return err
	}
	if err := insertNotification(ctx, tx, &n); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateExtendRequest records a pending due date change. Only one pending
// extend request may exist per item.
func CreateExtendRequest(ctx context.Context, db *sql.DB, req model.ExtendDateRequest, n model.Notification) (*model.ExtendDateRequest, error) {
	requestID, err := id.Generate(id.PrefixExtendRequest)
	if err != nil {
		return nil, fmt.Errorf("creating extend request: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var pending int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM extend_requests WHERE item_id = ? AND status = 'pending'`, req.ItemID,
	).Scan(&pending)
	if err != nil {
		return nil, fmt.Errorf("checking pending extend requests: %w", err)
	}
	if pending > 0 {
		return nil, fmt.Errorf("creating extend request: %w", ErrPending)
	}

	var current *time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT borrowed_until FROM items WHERE id = ? AND status = 'borrowed' AND holder_id = ?`,
		req.ItemID, req.RequesterID,
	).Scan(&current)
	if err == sql.ErrNoRows || (err == nil && current == nil) {
		return nil, fmt.Errorf("creating extend request: %w", ErrStale)
	}
	if err != nil {
		return nil, fmt.Errorf("reading due date: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO extend_requests (id, item_id, owner_id, requester_id, current_until, requested_until, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		requestID, req.ItemID, req.OwnerID, req.RequesterID, utc(*current), utc(req.RequestedUntil), req.Message,
	)
	if err != nil {
		return nil, fmt.Errorf("creating extend request: %w", err)
	}

	if err := insertNotification(ctx, tx, &n); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing extend request: %w", err)
	}

	return GetExtendRequest(ctx, db, requestID)
}

// ResolveExtendRequest closes a pending extend request. Only approval moves
// the item's due date.
func ResolveExtendRequest(ctx context.Context, db *sql.DB, requestID, status string, n model.Notification) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	req, err := getExtendRequest(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if req == nil || req.Status != model.RequestStatusPending {
		return fmt.Errorf("resolving extend request: %w", ErrStale)
	}

	switch status {
	case model.RequestStatusApproved, model.RequestStatusRejected, model.RequestStatusCancelled:
	default:
		return fmt.Errorf("resolving extend request: unknown status %q", status)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE extend_requests SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = 'pending'`,
		status, requestID,
	)
	if err != nil {
		return fmt.Errorf("resolving extend request: %w", err)
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("resolving extend request: %w", err)
	}

	if status == model.RequestStatusApproved {
		if err := extendItem(ctx, tx, req.ItemID, req.RequesterID, req.RequestedUntil); err != nil {
			return err
		}
	}

	if err := insertNotification(ctx, tx, &n); err != nil {
		return err
	}
	return tx.Commit()
}

// GetBorrowRequest returns a borrow request by ID.
func GetBorrowRequest(ctx context.Context, db *sql.DB, id string) (*model.BorrowRequest, error) {
	return getBorrowRequest(ctx, db, id)
}

// GetExtendRequest returns an extend request by ID.
func GetExtendRequest(ctx context.Context, db *sql.DB, id string) (*model.ExtendDateRequest, error) {
	return getExtendRequest(ctx, db, id)
}

// ListIncomingRequests returns the pending requests waiting on ownerID.
func ListIncomingRequests(ctx context.Context, db *sql.DB, ownerID string) (model.PendingRequests, error) {
	var p model.PendingRequests
	var err error

	p.Borrow, err = queryBorrowRequests(ctx, db,
		borrowRequestSelect+` WHERE r.owner_id = ? AND r.status = 'pending' ORDER BY r.created_at, r.id`, ownerID)
	if err != nil {
		return p, fmt.Errorf("listing incoming borrow requests: %w", err)
	}

	p.Extend, err = queryExtendRequests(ctx, db,
		extendRequestSelect+` WHERE r.owner_id = ? AND r.status = 'pending' ORDER BY r.created_at, r.id`, ownerID)
	if err != nil {
		return p, fmt.Errorf("listing incoming extend requests: %w", err)
	}
	return p, nil
}

// ListOutgoingRequests returns the requests requesterID made, newest first.
func ListOutgoingRequests(ctx context.Context, db *sql.DB, requesterID string) (model.PendingRequests, error) {
	var p model.PendingRequests
	var err error

	p.Borrow, err = queryBorrowRequests(ctx, db,
		borrowRequestSelect+` WHERE r.requester_id = ? ORDER BY r.updated_at DESC, r.id LIMIT 50`, requesterID)
	if err != nil {
		return p, fmt.Errorf("listing outgoing borrow requests: %w", err)
	}

	p.Extend, err = queryExtendRequests(ctx, db,
		extendRequestSelect+` WHERE r.requester_id = ? ORDER BY r.updated_at DESC, r.id LIMIT 50`, requesterID)
	if err != nil {
		return p, fmt.Errorf("listing outgoing extend requests: %w", err)
	}
	return p, nil
}

// CountIncomingPending returns how many requests wait on ownerID.
func CountIncomingPending(ctx context.Context, db *sql.DB, ownerID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM borrow_requests WHERE owner_id = ? AND status = 'pending')
		      + (SELECT COUNT(*) FROM extend_requests WHERE owner_id = ? AND status = 'pending')`,
		ownerID, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pending requests: %w", err)
	}
	return count, nil
}

// lendItem moves an item from status `from` to borrowed.
func lendItem(ctx context.Context, q querier, itemID, from string, loan Loan) error {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET status = 'borrowed', holder_id = ?, borrowed_from = ?, borrowed_until = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ? AND deleted_at IS NULL AND owner_id != ?`,
		loan.HolderID, utc(loan.From), utc(loan.Until), itemID, from, loan.HolderID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func extendItem(ctx context.Context, q querier, itemID, holderID string, until time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET borrowed_until = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'borrowed' AND holder_id = ?`,
		utc(until), itemID, holderID,
	)
	if err != nil {
		return fmt.Errorf("extending item: %w", err)
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("extending item: %w", err)
	}
	return nil
}

const borrowRequestSelect = `SELECT r.id, r.item_id, r.owner_id, r.requester_id, r.from_date, r.until_date, r.message,
        r.status, r.created_at, r.updated_at, i.title, COALESCE(NULLIF(u.display_name, ''), u.username)
 FROM borrow_requests r
 JOIN items i ON i.id = r.item_id
 JOIN users u ON u.id = r.requester_id`

const extendRequestSelect = `SELECT r.id, r.item_id, r.owner_id, r.requester_id, r.current_until, r.requested_until,
        r.message, r.status, r.created_at, r.updated_at, i.title, COALESCE(NULLIF(u.display_name, ''), u.username)
 FROM extend_requests r
 JOIN items i ON i.id = r.item_id
 JOIN users u ON u.id = r.requester_id`

func getBorrowRequest(ctx context.Context, q querier, id string) (*model.BorrowRequest, error) {
	reqs, err := queryBorrowRequests(ctx, q, borrowRequestSelect+` WHERE r.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting borrow request: %w", err)
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return &reqs[0], nil
}

func getExtendRequest(ctx context.Context, q querier, id string) (*model.ExtendDateRequest, error) {
	reqs, err := queryExtendRequests(ctx, q, extendRequestSelect+` WHERE r.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting extend request: %w", err)
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return &reqs[0], nil
}

func queryBorrowRequests(ctx context.Context, q querier, query string, args ...any) ([]model.BorrowRequest, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []model.BorrowRequest
	for rows.Next() {
		var r model.BorrowRequest
		if err := rows.Scan(&r.ID, &r.ItemID, &r.OwnerID, &r.RequesterID, &r.From, &r.Until, &r.Message,
			&r.Status, &r.CreatedAt, &r.UpdatedAt, &r.ItemTitle, &r.RequesterName); err != nil {
			return nil, fmt.Errorf("scanning borrow request: %w", err)
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func queryExtendRequests(ctx context.Context, q querier, query string, args ...any) ([]model.ExtendDateRequest, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []model.ExtendDateRequest
	for rows.Next() {
		var r model.ExtendDateRequest
		if err := rows.Scan(&r.ID, &r.ItemID, &r.OwnerID, &r.RequesterID, &r.CurrentUntil, &r.RequestedUntil,
			&r.Message, &r.Status, &r.CreatedAt, &r.UpdatedAt, &r.ItemTitle, &r.RequesterName); err != nil {
			return nil, fmt.Errorf("scanning extend request: %w", err)
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}
