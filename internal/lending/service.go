package lending

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/boro/internal/duedate"
	"github.com/erazemk/boro/internal/errors"
	"github.com/erazemk/boro/internal/live"
	"github.com/erazemk/boro/internal/model"
	"github.com/erazemk/boro/internal/store"
)

// BorrowInput describes a borrow attempt. From defaults to now.
type BorrowInput struct {
	From    *time.Time
	Until   time.Time
	Message string
}

// ExtendInput describes a due date change requested by the holder.
type ExtendInput struct {
	Until   time.Time
	Message string
}

// Outcome is what a workflow step produced.
type Outcome struct {
	Item          *model.Item              `json:"item"`
	BorrowRequest *model.BorrowRequest     `json:"borrow_request,omitempty"`
	ExtendRequest *model.ExtendDateRequest `json:"extend_request,omitempty"`
}

// Service runs workflow steps against the store and reports the resulting
// changes to the live hub.
type Service struct {
	db     *sql.DB
	hub    *live.Hub
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a lending service.
func NewService(db *sql.DB, hub *live.Hub, logger *slog.Logger) *Service {
	return &Service{db: db, hub: hub, logger: logger, now: time.Now}
}

// Borrow takes an available item. Free items change hands at once; request
// items get a pending BorrowRequest the owner must answer.
func (s *Service) Borrow(ctx context.Context, userID, itemID string, in BorrowInput) (*Outcome, error) {
	item, err := s.item(ctx, itemID)
	if err != nil {
		return nil, err
	}

	to, err := Next(item.Status, item.BorrowMode, ActionBorrow, ItemRole(item, userID))
	if err != nil {
		return nil, err
	}

	now := s.now()
	from := now
	if in.From != nil {
		from = *in.From
	}
	if err := s.checkInterval(from, in.Until, now); err != nil {
		return nil, err
	}

	actor, err := s.userName(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &Outcome{}
	if to == model.ItemStatusBorrowed {
		err = store.BorrowNow(ctx, s.db, item.ID, store.Loan{HolderID: userID, From: from, Until: in.Until}, model.Notification{
			UserID:  item.OwnerID,
			ActorID: userID,
			ItemID:  item.ID,
			Type:    model.NotificationBorrowed,
			Message: fmt.Sprintf("%s borrowed %s until %s", actor, item.Title, in.Until.Format(time.DateOnly)),
		})
	} else {
		out.BorrowRequest, err = store.CreateBorrowRequest(ctx, s.db, model.BorrowRequest{
			ItemID:      item.ID,
			OwnerID:     item.OwnerID,
			RequesterID: userID,
			From:        from,
			Until:       in.Until,
			Message:     in.Message,
		}, model.Notification{
			UserID:  item.OwnerID,
			ActorID: userID,
			ItemID:  item.ID,
			Type:    model.NotificationBorrowRequested,
			Message: fmt.Sprintf("%s asked to borrow %s until %s", actor, item.Title, in.Until.Format(time.DateOnly)),
		})
	}
	if err != nil {
		return nil, storeError(err, "borrowing item")
	}

	s.logger.Info("item borrow", "item_id", item.ID, "user_id", userID, "status", to)
	s.publish(item.OwnerID, userID)
	return s.outcome(ctx, out, item.ID)
}

// ResolveBorrow answers a pending borrow request. The owner may approve or
// reject it; the requester may cancel it.
func (s *Service) ResolveBorrow(ctx context.Context, userID, requestID string, action Action) (*Outcome, error) {
	req, err := store.GetBorrowRequest(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.NotFoundf("borrow request %s not found", requestID)
	}
	if req.Status != model.RequestStatusPending {
		return nil, errors.Conflictf("borrow request is already %s", req.Status)
	}

	item, err := s.item(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if _, err := Next(item.Status, item.BorrowMode, action, RequestRole(req.OwnerID, req.RequesterID, userID)); err != nil {
		return nil, err
	}

	var status, notifyType, notifyUser, verb string
	switch action {
	case ActionApprove:
		status, notifyType, notifyUser, verb = model.RequestStatusApproved, model.NotificationBorrowApproved, req.RequesterID, "approved"
	case ActionReject:
		status, notifyType, notifyUser, verb = model.RequestStatusRejected, model.NotificationBorrowRejected, req.RequesterID, "rejected"
	case ActionCancel:
		status, notifyType, notifyUser, verb = model.RequestStatusCancelled, model.NotificationBorrowCancelled, req.OwnerID, "cancelled"
	default:
		return nil, errors.Validationf("unsupported action %q", action)
	}

	actor, err := s.userName(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = store.ResolveBorrowRequest(ctx, s.db, req.ID, status, model.Notification{
		UserID:  notifyUser,
		ActorID: userID,
		ItemID:  item.ID,
		Type:    notifyType,
		Message: fmt.Sprintf("%s %s the request to borrow %s", actor, verb, item.Title),
	})
	if err != nil {
		return nil, storeError(err, "resolving borrow request")
	}

	s.logger.Info("borrow request resolved", "request_id", req.ID, "user_id", userID, "status", status)
	s.publish(req.OwnerID, req.RequesterID)

	out := &Outcome{}
	if out.BorrowRequest, err = store.GetBorrowRequest(ctx, s.db, req.ID); err != nil {
		return nil, err
	}
	return s.outcome(ctx, out, item.ID)
}

// Return gives a borrowed item back to its owner.
func (s *Service) Return(ctx context.Context, userID, itemID string) (*Outcome, error) {
	item, err := s.item(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := Next(item.Status, item.BorrowMode, ActionReturn, ItemRole(item, userID)); err != nil {
		return nil, err
	}

	actor, err := s.userName(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = store.ReturnItem(ctx, s.db, item.ID, userID, model.Notification{
		UserID:  item.OwnerID,
		ActorID: userID,
		ItemID:  item.ID,
		Type:    model.NotificationReturned,
		Message: fmt.Sprintf("%s returned %s", actor, item.Title),
	})
	if err != nil {
		return nil, storeError(err, "returning item")
	}

	s.logger.Info("item returned", "item_id", item.ID, "user_id", userID)
	s.publish(item.OwnerID, userID)
	return s.outcome(ctx, &Outcome{}, item.ID)
}

// Extend moves the due date of a borrowed item. Free items move at once;
// request items get a pending ExtendDateRequest.
func (s *Service) Extend(ctx context.Context, userID, itemID string, in ExtendInput) (*Outcome, error) {
	item, err := s.item(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := Next(item.Status, item.BorrowMode, ActionExtend, ItemRole(item, userID)); err != nil {
		return nil, err
	}
	if item.BorrowedUntil != nil && !in.Until.After(*item.BorrowedUntil) {
		return nil, errors.ValidationWithDetails("invalid due date", map[string]string{
			"until": "must be after the current due date",
		})
	}

	actor, err := s.userName(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &Outcome{}
	if item.BorrowMode == model.BorrowModeFree {
		err = store.ExtendNow(ctx, s.db, item.ID, userID, in.Until, model.Notification{
			UserID:  item.OwnerID,
			ActorID: userID,
			ItemID:  item.ID,
			Type:    model.NotificationExtended,
			Message: fmt.Sprintf("%s extended %s until %s", actor, item.Title, in.Until.Format(time.DateOnly)),
		})
	} else {
		out.ExtendRequest, err = store.CreateExtendRequest(ctx, s.db, model.ExtendDateRequest{
			ItemID:         item.ID,
			OwnerID:        item.OwnerID,
			RequesterID:    userID,
			RequestedUntil: in.Until,
			Message:        in.Message,
		}, model.Notification{
			UserID:  item.OwnerID,
			ActorID: userID,
			ItemID:  item.ID,
			Type:    model.NotificationExtendRequested,
			Message: fmt.Sprintf("%s asked to keep %s until %s", actor, item.Title, in.Until.Format(time.DateOnly)),
		})
	}
	if err != nil {
		return nil, storeError(err, "extending item")
	}

	s.logger.Info("item extension", "item_id", item.ID, "user_id", userID, "until", in.Until.Format(time.DateOnly))
	s.publish(item.OwnerID, userID)
	return s.outcome(ctx, out, item.ID)
}

// ResolveExtend answers a pending extend request. Only approval moves the due
// date.
func (s *Service) ResolveExtend(ctx context.Context, userID, requestID string, action Action) (*Outcome, error) {
	req, err := store.GetExtendRequest(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.NotFoundf("extend request %s not found", requestID)
	}
	if req.Status != model.RequestStatusPending {
		return nil, errors.Conflictf("extend request is already %s", req.Status)
	}

	item, err := s.item(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	var itemAction Action
	var status, notifyType, notifyUser, verb string
	switch action {
	case ActionApprove:
		itemAction, status, notifyType, notifyUser, verb = ActionApproveExtend, model.RequestStatusApproved, model.NotificationExtendApproved, req.RequesterID, "approved"
	case ActionReject:
		itemAction, status, notifyType, notifyUser, verb = ActionRejectExtend, model.RequestStatusRejected, model.NotificationExtendRejected, req.RequesterID, "rejected"
	case ActionCancel:
		itemAction, status, notifyType, notifyUser, verb = ActionCancelExtend, model.RequestStatusCancelled, "", "", "cancelled"
	default:
		return nil, errors.Validationf("unsupported action %q", action)
	}

	if _, err := Next(item.Status, item.BorrowMode, itemAction, ItemRole(item, userID)); err != nil {
		return nil, err
	}
	if userID != req.OwnerID && userID != req.RequesterID {
		return nil, errors.Forbidden("not a party to this request")
	}

	actor, err := s.userName(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = store.ResolveExtendRequest(ctx, s.db, req.ID, status, model.Notification{
		UserID:  notifyUser,
		ActorID: userID,
		ItemID:  item.ID,
		Type:    notifyType,
		Message: fmt.Sprintf("%s %s keeping %s until %s", actor, verb, item.Title, req.RequestedUntil.Format(time.DateOnly)),
	})
	if err != nil {
		return nil, storeError(err, "resolving extend request")
	}

	s.logger.Info("extend request resolved", "request_id", req.ID, "user_id", userID, "status", status)
	s.publish(req.OwnerID, req.RequesterID)

	out := &Outcome{}
	if out.ExtendRequest, err = store.GetExtendRequest(ctx, s.db, req.ID); err != nil {
		return nil, err
	}
	return s.outcome(ctx, out, item.ID)
}

// PendingCounts returns how many borrow and extend requests wait on userID.
func (s *Service) PendingCounts(ctx context.Context, userID string) (int, error) {
	return store.CountIncomingPending(ctx, s.db, userID)
}

func (s *Service) item(ctx context.Context, itemID string) (*model.Item, error) {
	item, err := store.GetItem(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.DeletedAt != nil {
		return nil, errors.NotFoundf("item %s not found", itemID)
	}
	return item, nil
}

func (s *Service) userName(ctx context.Context, userID string) (string, error) {
	u, err := store.GetUser(ctx, s.db, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", errors.Unauthorized("unknown user")
	}
	return u.Name(), nil
}

// checkInterval validates a borrow interval against today's date.
func (s *Service) checkInterval(from, until, now time.Time) error {
	details := map[string]string{}
	if duedate.DaysLeft(until, from) < 1 {
		details["until"] = "must be at least a day after the start date"
	}
	if duedate.OverdueDays(until, now) > 0 {
		details["until"] = "must not be in the past"
	}
	if len(details) > 0 {
		return errors.ValidationWithDetails("invalid borrow dates", details)
	}
	return nil
}

func (s *Service) outcome(ctx context.Context, out *Outcome, itemID string) (*Outcome, error) {
	item, err := store.GetItem(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	out.Item = item
	return out, nil
}

func (s *Service) publish(userIDs ...string) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(live.Change{
		Collections: []live.Collection{live.Items, live.Requests, live.Notifications},
		UserIDs:     userIDs,
	})
}

// storeError turns a lost race in the store into a conflict.
func storeError(err error, doing string) error {
	switch {
	case errors.Is(err, store.ErrStale):
		return errors.Conflict("the item changed in the meantime, reload and try again")
	case errors.Is(err, store.ErrPending):
		return errors.Conflict("an extension request is already pending")
	default:
		return fmt.Errorf("%s: %w", doing, err)
	}
}
