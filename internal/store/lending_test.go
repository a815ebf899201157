package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/boro/internal/db"
	"github.com/erazemk/boro/internal/model"
)

func TestBorrowNow(t *testing.T) {
	database := db.NewTestDB(t)

	owner, borrower, item := seedLoan(t, database)

	if item.Status != model.ItemStatusBorrowed {
		t.Errorf("expected status borrowed, got %q", item.Status)
	}
	if item.HolderID != borrower.ID {
		t.Errorf("expected holder %s, got %s", borrower.ID, item.HolderID)
	}
	if item.BorrowedUntil == nil || item.BorrowedFrom == nil {
		t.Fatal("expected borrow interval to be set")
	}
	if got := item.BorrowedUntil.Sub(*item.BorrowedFrom); got != 7*24*time.Hour {
		t.Errorf("expected a one week loan, got %v", got)
	}
	if !item.IsLent() {
		t.Error("expected item to be lent")
	}

	err := BorrowNow(context.Background(), database, item.ID, Loan{
		HolderID: owner.ID, From: time.Now(), Until: time.Now().Add(time.Hour),
	}, model.Notification{})
	if !errors.Is(err, ErrStale) {
		t.Errorf("expected ErrStale borrowing a borrowed item, got %v", err)
	}
}

func TestBorrowRequestApprove(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner := seedUser(t, database, "owner")
	borrower := seedUser(t, database, "borrower")
	item := seedItem(t, database, owner, "Canoe", model.BorrowModeRequest)

	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	req, err := CreateBorrowRequest(ctx, database, model.BorrowRequest{
		ItemID:      item.ID,
		OwnerID:     owner.ID,
		RequesterID: borrower.ID,
		From:        from,
		Until:       from.AddDate(0, 0, 3),
		Message:     "weekend trip",
	}, model.Notification{UserID: owner.ID, ActorID: borrower.ID, ItemID: item.ID, Type: model.NotificationBorrowRequested, Message: "borrower wants Canoe"})
	if err != nil {
		t.Fatalf("CreateBorrowRequest: %v", err)
	}
	if req.Status != model.RequestStatusPending || req.ItemTitle != "Canoe" || req.RequesterName != "borrower" {
		t.Errorf("unexpected request: %+v", req)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Status != model.ItemStatusRequested {
		t.Errorf("expected status requested, got %q", got.Status)
	}

	incoming, _ := ListIncomingRequests(ctx, database, owner.ID)
	if len(incoming.Borrow) != 1 {
		t.Fatalf("expected 1 incoming request, got %d", len(incoming.Borrow))
	}
	if count, _ := CountIncomingPending(ctx, database, owner.ID); count != 1 {
		t.Errorf("expected 1 pending request, got %d", count)
	}

	notes, _ := ListNotifications(ctx, database, owner.ID, 0)
	if len(notes) != 1 || notes[0].Type != model.NotificationBorrowRequested {
		t.Errorf("expected a borrow_requested notification, got %+v", notes)
	}

	if err := ResolveBorrowRequest(ctx, database, req.ID, model.RequestStatusApproved, model.Notification{}); err != nil {
		t.Fatalf("ResolveBorrowRequest: %v", err)
	}

	got, _ = GetItem(ctx, database, item.ID)
	if got.Status != model.ItemStatusBorrowed || got.HolderID != borrower.ID {
		t.Errorf("expected item borrowed by requester, got %+v", got)
	}
	if got.BorrowedUntil == nil || !got.BorrowedUntil.Equal(from.AddDate(0, 0, 3)) {
		t.Errorf("expected due date from request, got %v", got.BorrowedUntil)
	}

	if err := ResolveBorrowRequest(ctx, database, req.ID, model.RequestStatusRejected, model.Notification{}); !errors.Is(err, ErrStale) {
		t.Errorf("expected ErrStale resolving twice, got %v", err)
	}

	outgoing, _ := ListOutgoingRequests(ctx, database, borrower.ID)
	if len(outgoing.Borrow) != 1 || outgoing.Borrow[0].Status != model.RequestStatusApproved {
		t.Errorf("expected approved outgoing request, got %+v", outgoing.Borrow)
	}
}

func TestBorrowRequestRejectAndCancel(t *testing.T) {
	for _, status := range []string{model.RequestStatusRejected, model.RequestStatusCancelled} {
		t.Run(status, func(t *testing.T) {
			database := db.NewTestDB(t)
			ctx := context.Background()

			owner := seedUser(t, database, "owner")
			borrower := seedUser(t, database, "borrower")
			item := seedItem(t, database, owner, "Canoe", model.BorrowModeRequest)

			req, err := CreateBorrowRequest(ctx, database, model.BorrowRequest{
				ItemID: item.ID, OwnerID: owner.ID, RequesterID: borrower.ID,
				From: time.Now(), Until: time.Now().AddDate(0, 0, 1),
			}, model.Notification{})
			if err != nil {
				t.Fatalf("CreateBorrowRequest: %v", err)
			}

			if err := ResolveBorrowRequest(ctx, database, req.ID, status, model.Notification{}); err != nil {
				t.Fatalf("ResolveBorrowRequest: %v", err)
			}

			got, _ := GetItem(ctx, database, item.ID)
			if got.Status != model.ItemStatusAvailable || got.HolderID != owner.ID {
				t.Errorf("expected item available with owner, got %+v", got)
			}

			r, _ := GetBorrowRequest(ctx, database, req.ID)
			if r.Status != status {
				t.Errorf("expected request status %q, got %q", status, r.Status)
			}
		})
	}
}

func TestSecondBorrowRequestRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner := seedUser(t, database, "owner")
	a := seedUser(t, database, "alice")
	b := seedUser(t, database, "bob")
	item := seedItem(t, database, owner, "Canoe", model.BorrowModeRequest)

	for i, u := range []*model.User{a, b} {
		_, err := CreateBorrowRequest(ctx, database, model.BorrowRequest{
			ItemID: item.ID, OwnerID: owner.ID, RequesterID: u.ID,
			From: time.Now(), Until: time.Now().AddDate(0, 0, 1),
		}, model.Notification{})
		if i == 0 && err != nil {
			t.Fatalf("first request: %v", err)
		}
		if i == 1 && !errors.Is(err, ErrStale) {
			t.Errorf("expected ErrStale for second request, got %v", err)
		}
	}
}

func TestReturnItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner, borrower, item := seedLoan(t, database)

	ext, err := CreateExtendRequest(ctx, database, model.ExtendDateRequest{
		ItemID: item.ID, OwnerID: owner.ID, RequesterID: borrower.ID,
		RequestedUntil: item.BorrowedUntil.AddDate(0, 0, 7),
	}, model.Notification{})
	if err != nil {
		t.Fatalf("CreateExtendRequest: %v", err)
	}

	if err := ReturnItem(ctx, database, item.ID, owner.ID, model.Notification{}); !errors.Is(err, ErrStale) {
		t.Errorf("expected ErrStale when a non-holder returns, got %v", err)
	}

	err = ReturnItem(ctx, database, item.ID, borrower.ID, model.Notification{
		UserID: owner.ID, ActorID: borrower.ID, ItemID: item.ID, Type: model.NotificationReturned, Message: "returned",
	})
	if err != nil {
		t.Fatalf("ReturnItem: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Status != model.ItemStatusAvailable || got.HolderID != owner.ID {
		t.Errorf("expected item back with owner, got %+v", got)
	}
	if got.BorrowedFrom != nil || got.BorrowedUntil != nil {
		t.Error("expected borrow interval to be cleared")
	}

	r, _ := GetExtendRequest(ctx, database, ext.ID)
	if r.Status != model.RequestStatusCancelled {
		t.Errorf("expected pending extend request cancelled, got %q", r.Status)
	}

	notes, _ := ListNotifications(ctx, database, owner.ID, 0)
	if len(notes) != 1 || notes[0].Type != model.NotificationReturned {
		t.Errorf("expected a returned notification, got %+v", notes)
	}
}

func TestExtendNow(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, borrower, item := seedLoan(t, database)
	until := item.BorrowedUntil.AddDate(0, 0, 3)

	if err := ExtendNow(ctx, database, item.ID, borrower.ID, until, model.Notification{}); err != nil {
		t.Fatalf("ExtendNow: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if !got.BorrowedUntil.Equal(until) {
		t.Errorf("expected due date %v, got %v", until, got.BorrowedUntil)
	}
}

func TestExtendRequestFlow(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner, borrower, item := seedLoan(t, database)
	requested := item.BorrowedUntil.AddDate(0, 0, 5)

	req, err := CreateExtendRequest(ctx, database, model.ExtendDateRequest{
		ItemID: item.ID, OwnerID: owner.ID, RequesterID: borrower.ID, RequestedUntil: requested,
	}, model.Notification{})
	if err != nil {
		t.Fatalf("CreateExtendRequest: %v", err)
	}
	if !req.CurrentUntil.Equal(*item.BorrowedUntil) {
		t.Errorf("expected current_until %v, got %v", item.BorrowedUntil, req.CurrentUntil)
	}

	_, err = CreateExtendRequest(ctx, database, model.ExtendDateRequest{
		ItemID: item.ID, OwnerID: owner.ID, RequesterID: borrower.ID, RequestedUntil: requested,
	}, model.Notification{})
	if !errors.Is(err, ErrPending) {
		t.Errorf("expected ErrPending, got %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if !got.BorrowedUntil.Equal(*item.BorrowedUntil) {
		t.Error("due date must not move before approval")
	}

	if err := ResolveExtendRequest(ctx, database, req.ID, model.RequestStatusApproved, model.Notification{}); err != nil {
		t.Fatalf("ResolveExtendRequest: %v", err)
	}

	got, _ = GetItem(ctx, database, item.ID)
	if !got.BorrowedUntil.Equal(requested) {
		t.Errorf("expected due date %v, got %v", requested, got.BorrowedUntil)
	}
}

func TestExtendRequestReject(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner, borrower, item := seedLoan(t, database)

	req, _ := CreateExtendRequest(ctx, database, model.ExtendDateRequest{
		ItemID: item.ID, OwnerID: owner.ID, RequesterID: borrower.ID,
		RequestedUntil: item.BorrowedUntil.AddDate(0, 0, 5),
	}, model.Notification{})

	if err := ResolveExtendRequest(ctx, database, req.ID, model.RequestStatusRejected, model.Notification{}); err != nil {
		t.Fatalf("ResolveExtendRequest: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if !got.BorrowedUntil.Equal(*item.BorrowedUntil) {
		t.Error("rejected extension must not move the due date")
	}
}
