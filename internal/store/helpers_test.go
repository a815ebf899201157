package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/erazemk/boro/internal/model"
)

func seedUser(t *testing.T, database *sql.DB, username string) *model.User {
	t.Helper()

	u, err := CreateUser(context.Background(), database, username, "hash", model.RoleUser, UserProfile{})
	if err != nil {
		t.Fatalf("seeding user %s: %v", username, err)
	}
	return u
}

func seedItem(t *testing.T, database *sql.DB, owner *model.User, title, mode string) *model.Item {
	t.Helper()

	item, err := CreateItem(context.Background(), database, owner.ID, ItemFields{Title: title, BorrowMode: mode})
	if err != nil {
		t.Fatalf("seeding item %s: %v", title, err)
	}
	return item
}

// seedLoan creates an owner, a borrower and a free item the borrower holds for a week.
func seedLoan(t *testing.T, database *sql.DB) (owner, borrower *model.User, item *model.Item) {
	t.Helper()
	ctx := context.Background()

	owner = seedUser(t, database, "owner")
	borrower = seedUser(t, database, "borrower")
	item = seedItem(t, database, owner, "Drill", model.BorrowModeFree)

	from := time.Now().UTC().Truncate(time.Second)
	err := BorrowNow(ctx, database, item.ID, Loan{
		HolderID: borrower.ID,
		From:     from,
		Until:    from.AddDate(0, 0, 7),
	}, model.Notification{})
	if err != nil {
		t.Fatalf("seeding loan: %v", err)
	}

	item, err = GetItem(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("reloading loaned item: %v", err)
	}
	return owner, borrower, item
}
