package activity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/boro/internal/live"
	"github.com/erazemk/boro/internal/store"
)

// Fetcher loads the current snapshot of one source for a user.
type Fetcher interface {
	Fetch(ctx context.Context, src Source, userID string) (Update, error)
}

// collections lists what each source's query reads, so the hub knows which
// changes can alter it.
var collections = map[Source][]live.Collection{
	SourceOwned:            {live.Items, live.Users},
	SourceHeld:             {live.Items, live.Users},
	SourceLent:             {live.Items, live.Users},
	SourceFavoriteStorages: {live.Favorites, live.Users},
	SourceFavoriteItems:    {live.Favorites, live.Items},
	SourceNotifications:    {live.Notifications},
	SourceRequests:         {live.Requests, live.Items},
}

// StoreFetcher reads sources from the SQLite store.
type StoreFetcher struct {
	DB *sql.DB
}

// Fetch implements Fetcher.
func (f StoreFetcher) Fetch(ctx context.Context, src Source, userID string) (Update, error) {
	u := Update{Source: src}
	var err error

	switch src {
	case SourceOwned:
		u.Items, err = store.ListOwnedItems(ctx, f.DB, userID)
	case SourceHeld:
		u.Items, err = store.ListHeldItems(ctx, f.DB, userID)
	case SourceLent:
		u.Items, err = store.ListLentItems(ctx, f.DB, userID)
	case SourceFavoriteStorages:
		u.FavoriteStorages, err = store.ListFavoriteStorages(ctx, f.DB, userID)
	case SourceFavoriteItems:
		u.FavoriteItems, err = store.ListFavoriteItems(ctx, f.DB, userID)
	case SourceNotifications:
		u.Notifications, err = store.ListNotifications(ctx, f.DB, userID, 0)
	case SourceRequests:
		u.Requests, err = store.ListIncomingRequests(ctx, f.DB, userID)
	default:
		return u, fmt.Errorf("unknown activity source %q", src)
	}
	if err != nil {
		return u, fmt.Errorf("fetching %s: %w", src, err)
	}
	return u, nil
}
