// Package eventlog keeps each user's recent activity events in a local
// Badger key-value store so they survive restarts.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/erazemk/boro/internal/model"
)

// MaxAge is how long a stored event is kept. Older events are dropped on load.
const MaxAge = 14 * 24 * time.Hour

const keyPrefix = "activity:"

// Store persists per-user activity logs.
type Store interface {
	Load(ctx context.Context, userID string) ([]model.ActivityEvent, error)
	Save(ctx context.Context, userID string, events []model.ActivityEvent) error
}

// Badger is a Store backed by a Badger database.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the event log under dir. An empty dir keeps the log
// in memory only.
func Open(dir string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable Badger's internal logging
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	if dir != "" {
		logger.Info("event log opened", "path", dir)
	}

	return &Badger{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

func key(userID string) []byte {
	return []byte(keyPrefix + userID)
}

// Load returns the user's stored events, without those older than MaxAge.
// A user with no stored log gets an empty slice.
func (b *Badger) Load(ctx context.Context, userID string) ([]model.ActivityEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []model.ActivityEvent
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &events)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return []model.ActivityEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading activity for %s: %w", userID, err)
	}

	cutoff := b.now().Add(-MaxAge)
	kept := make([]model.ActivityEvent, 0, len(events))
	for _, e := range events {
		if e.TS.After(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

// Save replaces the user's stored events.
func (b *Badger) Save(ctx context.Context, userID string, events []model.ActivityEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encoding activity: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(userID), data)
	})
	if err != nil {
		return fmt.Errorf("saving activity for %s: %w", userID, err)
	}
	return nil
}
