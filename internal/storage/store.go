// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/settleup/internal/models"
)

// ErrNoSnapshot is returned when the cache has never been filled.
var ErrNoSnapshot = errors.New("no snapshot stored")

// SnapshotStore keeps the last good upstream record sets so balances can still be
// served while the upstream is down.
type SnapshotStore interface {
	// SaveSnapshot persists a snapshot. ID and FetchedAt are filled in when empty.
	// Older snapshots beyond the store's retention are pruned.
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error

	// LatestSnapshot returns the most recently fetched snapshot, or ErrNoSnapshot.
	LatestSnapshot(ctx context.Context) (*models.Snapshot, error)

	// Close releases any resources held by the store.
	Close() error
}
