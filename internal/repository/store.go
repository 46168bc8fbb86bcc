// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"

	"omikuji-bot/internal/model"
)

// Common errors for repository operations.
var (
	// ErrStoreWrite is returned when a snapshot could not be persisted.
	// The previously committed snapshot is left intact.
	ErrStoreWrite = errors.New("store write failed")
	// ErrStoreRead is returned by backends that cannot recover from a failed read.
	ErrStoreRead = errors.New("store read failed")
)

// UpdateFunc mutates a snapshot in place. Returning false skips the save.
type UpdateFunc func(snap model.Snapshot) (bool, error)

// Store persists the user record snapshot.
// Every method is serialized against every other method of the same store.
type Store interface {
	// Load returns the persisted snapshot, or an empty one if nothing is stored yet.
	Load(ctx context.Context) (model.Snapshot, error)
	// Save durably replaces the persisted snapshot.
	Save(ctx context.Context, snap model.Snapshot) error
	// Update loads the snapshot, applies fn and saves the result, all while
	// holding the store's exclusive section.
	Update(ctx context.Context, fn UpdateFunc) error
	// Get returns a copy of one user's record. Unknown users get a default
	// record that is not persisted.
	Get(ctx context.Context, userID string) (*model.UserRecord, error)
}

// recordOf picks userID out of snap without creating it.
func recordOf(snap model.Snapshot, userID string) *model.UserRecord {
	if rec, ok := snap[userID]; ok && rec != nil {
		cp := *rec
		cp.UserID = userID
		return &cp
	}
	return &model.UserRecord{UserID: userID}
}
