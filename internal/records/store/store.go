// Package store persists record collections and exposes the archival
// sub-state queries the sweep depends on. Two implementations exist: an
// in-memory store for tests and single-node development, and a postgres
// store for production.
package store

import (
	"context"
	"time"

	"verikeep/internal/records/models"
	"verikeep/pkg/domain"
)

// ArchivalStore is the sweep-facing face of a record collection. Every
// mutation here is field-level: marking and reverting touch only the
// archival sub-state, Delete is a hard delete.
type ArchivalStore interface {
	// ListUnwarned returns records with no warning sent and no deletion
	// mark, the phase-1 candidate set.
	ListUnwarned(ctx context.Context, module domain.RetentionModule) ([]*models.ArchivalRecord, error)

	// ListDue returns records marked for deletion whose scheduled date has
	// arrived and which have not been deleted yet, the phase-2 candidate set.
	ListDue(ctx context.Context, module domain.RetentionModule, now time.Time) ([]*models.ArchivalRecord, error)

	// MarkForDeletion couples the warn and mark transition: sets the mark,
	// the scheduled date, the warning flag and the warning timestamp.
	MarkForDeletion(ctx context.Context, id domain.RecordID, scheduled, warnedAt time.Time) error

	// RevertToActive rescues a marked record: clears the mark, the
	// scheduled date and nothing else.
	RevertToActive(ctx context.Context, id domain.RecordID) error

	// Delete hard-deletes the record. Deleting an absent record returns
	// sentinel.ErrNotFound.
	Delete(ctx context.Context, id domain.RecordID) error
}
