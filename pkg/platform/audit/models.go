// Package audit is the append-only trail for retention actions. Domain logic
// emits through the Sink interface; the postgres store writes an outbox
// table, and the worker drains a channel into whichever store is configured.
package audit

import (
	"context"
	"time"

	"verikeep/pkg/domain"
)

// Event captures one retention action. Details carries small key/value
// context (record id, scheduled date); never raw PII. Sensitive values stay
// behind the field codec.
type Event struct {
	Action   string
	Module   domain.RetentionModule
	Resource string
	Details  map[string]string
	// ActorID is the admin who performed the action; empty for actions the
	// sweep performs on its own schedule.
	ActorID   string
	Timestamp time.Time
}

// Actions recorded by the retention pipeline.
const (
	ActionRecordMarked    = "record_marked_for_deletion"
	ActionRecordDeleted   = "record_deleted"
	ActionRecordRescued   = "record_deletion_reverted"
	ActionOverrideSet     = "retention_override_set"
	ActionOverrideRemoved = "retention_override_removed"
	ActionRunCompleted    = "archival_run_completed"
)

// Store persists events append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Sink is what domain logic emits through.
type Sink interface {
	Log(ctx context.Context, event Event) error
}

// StoreSink appends synchronously to a Store. Tests and small deployments
// use it directly; production wires the buffered Publisher instead.
type StoreSink struct {
	store Store
}

func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Log(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return s.store.Append(ctx, event)
}
