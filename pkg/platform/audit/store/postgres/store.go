package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"verikeep/pkg/domain"
	audit "verikeep/pkg/platform/audit"
	txcontext "verikeep/pkg/platform/tx"
)

// Store implements audit.Store using an outbox table. Events are written to
// the outbox and shipped downstream by whatever relay the deployment runs;
// the table is the source of truth for the trail inside this service.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure persisted per event.
type outboxPayload struct {
	ID        string            `json:"ID"`
	Action    string            `json:"Action"`
	Module    string            `json:"Module,omitempty"`
	Resource  string            `json:"Resource,omitempty"`
	Details   map[string]string `json:"Details,omitempty"`
	ActorID   string            `json:"ActorID,omitempty"`
	Timestamp string            `json:"Timestamp"`
}

// Append writes an audit event to the outbox table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload := outboxPayload{
		ID:        eventID.String(),
		Action:    event.Action,
		Module:    event.Module.String(),
		Resource:  event.Resource,
		Details:   event.Details,
		ActorID:   event.ActorID,
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, action, module, resource, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query,
		eventID, event.Action, event.Module.String(), event.Resource, payloadBytes, event.Timestamp,
	); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListRecent returns the most recent N events, newest last.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT payload FROM audit_outbox
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var p outboxPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("parse audit payload: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, p.Timestamp)
		out = append(out, audit.Event{
			Action:    p.Action,
			Module:    domain.RetentionModule(p.Module),
			Resource:  p.Resource,
			Details:   p.Details,
			ActorID:   p.ActorID,
			Timestamp: ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest last, to match the memory store.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
