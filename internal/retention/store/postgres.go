package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"verikeep/internal/retention/models"
	txcontext "verikeep/pkg/platform/tx"
)

// PostgresStore keeps the singleton as one JSONB row. The document shape is
// owned by the models package; the table is just a mailbox for it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Load(ctx context.Context) (*models.Config, error) {
	var raw []byte
	err := s.querier(ctx).QueryRowContext(ctx,
		`SELECT document FROM retention_config WHERE id = 1`,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		cfg := models.DefaultConfig()
		if err := s.Save(ctx, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load retention config: %w", err)
	}

	var cfg models.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse retention config: %w", err)
	}
	return &cfg, nil
}

func (s *PostgresStore) Save(ctx context.Context, cfg *models.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal retention config: %w", err)
	}

	_, err = s.querier(ctx).ExecContext(ctx, `
		INSERT INTO retention_config (id, document, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at
	`, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save retention config: %w", err)
	}
	return nil
}
