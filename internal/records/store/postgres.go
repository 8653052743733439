package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"verikeep/internal/records/models"
	"verikeep/pkg/domain"
	"verikeep/pkg/platform/sentinel"
	txcontext "verikeep/pkg/platform/tx"
)

// PostgresStore implements ArchivalStore over one record collection table.
// Every record table shares the archival sub-state columns, so the same
// implementation serves each collection with just the table name changed.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// Collection tables.
const (
	TableVerificationRecords = "verification_records"
	TableLinkRecords         = "link_records"
)

// NewPostgres creates a postgres-backed archival store for the given table.
func NewPostgres(db *sql.DB, table string) *PostgresStore {
	return &PostgresStore{db: db, table: table}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const archivalColumns = `id, user_id, module, owner_email, holder_name, created_at,
	is_marked_for_deletion, scheduled_deletion_date, deletion_warning_sent, warning_sent_at, actual_deletion_date`

func (s *PostgresStore) ListUnwarned(ctx context.Context, module domain.RetentionModule) ([]*models.ArchivalRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE module = $1
		  AND deletion_warning_sent = FALSE
		  AND is_marked_for_deletion = FALSE
		ORDER BY created_at
	`, archivalColumns, s.table)

	rows, err := s.querier(ctx).QueryContext(ctx, query, module.String())
	if err != nil {
		return nil, fmt.Errorf("list unwarned records: %w", err)
	}
	defer rows.Close()
	return scanArchivalRows(rows)
}

func (s *PostgresStore) ListDue(ctx context.Context, module domain.RetentionModule, now time.Time) ([]*models.ArchivalRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE module = $1
		  AND is_marked_for_deletion = TRUE
		  AND scheduled_deletion_date <= $2
		  AND actual_deletion_date IS NULL
		ORDER BY scheduled_deletion_date
	`, archivalColumns, s.table)

	rows, err := s.querier(ctx).QueryContext(ctx, query, module.String(), now)
	if err != nil {
		return nil, fmt.Errorf("list due records: %w", err)
	}
	defer rows.Close()
	return scanArchivalRows(rows)
}

func (s *PostgresStore) MarkForDeletion(ctx context.Context, id domain.RecordID, scheduled, warnedAt time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			is_marked_for_deletion = TRUE,
			scheduled_deletion_date = $2,
			deletion_warning_sent = TRUE,
			warning_sent_at = $3,
			updated_at = $3
		WHERE id = $1
	`, s.table)

	return s.exec(ctx, query, uuid.UUID(id), scheduled, warnedAt)
}

func (s *PostgresStore) RevertToActive(ctx context.Context, id domain.RecordID) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			is_marked_for_deletion = FALSE,
			scheduled_deletion_date = NULL
		WHERE id = $1
	`, s.table)

	return s.exec(ctx, query, uuid.UUID(id))
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.RecordID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	return s.exec(ctx, query, uuid.UUID(id))
}

func (s *PostgresStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", s.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanArchivalRows(rows *sql.Rows) ([]*models.ArchivalRecord, error) {
	var out []*models.ArchivalRecord
	for rows.Next() {
		var (
			rec        models.ArchivalRecord
			id, userID uuid.UUID
			module     string
			holderName sql.NullString
		)
		if err := rows.Scan(
			&id, &userID, &module, &rec.OwnerEmail, &holderName, &rec.CreatedAt,
			&rec.Archival.IsMarkedForDeletion, &rec.Archival.ScheduledDeletionDate,
			&rec.Archival.DeletionWarningSent, &rec.Archival.WarningSentAt,
			&rec.Archival.ActualDeletionDate,
		); err != nil {
			return nil, fmt.Errorf("scan archival record: %w", err)
		}
		rec.ID = domain.RecordID(id)
		rec.UserID = domain.UserID(userID)
		rec.Module = domain.RetentionModule(module)
		rec.HolderName = holderName.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// VerificationPostgresStore adds the CRUD face the ingestion workflow uses
// on top of the archival face.
type VerificationPostgresStore struct {
	*PostgresStore
}

func NewVerificationPostgres(db *sql.DB) *VerificationPostgresStore {
	return &VerificationPostgresStore{PostgresStore: NewPostgres(db, TableVerificationRecords)}
}

// Put inserts or replaces a record. Sensitive columns arrive ciphered; the
// store never sees plaintext.
func (s *VerificationPostgresStore) Put(ctx context.Context, rec *models.VerificationRecord) error {
	query := `
		INSERT INTO verification_records (
			id, user_id, batch_id, module, owner_email,
			id_number, holder_name, date_of_birth, document,
			status, is_marked_for_deletion, scheduled_deletion_date,
			deletion_warning_sent, warning_sent_at, actual_deletion_date,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			id_number = EXCLUDED.id_number,
			holder_name = EXCLUDED.holder_name,
			date_of_birth = EXCLUDED.date_of_birth,
			document = EXCLUDED.document,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(rec.ID), uuid.UUID(rec.UserID), uuid.UUID(rec.BatchID),
		rec.Module.String(), rec.OwnerEmail,
		rec.IDNumber, rec.HolderName, rec.DateOfBirth, rec.Document,
		string(rec.Status), rec.Archival.IsMarkedForDeletion, rec.Archival.ScheduledDeletionDate,
		rec.Archival.DeletionWarningSent, rec.Archival.WarningSentAt, rec.Archival.ActualDeletionDate,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put verification record: %w", err)
	}
	return nil
}

// Get returns one record with its ciphered fields intact.
func (s *VerificationPostgresStore) Get(ctx context.Context, id domain.RecordID) (*models.VerificationRecord, error) {
	query := `
		SELECT id, user_id, batch_id, module, owner_email,
			id_number, holder_name, date_of_birth, document,
			status, is_marked_for_deletion, scheduled_deletion_date,
			deletion_warning_sent, warning_sent_at, actual_deletion_date,
			created_at, updated_at
		FROM verification_records WHERE id = $1
	`
	rows, err := s.querier(ctx).QueryContext(ctx, query, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("get verification record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sentinel.ErrNotFound
	}

	var (
		rec                   models.VerificationRecord
		recID, userID, batchID uuid.UUID
		module, status        string
	)
	if err := rows.Scan(
		&recID, &userID, &batchID, &module, &rec.OwnerEmail,
		&rec.IDNumber, &rec.HolderName, &rec.DateOfBirth, &rec.Document,
		&status, &rec.Archival.IsMarkedForDeletion, &rec.Archival.ScheduledDeletionDate,
		&rec.Archival.DeletionWarningSent, &rec.Archival.WarningSentAt, &rec.Archival.ActualDeletionDate,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan verification record: %w", err)
	}
	rec.ID = domain.RecordID(recID)
	rec.UserID = domain.UserID(userID)
	rec.BatchID = domain.BatchID(batchID)
	rec.Module = domain.RetentionModule(module)
	rec.Status = models.Status(status)
	return &rec, nil
}
