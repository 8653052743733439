//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// verikeep schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *sql.DB
}

// schema mirrors the tables the postgres stores expect. Kept here rather
// than in migrations because the service does not own schema management.
const schema = `
CREATE TABLE IF NOT EXISTS verification_records (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	batch_id UUID NOT NULL,
	module TEXT NOT NULL,
	owner_email TEXT NOT NULL DEFAULT '',
	id_number TEXT NOT NULL DEFAULT '',
	holder_name TEXT NOT NULL DEFAULT '',
	date_of_birth TEXT NOT NULL DEFAULT '',
	document TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	is_marked_for_deletion BOOLEAN NOT NULL DEFAULT FALSE,
	scheduled_deletion_date TIMESTAMPTZ,
	deletion_warning_sent BOOLEAN NOT NULL DEFAULT FALSE,
	warning_sent_at TIMESTAMPTZ,
	actual_deletion_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS link_records (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	batch_id UUID NOT NULL,
	module TEXT NOT NULL,
	owner_email TEXT NOT NULL DEFAULT '',
	holder_name TEXT NOT NULL DEFAULT '',
	source_id_number TEXT NOT NULL DEFAULT '',
	target_id_number TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	is_marked_for_deletion BOOLEAN NOT NULL DEFAULT FALSE,
	scheduled_deletion_date TIMESTAMPTZ,
	deletion_warning_sent BOOLEAN NOT NULL DEFAULT FALSE,
	warning_sent_at TIMESTAMPTZ,
	actual_deletion_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS retention_config (
	id INTEGER PRIMARY KEY,
	document JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_outbox (
	id UUID PRIMARY KEY,
	action TEXT NOT NULL,
	module TEXT NOT NULL DEFAULT '',
	resource TEXT NOT NULL DEFAULT '',
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("verikeep_test"),
		tcpostgres.WithUsername("verikeep"),
		tcpostgres.WithPassword("verikeep"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{Container: container, URL: url, DB: db}
}

// Truncate empties the given tables between tests.
func (p *PostgresContainer) Truncate(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table); err != nil {
			return err
		}
	}
	return nil
}
