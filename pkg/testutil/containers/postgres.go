//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema mirrors the tables the postgres stores expect. Kept here rather
// than in migrations so integration tests stay self-contained.
const schema = `
CREATE TABLE IF NOT EXISTS identities (
	principal        TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	data_pointer     TEXT NOT NULL,
	nonce            BIGINT NOT NULL DEFAULT 0,
	public_key       BYTEA,
	estate_delegate  TEXT NOT NULL DEFAULT '',
	dead_mans_switch JSONB,
	system_links     JSONB NOT NULL DEFAULT '{}',
	credentials      JSONB NOT NULL DEFAULT '{}',
	relayers         JSONB NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS access_grants (
	subject      TEXT NOT NULL,
	grantee      TEXT NOT NULL,
	scope        TEXT NOT NULL,
	data_scope   TEXT NOT NULL DEFAULT '',
	purpose      TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL,
	expires_at   TIMESTAMPTZ,
	requested_at TIMESTAMPTZ NOT NULL,
	granted_at   TIMESTAMPTZ,
	PRIMARY KEY (subject, grantee, scope)
);

CREATE TABLE IF NOT EXISTS breach_flags (
	subject      TEXT PRIMARY KEY,
	active       BOOLEAN NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	triggered_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ooda_entries (
	id           UUID PRIMARY KEY,
	subject      TEXT NOT NULL,
	phase        TEXT NOT NULL,
	payload_hash TEXT NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ooda_entries_subject_idx ON ooda_entries (subject, recorded_at);

CREATE TABLE IF NOT EXISTS audit_entries (
	subject        TEXT NOT NULL,
	sequence       BIGINT NOT NULL,
	system_type    TEXT NOT NULL,
	action_type_id TEXT NOT NULL,
	data_hash      TEXT NOT NULL,
	extra          JSONB,
	created_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (subject, sequence)
);

CREATE TABLE IF NOT EXISTS action_types (
	id                  TEXT PRIMARY KEY,
	label               TEXT NOT NULL,
	system_type         TEXT NOT NULL,
	requires_disclosure BOOLEAN NOT NULL,
	retention_days      INTEGER NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS validators (
	principal            TEXT PRIMARY KEY,
	node_id              TEXT NOT NULL UNIQUE,
	endpoint_hash        TEXT NOT NULL,
	stake                DOUBLE PRECISION NOT NULL,
	active               BOOLEAN NOT NULL,
	healthy              BOOLEAN NOT NULL,
	last_health_check_at TIMESTAMPTZ NOT NULL,
	latency_ms           INTEGER NOT NULL DEFAULT 0,
	error_count          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS command_log (
	position     BIGSERIAL PRIMARY KEY,
	id           UUID NOT NULL UNIQUE,
	kind         TEXT NOT NULL,
	subject      TEXT NOT NULL,
	caller       TEXT NOT NULL DEFAULT '',
	payload      BYTEA,
	nonce        BIGINT NOT NULL DEFAULT 0,
	signature    BYTEA,
	submitted_at TIMESTAMPTZ NOT NULL
);
`

// PostgresContainer wraps a testcontainers postgres instance with the
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("custodia_test"),
		tcpostgres.WithUsername("custodia"),
		tcpostgres.WithPassword("custodia"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	pc := &PostgresContainer{Container: container, DSN: dsn, DB: db}
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})
	return pc
}

// TruncateTables empties the given tables. Use between tests for isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}
