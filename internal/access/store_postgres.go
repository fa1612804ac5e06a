package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

// PostgresStore persists the governor's state. TriggerBreach relies on the
// caller running inside a transaction (the sequencer wraps every command in
// one), so the flag write and the mass revocation commit together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) UpsertGrant(ctx context.Context, grant *Grant) error {
	query := `
		INSERT INTO access_grants (
			subject, grantee, scope, data_scope, purpose, state,
			expires_at, requested_at, granted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (subject, grantee, scope) DO UPDATE SET
			data_scope = EXCLUDED.data_scope,
			purpose = EXCLUDED.purpose,
			state = EXCLUDED.state,
			expires_at = EXCLUDED.expires_at,
			requested_at = EXCLUDED.requested_at,
			granted_at = EXCLUDED.granted_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		grant.Subject.String(),
		grant.Grantee.String(),
		grant.Scope.String(),
		grant.DataScope,
		grant.Purpose,
		string(grant.State),
		nullableTime(grant.ExpiresAt),
		grant.RequestedAt,
		nullableTime(grant.GrantedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindGrant(ctx context.Context, subject, grantee domain.Principal, scope domain.AccessScope) (*Grant, error) {
	query := `
		SELECT subject, grantee, scope, data_scope, purpose, state,
		       expires_at, requested_at, granted_at
		FROM access_grants
		WHERE subject = $1 AND grantee = $2 AND scope = $3
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, subject.String(), grantee.String(), scope.String())
	grant, err := scanGrant(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan grant: %w", err)
	}
	return grant, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject domain.Principal) ([]Grant, error) {
	query := `
		SELECT subject, grantee, scope, data_scope, purpose, state,
		       expires_at, requested_at, granted_at
		FROM access_grants
		WHERE subject = $1
		ORDER BY requested_at ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, subject.String())
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		grant, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, *grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}

func (s *PostgresStore) RevokeGrantee(ctx context.Context, subject, grantee domain.Principal) (int, error) {
	query := `
		UPDATE access_grants
		SET state = $1
		WHERE subject = $2 AND grantee = $3 AND state <> $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, string(GrantRevoked), subject.String(), grantee.String())
	if err != nil {
		return 0, fmt.Errorf("revoke grants: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke grants: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) BreachFlag(ctx context.Context, subject domain.Principal) (*BreachFlag, error) {
	query := `SELECT active, reason, triggered_at FROM breach_flags WHERE subject = $1`
	var flag BreachFlag
	err := s.execer(ctx).QueryRowContext(ctx, query, subject.String()).
		Scan(&flag.Active, &flag.Reason, &flag.TriggeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan breach flag: %w", err)
	}
	return &flag, nil
}

func (s *PostgresStore) TriggerBreach(ctx context.Context, subject domain.Principal, flag *BreachFlag) (int, error) {
	exec := s.execer(ctx)

	result, err := exec.ExecContext(ctx, `
		UPDATE access_grants
		SET state = $1
		WHERE subject = $2 AND state <> $1
	`, string(GrantRevoked), subject.String())
	if err != nil {
		return 0, fmt.Errorf("revoke all grants: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke all grants: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO breach_flags (subject, active, reason, triggered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject) DO UPDATE SET
			active = EXCLUDED.active,
			reason = EXCLUDED.reason,
			triggered_at = EXCLUDED.triggered_at
	`, subject.String(), flag.Active, flag.Reason, flag.TriggeredAt)
	if err != nil {
		return 0, fmt.Errorf("set breach flag: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) AppendOODA(ctx context.Context, entry *OODAEntry) error {
	query := `
		INSERT INTO ooda_entries (id, subject, phase, payload_hash, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.Subject.String(),
		string(entry.Phase),
		entry.PayloadHash,
		entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ooda entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListOODA(ctx context.Context, subject domain.Principal) ([]OODAEntry, error) {
	query := `
		SELECT id, subject, phase, payload_hash, recorded_at
		FROM ooda_entries
		WHERE subject = $1
		ORDER BY recorded_at ASC, id ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, subject.String())
	if err != nil {
		return nil, fmt.Errorf("query ooda entries: %w", err)
	}
	defer rows.Close()

	var entries []OODAEntry
	for rows.Next() {
		var (
			entry   OODAEntry
			subject string
			phase   string
		)
		if err := rows.Scan(&entry.ID, &subject, &phase, &entry.PayloadHash, &entry.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan ooda entry: %w", err)
		}
		entry.Subject = domain.Principal(subject)
		entry.Phase = OODAPhase(phase)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ooda entries: %w", err)
	}
	return entries, nil
}

func scanGrant(scan func(dest ...any) error) (*Grant, error) {
	var (
		grant     Grant
		subject   string
		grantee   string
		scope     string
		state     string
		expiresAt sql.NullTime
		grantedAt sql.NullTime
	)
	err := scan(&subject, &grantee, &scope, &grant.DataScope, &grant.Purpose, &state,
		&expiresAt, &grant.RequestedAt, &grantedAt)
	if err != nil {
		return nil, err
	}
	grant.Subject = domain.Principal(subject)
	grant.Grantee = domain.Principal(grantee)
	grant.Scope = domain.AccessScope(scope)
	grant.State = GrantState(state)
	if expiresAt.Valid {
		grant.ExpiresAt = expiresAt.Time
	}
	if grantedAt.Valid {
		grant.GrantedAt = grantedAt.Time
	}
	return &grant, nil
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
