package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

// PostgresStore persists the trail. The (subject, sequence) primary key is
// what makes the gap-free invariant hold even if two processes ever raced;
// under the sequencer that constraint never fires.
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

func (s *PostgresStore) Append(ctx context.Context, entry *Entry) error {
	var extra []byte
	if entry.Extra != nil {
		var err error
		if extra, err = json.Marshal(entry.Extra); err != nil {
			return fmt.Errorf("marshal extra: %w", err)
		}
	}

	query := `
		INSERT INTO audit_entries (
			subject, sequence, system_type, action_type_id, data_hash,
			extra, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		entry.Subject.String(),
		int64(entry.Sequence),
		entry.SystemType.String(),
		entry.ActionTypeID,
		entry.DataHash,
		extra,
		entry.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) LastSequence(ctx context.Context, subject domain.Principal) (uint64, error) {
	query := `SELECT COALESCE(MAX(sequence), 0) FROM audit_entries WHERE subject = $1`
	var last int64
	if err := s.execer(ctx).QueryRowContext(ctx, query, subject.String()).Scan(&last); err != nil {
		return 0, fmt.Errorf("query last sequence: %w", err)
	}
	return uint64(last), nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject domain.Principal) ([]Entry, error) {
	query := `
		SELECT subject, sequence, system_type, action_type_id, data_hash,
		       extra, created_at
		FROM audit_entries
		WHERE subject = $1
		ORDER BY sequence ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, subject.String())
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) CountBySubject(ctx context.Context, subject domain.Principal) (uint64, error) {
	query := `SELECT COUNT(*) FROM audit_entries WHERE subject = $1`
	var count int64
	if err := s.execer(ctx).QueryRowContext(ctx, query, subject.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return uint64(count), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{BySystemType: make(map[domain.SystemType]uint64)}

	query := `SELECT COUNT(*), COUNT(DISTINCT subject) FROM audit_entries`
	var total, subjects int64
	if err := s.execer(ctx).QueryRowContext(ctx, query).Scan(&total, &subjects); err != nil {
		return nil, fmt.Errorf("query audit stats: %w", err)
	}
	stats.TotalEntries = uint64(total)
	stats.Subjects = int(subjects)

	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT system_type, COUNT(*) FROM audit_entries GROUP BY system_type`)
	if err != nil {
		return nil, fmt.Errorf("query audit stats by system: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st string
		var count int64
		if err := rows.Scan(&st, &count); err != nil {
			return nil, fmt.Errorf("scan audit stats: %w", err)
		}
		stats.BySystemType[domain.SystemType(st)] = uint64(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit stats: %w", err)
	}
	return stats, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			subject string
			seq     int64
			st      string
			extra   []byte
		)
		if err := rows.Scan(&subject, &seq, &st, &entry.ActionTypeID, &entry.DataHash, &extra, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Subject = domain.Principal(subject)
		entry.Sequence = uint64(seq)
		entry.SystemType = domain.SystemType(st)
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &entry.Extra); err != nil {
				return nil, fmt.Errorf("unmarshal extra: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// PostgresRegistry persists action types.
type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return r.db
}

func (r *PostgresRegistry) CreateActionType(ctx context.Context, at *ActionType) error {
	query := `
		INSERT INTO action_types (
			id, label, system_type, requires_disclosure, retention_days, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.execer(ctx).ExecContext(ctx, query,
		at.ID,
		at.Label,
		at.SystemType.String(),
		at.RequiresDisclosure,
		at.RetentionDays,
		at.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert action type: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) FindActionType(ctx context.Context, id string) (*ActionType, error) {
	query := `
		SELECT id, label, system_type, requires_disclosure, retention_days, created_at
		FROM action_types
		WHERE id = $1
	`
	var at ActionType
	var st string
	err := r.execer(ctx).QueryRowContext(ctx, query, id).
		Scan(&at.ID, &at.Label, &st, &at.RequiresDisclosure, &at.RetentionDays, &at.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan action type: %w", err)
	}
	at.SystemType = domain.SystemType(st)
	return &at, nil
}
