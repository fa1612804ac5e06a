package validator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

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

const validatorColumns = `principal, node_id, endpoint_hash, stake, active, healthy,
	last_health_check_at, latency_ms, error_count`

func (s *PostgresStore) Create(ctx context.Context, v *Validator) error {
	query := `
		INSERT INTO validators (` + validatorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		v.Principal.String(),
		v.NodeID,
		v.EndpointHash,
		v.Stake,
		v.Active,
		v.Healthy,
		v.LastHealthCheckAt,
		v.LatencyMs,
		v.ErrorCount,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert validator: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, principal domain.Principal) (*Validator, error) {
	query := `SELECT ` + validatorColumns + ` FROM validators WHERE principal = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, principal.String()))
}

func (s *PostgresStore) FindByNodeID(ctx context.Context, nodeID string) (*Validator, error) {
	query := `SELECT ` + validatorColumns + ` FROM validators WHERE node_id = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, nodeID))
}

func (s *PostgresStore) Update(ctx context.Context, v *Validator) error {
	query := `
		UPDATE validators
		SET endpoint_hash = $2, stake = $3, active = $4, healthy = $5,
		    last_health_check_at = $6, latency_ms = $7, error_count = $8
		WHERE principal = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		v.Principal.String(),
		v.EndpointHash,
		v.Stake,
		v.Active,
		v.Healthy,
		v.LastHealthCheckAt,
		v.LatencyMs,
		v.ErrorCount,
	)
	if err != nil {
		return fmt.Errorf("update validator: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update validator: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Validator, error) {
	query := `SELECT ` + validatorColumns + ` FROM validators ORDER BY node_id`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query validators: %w", err)
	}
	defer rows.Close()

	var validators []Validator
	for rows.Next() {
		var v Validator
		var principal string
		if err := rows.Scan(&principal, &v.NodeID, &v.EndpointHash, &v.Stake, &v.Active, &v.Healthy,
			&v.LastHealthCheckAt, &v.LatencyMs, &v.ErrorCount); err != nil {
			return nil, fmt.Errorf("scan validator: %w", err)
		}
		v.Principal = domain.Principal(principal)
		validators = append(validators, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate validators: %w", err)
	}
	return validators, nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Validator, error) {
	var v Validator
	var principal string
	err := row.Scan(&principal, &v.NodeID, &v.EndpointHash, &v.Stake, &v.Active, &v.Healthy,
		&v.LastHealthCheckAt, &v.LatencyMs, &v.ErrorCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan validator: %w", err)
	}
	v.Principal = domain.Principal(principal)
	return &v, nil
}
