package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"custodia/pkg/domain"
)

// PostgresLog persists the command log in its own table, ordered by a
// bigserial position assigned at append time. It uses pgx directly rather
// than database/sql: the log never joins a command transaction (the log
// entry is the command, not a side effect of it) and replay streams rows.
type PostgresLog struct {
	pool *pgxpool.Pool
}

func NewPostgresLog(pool *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

func (l *PostgresLog) Append(ctx context.Context, cmds ...*Command) error {
	if len(cmds) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, cmd := range cmds {
		batch.Queue(`
			INSERT INTO command_log (
				id, kind, subject, caller, payload, nonce, signature, submitted_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			cmd.ID,
			string(cmd.Kind),
			cmd.Subject.String(),
			cmd.Caller.String(),
			[]byte(cmd.Payload),
			int64(cmd.Nonce),
			cmd.Signature,
			cmd.SubmittedAt,
		)
	}

	results := l.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range cmds {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("append command: %w", err)
		}
	}
	return nil
}

func (l *PostgresLog) Replay(ctx context.Context, fn func(cmd *Command) error) error {
	rows, err := l.pool.Query(ctx, `
		SELECT id, kind, subject, caller, payload, nonce, signature, submitted_at
		FROM command_log
		ORDER BY position ASC
	`)
	if err != nil {
		return fmt.Errorf("query command log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cmd     Command
			kind    string
			subject string
			caller  string
			payload []byte
			nonce   int64
		)
		if err := rows.Scan(&cmd.ID, &kind, &subject, &caller, &payload, &nonce, &cmd.Signature, &cmd.SubmittedAt); err != nil {
			return fmt.Errorf("scan command: %w", err)
		}
		cmd.Kind = Kind(kind)
		cmd.Subject = domain.Principal(subject)
		cmd.Caller = domain.Principal(caller)
		cmd.Payload = payload
		cmd.Nonce = uint64(nonce)
		if err := fn(&cmd); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate command log: %w", err)
	}
	return nil
}
