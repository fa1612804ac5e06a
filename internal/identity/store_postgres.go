package identity

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

// PostgresStore persists identities. Nested collections (links, credentials,
// relayers, switch config) are stored as JSONB; they are always read and
// written as a whole with the identity row, so relational decomposition buys
// nothing here.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

type identityColumns struct {
	dms         []byte
	links       []byte
	credentials []byte
	relayers    []byte
}

func marshalColumns(ident *Identity) (identityColumns, error) {
	var cols identityColumns
	var err error
	if ident.DeadMansSwitch != nil {
		if cols.dms, err = json.Marshal(ident.DeadMansSwitch); err != nil {
			return cols, fmt.Errorf("marshal dead-man's-switch: %w", err)
		}
	}
	if cols.links, err = json.Marshal(ident.SystemLinks); err != nil {
		return cols, fmt.Errorf("marshal system links: %w", err)
	}
	if cols.credentials, err = json.Marshal(ident.Credentials); err != nil {
		return cols, fmt.Errorf("marshal credentials: %w", err)
	}
	if cols.relayers, err = json.Marshal(ident.Relayers); err != nil {
		return cols, fmt.Errorf("marshal relayers: %w", err)
	}
	return cols, nil
}

func (s *PostgresStore) Create(ctx context.Context, ident *Identity) error {
	cols, err := marshalColumns(ident)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO identities (
			principal, status, data_pointer, nonce, public_key,
			estate_delegate, dead_mans_switch, system_links, credentials,
			relayers, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		ident.Principal.String(),
		string(ident.Status),
		ident.DataPointer,
		int64(ident.Nonce),
		[]byte(ident.PublicKey),
		ident.EstateDelegate.String(),
		cols.dms,
		cols.links,
		cols.credentials,
		cols.relayers,
		ident.CreatedAt,
		ident.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, principal domain.Principal) (*Identity, error) {
	query := `
		SELECT principal, status, data_pointer, nonce, public_key,
		       estate_delegate, dead_mans_switch, system_links, credentials,
		       relayers, created_at, updated_at
		FROM identities
		WHERE principal = $1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, principal.String())

	var (
		ident    Identity
		p        string
		status   string
		nonce    int64
		pubKey   []byte
		delegate string
		cols     identityColumns
	)
	err := row.Scan(
		&p, &status, &ident.DataPointer, &nonce, &pubKey,
		&delegate, &cols.dms, &cols.links, &cols.credentials,
		&cols.relayers, &ident.CreatedAt, &ident.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	ident.Principal = domain.Principal(p)
	ident.Status = Status(status)
	ident.Nonce = uint64(nonce)
	if len(pubKey) > 0 {
		ident.PublicKey = pubKey
	}
	ident.EstateDelegate = domain.Principal(delegate)

	if len(cols.dms) > 0 {
		ident.DeadMansSwitch = &DeadMansSwitch{}
		if err := json.Unmarshal(cols.dms, ident.DeadMansSwitch); err != nil {
			return nil, fmt.Errorf("unmarshal dead-man's-switch: %w", err)
		}
	}
	if err := json.Unmarshal(cols.links, &ident.SystemLinks); err != nil {
		return nil, fmt.Errorf("unmarshal system links: %w", err)
	}
	if err := json.Unmarshal(cols.credentials, &ident.Credentials); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	if err := json.Unmarshal(cols.relayers, &ident.Relayers); err != nil {
		return nil, fmt.Errorf("unmarshal relayers: %w", err)
	}
	return &ident, nil
}

func (s *PostgresStore) Update(ctx context.Context, ident *Identity) error {
	cols, err := marshalColumns(ident)
	if err != nil {
		return err
	}

	query := `
		UPDATE identities SET
			status = $2, data_pointer = $3, nonce = $4, public_key = $5,
			estate_delegate = $6, dead_mans_switch = $7, system_links = $8,
			credentials = $9, relayers = $10, updated_at = $11
		WHERE principal = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		ident.Principal.String(),
		string(ident.Status),
		ident.DataPointer,
		int64(ident.Nonce),
		[]byte(ident.PublicKey),
		ident.EstateDelegate.String(),
		cols.dms,
		cols.links,
		cols.credentials,
		cols.relayers,
		ident.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
