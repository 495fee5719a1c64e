package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

var _ DBTX = (*pgxpool.Pool)(nil)

// Postgres persists ledger slots in a single key-value table with a JSONB
// payload, plus an append-only operations log. Queries run against a DBTX so
// the repository works unchanged inside a pgx transaction.
type Postgres struct {
	db DBTX
}

// NewPostgres creates the repository and ensures its schema exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	p := &Postgres{db: pool}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("store schema: %w", err)
	}
	return p, nil
}

// WithTx returns a repository running against tx instead of the pool.
func (p *Postgres) WithTx(tx pgx.Tx) *Postgres {
	return &Postgres{db: tx}
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ledger_slots (
			slot        TEXT PRIMARY KEY,
			value       JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS recon_audit (
			id             UUID PRIMARY KEY,
			action         TEXT NOT NULL,
			slot           TEXT NOT NULL DEFAULT '',
			rows_affected  INT NOT NULL DEFAULT 0,
			detail         TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recon_audit_created_at
			ON recon_audit (created_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the table stored under slot.
func (p *Postgres) Load(ctx context.Context, slot string) ([][]string, error) {
	var raw []byte
	err := p.db.QueryRow(ctx,
		`SELECT value FROM ledger_slots WHERE slot = $1`, slot,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", slot, err)
	}

	var table [][]string
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("decode slot %s: %w", slot, err)
	}
	return table, nil
}

// Save stores the table under slot, replacing any previous value.
func (p *Postgres) Save(ctx context.Context, slot string, table [][]string) error {
	raw, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encode slot %s: %w", slot, err)
	}

	_, err = p.db.Exec(ctx,
		`INSERT INTO ledger_slots (slot, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (slot) DO UPDATE SET value = $2, updated_at = now()`,
		slot, raw,
	)
	if err != nil {
		return fmt.Errorf("save slot %s: %w", slot, err)
	}
	return nil
}

// Delete removes a slot.
func (p *Postgres) Delete(ctx context.Context, slot string) error {
	if _, err := p.db.Exec(ctx,
		`DELETE FROM ledger_slots WHERE slot = $1`, slot,
	); err != nil {
		return fmt.Errorf("delete slot %s: %w", slot, err)
	}
	return nil
}

// LogOperation appends one record to the operations log.
func (p *Postgres) LogOperation(ctx context.Context, rec OperationRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := p.db.Exec(ctx,
		`INSERT INTO recon_audit (id, action, slot, rows_affected, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, rec.Action, rec.Slot, rec.RowsAffected, rec.Detail, createdAt,
	)
	if err != nil {
		return fmt.Errorf("log operation %s: %w", rec.Action, err)
	}
	return nil
}

// RecentOperations returns the newest log entries, newest first.
func (p *Postgres) RecentOperations(ctx context.Context, limit int) ([]OperationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.Query(ctx,
		`SELECT id, action, slot, rows_affected, detail, created_at
		 FROM recon_audit
		 ORDER BY created_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent operations: %w", err)
	}
	defer rows.Close()

	var out []OperationRecord
	for rows.Next() {
		var rec OperationRecord
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.Slot, &rec.RowsAffected, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
