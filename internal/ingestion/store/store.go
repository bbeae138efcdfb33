// Package store keeps the source of truth for documents in PostgreSQL. The
// CLI bulk-loads an index from it and the indexer records the lifecycle
// status of every document it applies.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	ref        TEXT PRIMARY KEY,
	fields     JSONB NOT NULL DEFAULT '{}'::jsonb,
	status     TEXT NOT NULL DEFAULT 'PENDING',
	error      TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	indexed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (status);
`

type Store struct {
	db *postgres.Client
}

func New(db *postgres.Client) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the documents table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating documents schema: %w", err)
	}
	return nil
}

// Stage records events as PENDING before they are published. Upserts
// replace the stored fields; deletes only mark the row.
func (s *Store) Stage(ctx context.Context, events []ingestion.DocumentEvent) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, ev := range events {
			if err := stage(ctx, tx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

func stage(ctx context.Context, tx *sql.Tx, ev ingestion.DocumentEvent) error {
	if ev.Op == ingestion.OpDelete {
		_, err := tx.ExecContext(ctx,
			`UPDATE documents SET status=$1, updated_at=NOW() WHERE ref=$2`,
			ingestion.StatusPending, ev.Ref)
		if err != nil {
			return fmt.Errorf("staging delete of %q: %w", ev.Ref, err)
		}
		return nil
	}
	fields, err := json.Marshal(ev.Fields)
	if err != nil {
		return fmt.Errorf("encoding fields of %q: %w", ev.Ref, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (ref, fields, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (ref) DO UPDATE SET
			fields = EXCLUDED.fields,
			status = EXCLUDED.status,
			error = NULL,
			updated_at = NOW()`,
		ev.Ref, fields, ingestion.StatusPending)
	if err != nil {
		return fmt.Errorf("staging upsert of %q: %w", ev.Ref, err)
	}
	return nil
}

// SetStatus records the outcome of applying an event. cause is stored for
// FAILED rows and cleared otherwise.
func (s *Store) SetStatus(ctx context.Context, ref, status string, cause error) error {
	var msg sql.NullString
	if cause != nil {
		msg = sql.NullString{String: cause.Error(), Valid: true}
	}
	_, err := s.db.DB.ExecContext(ctx, `
		UPDATE documents SET
			status = $1,
			error = $2,
			updated_at = NOW(),
			indexed_at = CASE WHEN $1 = 'INDEXED' THEN NOW() ELSE indexed_at END
		WHERE ref = $3`,
		status, msg, ref)
	if err != nil {
		return fmt.Errorf("updating status of %q: %w", ref, err)
	}
	return nil
}

// Load streams every document that has not been removed, ordered by ref.
// It stops at the first error fn returns.
func (s *Store) Load(ctx context.Context, fn func(ref string, fields map[string]string) error) (int, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT ref, fields FROM documents WHERE status <> $1 ORDER BY ref`,
		ingestion.StatusRemoved)
	if err != nil {
		return 0, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var ref string
		var raw []byte
		if err := rows.Scan(&ref, &raw); err != nil {
			return n, fmt.Errorf("scanning document: %w", err)
		}
		fields := make(map[string]string)
		if err := json.Unmarshal(raw, &fields); err != nil {
			return n, fmt.Errorf("decoding fields of %q: %w", ref, err)
		}
		if err := fn(ref, fields); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}

// Counts returns the number of documents per status.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
