package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	name       TEXT PRIMARY KEY,
	doc_count  INTEGER NOT NULL,
	term_count INTEGER NOT NULL,
	data       BLOB NOT NULL,
	saved_at   INTEGER NOT NULL
);
`

// SQLiteStore keeps named framed snapshots in a SQLite database, one row
// per name. Several indexes can share a database file.
type SQLiteStore struct {
	db       *sql.DB
	name     string
	compress bool
}

func OpenSQLite(path, name string, compress bool) (*SQLiteStore, error) {
	if name == "" {
		return nil, apperrors.Configf("sqlite snapshot name must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, name: name, compress: compress}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap *index.Snapshot) error {
	data, err := Encode(snap, s.compress)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, doc_count, term_count, data, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			doc_count = excluded.doc_count,
			term_count = excluded.term_count,
			data = excluded.data,
			saved_at = excluded.saved_at`,
		s.name, snap.DocCount, len(snap.Terms), data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot %q: %w", s.name, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*index.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE name = ?`, s.name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrSnapshotNotFound, "sqlite snapshot %q", s.name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %q: %w", s.name, err)
	}
	return Decode(data)
}

// Names lists the stored snapshot names.
func (s *SQLiteStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning snapshot name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
