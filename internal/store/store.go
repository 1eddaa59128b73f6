// Package store persists the coordinator's command log: every accepted or
// rejected edit, grouped by the version its tick committed at. The in-memory
// history stays authoritative; this is the audit trail.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ehrlich-b/quill/internal/document"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db *sql.DB
}

// Edit is one persisted command-log row.
type Edit struct {
	ID        int64
	Version   uint64
	Username  string
	Cmd       string
	Status    string
	AppliedAt time.Time
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// AppendTick writes every record of one committed tick in a single
// transaction. version is the version the tick was applied at.
func (s *Store) AppendTick(version uint64, records []document.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if _, err := tx.Exec(
			"INSERT INTO edits (version, username, cmd, status, applied_at) VALUES (?, ?, ?, ?, ?)",
			version, r.Username, r.Raw, r.Status.Reason(), now,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert edit: %w", err)
		}
	}
	return tx.Commit()
}

// ListByVersion returns the persisted records of one tick, in insertion
// order.
func (s *Store) ListByVersion(version uint64) ([]*Edit, error) {
	rows, err := s.db.Query(
		"SELECT id, version, username, cmd, status, applied_at FROM edits WHERE version = ? ORDER BY id",
		version,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdits(rows)
}

// ListRecent returns the newest rows, most recent first.
func (s *Store) ListRecent(limit int) ([]*Edit, error) {
	rows, err := s.db.Query(
		"SELECT id, version, username, cmd, status, applied_at FROM edits ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdits(rows)
}

func scanEdits(rows *sql.Rows) ([]*Edit, error) {
	var out []*Edit
	for rows.Next() {
		var e Edit
		var applied string
		if err := rows.Scan(&e.ID, &e.Version, &e.Username, &e.Cmd, &e.Status, &applied); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339, applied); err == nil {
			e.AppliedAt = ts
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
