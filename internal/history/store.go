package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store provides read-write access to the history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `
	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		label TEXT NOT NULL,
		summary TEXT NOT NULL,
		createdAt REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(createdAt);
`

// Open opens (creating if needed) the database with WAL and applies the schema.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps an in-memory database shared and serializes writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a result, filling in its ID and timestamp when unset.
func (s *Store) Record(a Assessment) (Assessment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	_, err := s.db.Exec(`
		INSERT INTO assessments (id, kind, label, summary, createdAt)
		VALUES (?, ?, ?, ?, ?)
	`, a.ID, string(a.Kind), a.Label, a.Summary, unixFromTime(a.CreatedAt))
	if err != nil {
		return Assessment{}, fmt.Errorf("insert assessment: %w", err)
	}
	return a, nil
}

// Recent returns up to limit results, newest first.
func (s *Store) Recent(limit int) ([]Assessment, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, label, summary, createdAt
		FROM assessments
		ORDER BY createdAt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer rows.Close()

	var out []Assessment
	for rows.Next() {
		var a Assessment
		var kind string
		var createdAt float64
		if err := rows.Scan(&a.ID, &kind, &a.Label, &a.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		a.Kind = Kind(kind)
		a.CreatedAt = timeFromUnix(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
