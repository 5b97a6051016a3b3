package collection

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"
)

// OpenDB opens (and creates if needed) the SQLite database backing one or
// more collections. WAL mode and a busy timeout keep concurrent sessions
// from tripping over each other's commits.
func OpenDB(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SQLiteStore keeps a collection as one table of (id, JSON blob) rows.
type SQLiteStore[T Record] struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore creates the collection table if it does not exist and
// returns a store over it. Several collections may share one database.
func NewSQLiteStore[T Record](db *sql.DB, table string) (*SQLiteStore[T], error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid collection table name %q", table)
	}
	createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY,
    data TEXT NOT NULL
);
`, table)
	if _, err := db.Exec(createSQL); err != nil {
		return nil, fmt.Errorf("ensure collection table: %w", err)
	}
	return &SQLiteStore[T]{db: db, table: table}, nil
}

// List returns every record in the collection, ordered by id.
func (s *SQLiteStore[T]) List() ([]T, error) {
	rows, err := s.db.Query(fmt.Sprintf("SELECT data FROM %s ORDER BY id", s.table))
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var record T
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Upsert inserts or replaces the record with the same id.
func (s *SQLiteStore[T]) Upsert(record T) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, data) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data
`, s.table)
	if _, err := s.db.Exec(query, record.RecordID(), string(data)); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Remove deletes the record with the given id.
func (s *SQLiteStore[T]) Remove(id int) error {
	if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table), id); err != nil {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}
