package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS payloads (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	peripheral_id TEXT NOT NULL,
	body          TEXT NOT NULL,
	received_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payloads_peripheral ON payloads(peripheral_id);
`

// SQLiteSink persists payload entries to a local SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (creating if needed) the database at path.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Write inserts one payload row.
func (s *SQLiteSink) Write(e Entry) error {
	_, err := s.db.Exec(
		"INSERT INTO payloads (peripheral_id, body, received_at) VALUES (?, ?, ?)",
		e.PeripheralID, e.Body, e.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payload: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
