package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DB is the handle to the local snapshot database. The store is a single
// table shared by the CLI and the daemon, so the schema is applied wholesale
// at open time rather than through a numbered migration chain.
type DB struct {
	*sql.DB
}

// Open opens the snapshot database at path, creating it and its schema if
// needed. WAL mode keeps daemon reads from blocking CLI writes against the
// same file.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// One writer at a time; snapshot traffic is tiny.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{DB: conn}, nil
}
