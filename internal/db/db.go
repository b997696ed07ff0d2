package db

import (
	"embed"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// DB wraps sqlx.DB with region store methods
type DB struct {
	*sqlx.DB
}

// New opens the region store and applies the schema
func New(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, eris.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Connect("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to database")
	}
	// Sync writes from several goroutines; sqlite allows one writer.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to run migrations")
	}

	return &DB{db}, nil
}

func migrate(db *sqlx.DB) error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return eris.Wrap(err, "failed to read schema")
	}

	if _, err := db.Exec(string(schema)); err != nil {
		return eris.Wrap(err, "failed to execute schema")
	}

	return nil
}
