package datastore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/soarclient/soarsocket/pkg/model"
)

// SQLite stores records in a single users table.
type SQLite struct {
	DB *sql.DB
}

// NewSQLite opens (or creates) a SQLite database and runs migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("datastore: open DB: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: set busy_timeout: %w", err)
	}

	s := &SQLite{DB: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.DB.Close()
}

func (s *SQLite) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		identity     TEXT NOT NULL PRIMARY KEY CHECK(length(identity) > 0),
		display_name TEXT NOT NULL DEFAULT '',
		role         TEXT,
		updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
	);
	`
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{version: 1, statements: []string{schema}},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("datastore: migrate v%d: %w", m.version, err)
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("datastore: create schema_migrations: %w", err)
	}
	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("datastore: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.DB.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("datastore: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *SQLite) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.DB.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("datastore: read schema version: %w", err)
	}
	return version, nil
}

func (s *SQLite) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.DB.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("datastore: update schema version: %w", err)
	}
	return nil
}

// Load returns every row. A NULL role column is an unset role.
func (s *SQLite) Load(ctx context.Context) (Records, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT identity, display_name, role FROM users")
	if err != nil {
		return nil, fmt.Errorf("datastore: list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make(Records)
	for rows.Next() {
		var rec model.UserRecord
		var role sql.NullString
		if err := rows.Scan(&rec.Identity, &rec.DisplayName, &role); err != nil {
			return nil, fmt.Errorf("datastore: scan user: %w", err)
		}
		if role.Valid {
			if err := rec.Role.UnmarshalText([]byte(role.String)); err != nil {
				return nil, fmt.Errorf("datastore: user %q: %w", rec.Identity, err)
			}
		}
		records[rec.Identity] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("datastore: list users: %w", err)
	}
	return records, nil
}

// Save replaces the table contents in one transaction.
func (s *SQLite) Save(ctx context.Context, records Records) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("datastore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM users"); err != nil {
		return fmt.Errorf("datastore: clear users: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO users (identity, display_name, role) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("datastore: prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for id, rec := range records {
		var role sql.NullString
		if rec.Role != model.RoleUnset {
			role = sql.NullString{String: rec.Role.String(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, rec.DisplayName, role); err != nil {
			return fmt.Errorf("datastore: insert %q: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("datastore: commit: %w", err)
	}
	return nil
}
