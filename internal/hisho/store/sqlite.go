package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite is the relational target of the spreadsheet migration job. It is
// not on the serving path; the webhook engine talks to Sheets.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at dbPath and applies pending
// migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite is single-writer; a single shared connection serializes
	// callers through database/sql instead of write-lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: set pragma: %w", err)
		}
	}

	s := &SQLite{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: run migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error { return s.db.Close() }

// DB returns the raw *sql.DB for ad-hoc queries.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) runMigrations() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			name       TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for version, name := range names {
		var applied int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version+1).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}
		script, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(script)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version+1, name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		slog.Info("applied migration", "version", version+1, "name", name)
	}
	return nil
}

// UpsertTask inserts or replaces a task row by id.
func (s *SQLite) UpsertTask(ctx context.Context, t Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, space_id, project_id, title, description, status,
			due_at, created_at, done_at, deleted_at, created_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			space_id = excluded.space_id, project_id = excluded.project_id,
			title = excluded.title, description = excluded.description,
			status = excluded.status, due_at = excluded.due_at,
			created_at = excluded.created_at, done_at = excluded.done_at,
			deleted_at = excluded.deleted_at, created_by = excluded.created_by,
			updated_at = excluded.updated_at`,
		t.ID, t.SpaceID, t.ProjectID, t.Title, t.Description, string(t.Status),
		t.DueAt, t.CreatedAt, t.DoneAt, t.DeletedAt, t.CreatedBy, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert task %q: %w", t.ID, err)
	}
	return nil
}

// UpsertProject inserts or replaces a project row by id.
func (s *SQLite) UpsertProject(ctx context.Context, p Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, space_id, title, description, status,
			due_at, created_at, deleted_at, created_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			space_id = excluded.space_id, title = excluded.title,
			description = excluded.description, status = excluded.status,
			due_at = excluded.due_at, created_at = excluded.created_at,
			deleted_at = excluded.deleted_at, created_by = excluded.created_by,
			updated_at = excluded.updated_at`,
		p.ID, p.SpaceID, p.Title, p.Description, string(p.Status),
		p.DueAt, p.CreatedAt, p.DeletedAt, p.CreatedBy, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert project %q: %w", p.ID, err)
	}
	return nil
}

// UpsertTemplate inserts or replaces a learned phrase row by (space, text).
func (s *SQLite) UpsertTemplate(ctx context.Context, row TemplateRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (space_id, text, action, slots_json, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(space_id, text) DO UPDATE SET
			action = excluded.action, slots_json = excluded.slots_json,
			created_at = excluded.created_at`,
		row.SpaceID, row.Text, row.Action, row.SlotsJSON, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert template %q: %w", row.Text, err)
	}
	return nil
}

// CountTasks returns the number of task rows. Used by the migration job's
// summary log line.
func (s *SQLite) CountTasks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&n)
	return n, err
}
