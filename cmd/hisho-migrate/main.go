// hisho-migrate copies the spreadsheet record store into a SQLite database.
// It is a one-off batch job, not part of the serving path: reads retry with
// backoff, writes are idempotent upserts keyed by row id, and re-running it
// against the same database is safe.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/harunoka/hisho/common/environment"
	"github.com/harunoka/hisho/common/retry"
	"github.com/harunoka/hisho/internal/hisho/observability"
	"github.com/harunoka/hisho/internal/hisho/store"
)

func main() {
	dbPath := flag.String("db", "./hisho.db", "SQLite database path")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall migration timeout")
	flag.Parse()

	observability.Setup(
		environment.StringOr("HISHO_LOG_LEVEL", "info"),
		environment.StringOr("HISHO_LOG_FORMAT", "text"),
	)

	if err := run(*dbPath, *timeout); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(dbPath string, timeout time.Duration) error {
	spreadsheetID, err := environment.RequiredString("SHEETS_SPREADSHEET_ID")
	if err != nil {
		return err
	}
	accessToken, err := environment.RequiredString("SHEETS_ACCESS_TOKEN")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sheets := store.NewSheets(store.SheetsConfig{
		SpreadsheetID: spreadsheetID,
		BaseURL:       environment.StringOr("SHEETS_BASE_URL", ""),
		Token: func(context.Context) (string, error) {
			return accessToken, nil
		},
	})

	db, err := store.NewSQLite(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Sheet reads go over a flaky SaaS API; unlike the serving path, a
	// batch job is allowed to retry.
	readRetry := retry.Config{Attempts: 4, Backoff: 2 * time.Second, MaxBackoff: 15 * time.Second}

	var tasks []store.Task
	if err := retry.Do(ctx, readRetry, func() error {
		var err error
		tasks, err = sheets.DumpTasks(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("read tasks: %w", err)
	}

	var projects []store.Project
	if err := retry.Do(ctx, readRetry, func() error {
		var err error
		projects, err = sheets.DumpProjects(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("read projects: %w", err)
	}

	var templates []store.TemplateRow
	if err := retry.Do(ctx, readRetry, func() error {
		var err error
		templates, err = sheets.DumpTemplates(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("read templates: %w", err)
	}

	var skipped int
	for _, t := range tasks {
		if t.ID == "" {
			skipped++
			continue
		}
		if err := db.UpsertTask(ctx, t); err != nil {
			return fmt.Errorf("upsert task %s: %w", t.ID, err)
		}
	}
	for _, p := range projects {
		if p.ID == "" {
			skipped++
			continue
		}
		if err := db.UpsertProject(ctx, p); err != nil {
			return fmt.Errorf("upsert project %s: %w", p.ID, err)
		}
	}
	for _, row := range templates {
		if row.Text == "" {
			skipped++
			continue
		}
		if err := db.UpsertTemplate(ctx, row); err != nil {
			return fmt.Errorf("upsert template: %w", err)
		}
	}

	total, err := db.CountTasks(ctx)
	if err != nil {
		return err
	}
	slog.Info("migration complete",
		"tasks", len(tasks),
		"projects", len(projects),
		"templates", len(templates),
		"skipped", skipped,
		"tasks_in_db", total,
	)
	return nil
}
