package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/harunoka/hisho/internal/hisho/store"
)

func newSQLite(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "hisho.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_MigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hisho.db")
	s1, err := store.NewSQLite(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()
	s2, err := store.NewSQLite(path)
	if err != nil {
		t.Fatalf("second open must not re-apply migrations: %v", err)
	}
	s2.Close()
}

func TestSQLite_UpsertTaskTwice(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	task := store.Task{ID: "t-1", SpaceID: "s1", Title: "買い出し", Status: store.StatusOpen}
	if err := s.UpsertTask(ctx, task); err != nil {
		t.Fatalf("insert: %v", err)
	}
	task.Title = "買い出し(更新)"
	if err := s.UpsertTask(ctx, task); err != nil {
		t.Fatalf("update: %v", err)
	}

	n, err := s.CountTasks(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("upsert must not duplicate rows, got %d", n)
	}

	var title string
	if err := s.DB().QueryRow("SELECT title FROM tasks WHERE id = 't-1'").Scan(&title); err != nil {
		t.Fatalf("select: %v", err)
	}
	if title != "買い出し(更新)" {
		t.Errorf("got title %q", title)
	}
}

func TestSQLite_UpsertProjectAndTemplate(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	if err := s.UpsertProject(ctx, store.Project{ID: "p-1", SpaceID: "s1", Title: "リリース準備", Status: store.StatusOpen}); err != nil {
		t.Fatalf("project: %v", err)
	}
	row := store.TemplateRow{SpaceID: "s1", Text: "タスク一覧", Action: "list_tasks", SlotsJSON: "{}"}
	if err := s.UpsertTemplate(ctx, row); err != nil {
		t.Fatalf("template insert: %v", err)
	}
	if err := s.UpsertTemplate(ctx, row); err != nil {
		t.Fatalf("template upsert: %v", err)
	}
}
