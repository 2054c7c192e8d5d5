package templates_test

import (
	"context"
	"testing"
	"time"

	"github.com/harunoka/hisho/internal/hisho/command"
	"github.com/harunoka/hisho/internal/hisho/store"
	"github.com/harunoka/hisho/internal/hisho/templates"
)

type countingStore struct {
	*store.Memory
	lists int
}

func (c *countingStore) ListTemplates(ctx context.Context, spaceID string) ([]store.TemplateRow, error) {
	c.lists++
	return c.Memory.ListTemplates(ctx, spaceID)
}

func TestCache_LearnThenLookup(t *testing.T) {
	cs := &countingStore{Memory: store.NewMemory()}
	cache := templates.NewCache(cs, nil)
	ctx := context.Background()

	cmd := &command.Command{Action: command.ActionCreateTask}
	cmd.Slots.Title = "会場手配"
	cache.Learn(ctx, "space1", "会場手配を追加", cmd)

	got := cache.Lookup(ctx, "space1", "会場手配を追加")
	if got == nil || got.Action != command.ActionCreateTask || got.Slots.Title != "会場手配" {
		t.Fatalf("Lookup = %+v", got)
	}
	if got := cache.Lookup(ctx, "space2", "会場手配を追加"); got != nil {
		t.Errorf("cross-space hit: %+v", got)
	}
}

func TestCache_CaseInsensitiveExactMatch(t *testing.T) {
	cache := templates.NewCache(store.NewMemory(), nil)
	ctx := context.Background()

	cache.Learn(ctx, "s", "List Tasks", &command.Command{Action: command.ActionListTasks})
	if got := cache.Lookup(ctx, "s", "list tasks"); got == nil {
		t.Error("case-insensitive lookup missed")
	}
	if got := cache.Lookup(ctx, "s", "list tasks now"); got != nil {
		t.Error("partial text must not match")
	}
}

func TestCache_TTLReload(t *testing.T) {
	base := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	now := base
	templates.Now = func() time.Time { return now }
	defer func() { templates.Now = time.Now }()

	cs := &countingStore{Memory: store.NewMemory()}
	cache := templates.NewCache(cs, nil)
	ctx := context.Background()

	cache.Lookup(ctx, "s", "x")
	cache.Lookup(ctx, "s", "x")
	if cs.lists != 1 {
		t.Fatalf("lists = %d, want 1 (second lookup cached)", cs.lists)
	}

	now = base.Add(templates.CacheTTL + time.Second)
	cache.Lookup(ctx, "s", "x")
	if cs.lists != 2 {
		t.Fatalf("lists = %d, want 2 (snapshot expired)", cs.lists)
	}
}
