// Package templates is the exact-match phrase cache consulted before any
// other resolution: once an utterance has been resolved (by the regex fast
// path or the model), the literal text and its command are persisted, and
// identical future utterances skip interpretation entirely.
package templates

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunoka/hisho/internal/hisho/command"
	"github.com/harunoka/hisho/internal/hisho/store"
)

// CacheTTL bounds how long a per-space snapshot of the template rows is
// served from memory before the store is consulted again.
const CacheTTL = 2 * time.Minute

// Now is the clock; tests override it to drive cache expiry.
var Now = time.Now

// Cache is the in-memory front of the template store. Lookups are exact,
// case-insensitive matches of the full stripped utterance.
//
// Cache is safe for concurrent use.
type Cache struct {
	store store.TemplateStore
	log   *slog.Logger

	mu     sync.Mutex
	spaces map[string]*snapshot
}

type snapshot struct {
	byText  map[string]command.Command // lowercased text → command
	expires time.Time
}

// NewCache wraps a template store. A nil logger falls back to slog.Default.
func NewCache(ts store.TemplateStore, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{store: ts, log: log, spaces: make(map[string]*snapshot)}
}

// Lookup returns the learned command for text in the given space, or nil.
// A store failure on reload is logged and treated as a miss; the caller
// falls through to the regex and model stages.
func (c *Cache) Lookup(ctx context.Context, spaceID, text string) *command.Command {
	snap, err := c.snapshotFor(ctx, spaceID)
	if err != nil {
		c.log.WarnContext(ctx, "template reload failed", "error", err)
		return nil
	}
	cmd, ok := snap.byText[strings.ToLower(strings.TrimSpace(text))]
	if !ok {
		return nil
	}
	out := cmd
	return &out
}

// Learn persists a newly resolved (text, command) pair and folds it into
// the current snapshot so the very next identical utterance hits. Only
// freshly interpreted utterances should be learned; replaying a cached hit
// through Learn would grow the store without bound.
func (c *Cache) Learn(ctx context.Context, spaceID, text string, cmd *command.Command) {
	text = strings.TrimSpace(text)
	if text == "" || cmd == nil {
		return
	}
	slots, err := json.Marshal(cmd.Slots)
	if err != nil {
		return
	}
	row := store.TemplateRow{
		SpaceID:   spaceID,
		Text:      text,
		Action:    string(cmd.Action),
		SlotsJSON: string(slots),
		CreatedAt: Now().In(time.UTC).Format(store.StampLayout),
	}
	if err := c.store.AppendTemplate(ctx, row); err != nil {
		c.log.WarnContext(ctx, "template append failed", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if snap, ok := c.spaces[spaceID]; ok {
		snap.byText[strings.ToLower(text)] = *cmd
	}
}

func (c *Cache) snapshotFor(ctx context.Context, spaceID string) (*snapshot, error) {
	c.mu.Lock()
	snap, ok := c.spaces[spaceID]
	if ok && Now().Before(snap.expires) {
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	// Reload outside the lock; concurrent reloads of the same space are
	// wasteful but harmless, last one wins.
	rows, err := c.store.ListTemplates(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	fresh := &snapshot{
		byText:  make(map[string]command.Command, len(rows)),
		expires: Now().Add(CacheTTL),
	}
	for _, row := range rows {
		action := command.Action(row.Action)
		if !action.Valid() {
			continue
		}
		cmd := command.Command{Action: action}
		if row.SlotsJSON != "" {
			if err := json.Unmarshal([]byte(row.SlotsJSON), &cmd.Slots); err != nil {
				continue
			}
		}
		fresh.byText[strings.ToLower(row.Text)] = cmd
	}

	c.mu.Lock()
	c.spaces[spaceID] = fresh
	c.mu.Unlock()
	return fresh, nil
}
