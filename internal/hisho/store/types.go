// Package store provides the record store for tasks, projects, and learned
// templates.
//
// The production backend is a Google Sheets spreadsheet accessed over the
// values REST API; a SQLite backend serves as the migration target and an
// in-memory backend backs tests and local development. All backends share
// the row-oriented model: soft deletes only, partial patches, last write
// wins.
package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harunoka/hisho/internal/hisho/dateparse"
)

// Status is the lifecycle state of a task or project row.
type Status string

const (
	StatusOpen    Status = "open"
	StatusDoing   Status = "doing"
	StatusDone    Status = "done"
	StatusDeleted Status = "deleted"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusDoing, StatusDone, StatusDeleted:
		return true
	}
	return false
}

// ScanCap bounds every full-range read. Latency is proportional to row
// count, so scans stop after this many rows per space.
const ScanCap = 500

// StampLayout is the format of created/updated/done audit timestamps.
const StampLayout = "2006-01-02 15:04:05"

// Now returns the current local timestamp in StampLayout. Overridable in
// tests.
var Now = func() string {
	return time.Now().In(dateparse.Location).Format(StampLayout)
}

// Task is a unit of work scoped to a space. Identifier, space, and creator
// are immutable once created; every other field is patched in place.
type Task struct {
	ID          string
	SpaceID     string
	ProjectID   string
	Title       string
	Description string
	Status      Status
	DueAt       string
	CreatedAt   string
	DoneAt      string
	DeletedAt   string
	CreatedBy   string
	UpdatedAt   string
}

// Project is the same shape as Task minus project linkage and done-at.
// Tasks may reference a project by ID; the relation is not enforced and
// dangling references simply fail to resolve on display.
type Project struct {
	ID          string
	SpaceID     string
	Title       string
	Description string
	Status      Status
	DueAt       string
	CreatedAt   string
	DeletedAt   string
	CreatedBy   string
	UpdatedAt   string
}

// TemplateRow is a learned exact-match phrase: the literal normalized
// utterance and the command it resolved to, with slots serialized as JSON.
type TemplateRow struct {
	SpaceID   string
	Text      string
	Action    string
	SlotsJSON string
	CreatedAt string
}

// TaskPatch is a partial update. Nil fields are left untouched; the store
// always refreshes updated-at.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *Status
	DueAt       *string
	DoneAt      *string
	DeletedAt   *string
	ProjectID   *string
}

// ProjectPatch is the project counterpart of TaskPatch.
type ProjectPatch struct {
	Title       *string
	Description *string
	Status      *Status
	DueAt       *string
	DeletedAt   *string
}

// TaskStore reads and mutates task rows for a space.
type TaskStore interface {
	// ListTasks returns the live (non-deleted) tasks of a space, capped at
	// ScanCap, in sheet order.
	ListTasks(ctx context.Context, spaceID string) ([]Task, error)
	AppendTask(ctx context.Context, t Task) error
	// PatchTask applies the non-nil fields of p to the row with the given
	// id. Missing rows return an error.
	PatchTask(ctx context.Context, spaceID, id string, p TaskPatch) error
}

// ProjectStore reads and mutates project rows for a space.
type ProjectStore interface {
	ListProjects(ctx context.Context, spaceID string) ([]Project, error)
	AppendProject(ctx context.Context, p Project) error
	PatchProject(ctx context.Context, spaceID, id string, p ProjectPatch) error
}

// TemplateStore reads and appends learned phrase rows.
type TemplateStore interface {
	ListTemplates(ctx context.Context, spaceID string) ([]TemplateRow, error)
	AppendTemplate(ctx context.Context, row TemplateRow) error
}

// Store is the full record store surface used by the engine.
type Store interface {
	TaskStore
	ProjectStore
	TemplateStore
}

// NewTaskID returns a fresh opaque task identifier. IDs embed the creation
// time (base36) plus a random suffix so they sort roughly by age while
// staying unguessable.
func NewTaskID() string { return newID("t") }

// NewProjectID returns a fresh opaque project identifier.
func NewProjectID() string { return newID("p") }

func newID(prefix string) string {
	ts := strconv.FormatInt(time.Now().Unix(), 36)
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return prefix + "-" + ts + "-" + suffix
}
