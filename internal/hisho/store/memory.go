package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Memory is an in-process Store used by tests and local development. It
// mirrors the sheet semantics: append-only rows, soft deletes, last write
// wins on patches.
type Memory struct {
	mu        sync.Mutex
	tasks     []Task
	projects  []Project
	templates []TemplateRow
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

var _ Store = (*Memory)(nil)

func (m *Memory) ListTasks(_ context.Context, spaceID string) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Task
	for _, t := range m.tasks {
		if t.SpaceID == spaceID && t.Status != StatusDeleted {
			out = append(out, t)
			if len(out) >= ScanCap {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) AppendTask(_ context.Context, t Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("store: task title must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, t)
	return nil
}

func (m *Memory) PatchTask(_ context.Context, spaceID, id string, p TaskPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		t := &m.tasks[i]
		if t.SpaceID != spaceID || t.ID != id {
			continue
		}
		if p.Title != nil {
			t.Title = *p.Title
		}
		if p.Description != nil {
			t.Description = *p.Description
		}
		if p.Status != nil {
			t.Status = *p.Status
		}
		if p.DueAt != nil {
			t.DueAt = *p.DueAt
		}
		if p.DoneAt != nil {
			t.DoneAt = *p.DoneAt
		}
		if p.DeletedAt != nil {
			t.DeletedAt = *p.DeletedAt
		}
		if p.ProjectID != nil {
			t.ProjectID = *p.ProjectID
		}
		t.UpdatedAt = Now()
		return nil
	}
	return fmt.Errorf("store: task %q not found in space %q", id, spaceID)
}

func (m *Memory) ListProjects(_ context.Context, spaceID string) ([]Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Project
	for _, p := range m.projects {
		if p.SpaceID == spaceID && p.Status != StatusDeleted {
			out = append(out, p)
			if len(out) >= ScanCap {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) AppendProject(_ context.Context, p Project) error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("store: project title must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = append(m.projects, p)
	return nil
}

func (m *Memory) PatchProject(_ context.Context, spaceID, id string, patch ProjectPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.projects {
		p := &m.projects[i]
		if p.SpaceID != spaceID || p.ID != id {
			continue
		}
		if patch.Title != nil {
			p.Title = *patch.Title
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Status != nil {
			p.Status = *patch.Status
		}
		if patch.DueAt != nil {
			p.DueAt = *patch.DueAt
		}
		if patch.DeletedAt != nil {
			p.DeletedAt = *patch.DeletedAt
		}
		p.UpdatedAt = Now()
		return nil
	}
	return fmt.Errorf("store: project %q not found in space %q", id, spaceID)
}

func (m *Memory) ListTemplates(_ context.Context, spaceID string) ([]TemplateRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TemplateRow
	for _, row := range m.templates {
		if row.SpaceID == spaceID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *Memory) AppendTemplate(_ context.Context, row TemplateRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = append(m.templates, row)
	return nil
}

// RawTask returns the task by id regardless of status. Test helper.
func (m *Memory) RawTask(id string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}
