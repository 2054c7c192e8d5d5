package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultSheetsBase = "https://sheets.googleapis.com"

// Sheet names and their column layouts. Column order is the append order;
// the fallback indices below are used when the header row is malformed.
const (
	taskSheet     = "tasks"
	projectSheet  = "projects"
	templateSheet = "templates"
)

var (
	taskColumns     = []string{"id", "space_id", "project_id", "title", "description", "status", "due_at", "created_at", "done_at", "deleted_at", "created_by", "updated_at"}
	projectColumns  = []string{"id", "space_id", "title", "description", "status", "due_at", "created_at", "deleted_at", "created_by", "updated_at"}
	templateColumns = []string{"space_id", "text", "action", "slots_json", "created_at"}
)

// SheetsConfig configures the spreadsheet-backed Store.
type SheetsConfig struct {
	// SpreadsheetID is the target spreadsheet.
	SpreadsheetID string
	// BaseURL overrides the API endpoint (tests point this at httptest).
	// Defaults to https://sheets.googleapis.com.
	BaseURL string
	// Token returns a bearer token for the values API.
	Token func(ctx context.Context) (string, error)
	// Timeout for each HTTP request. Defaults to 15s.
	Timeout time.Duration
}

// Sheets is the Google Sheets implementation of Store. Every read fetches
// the full sheet range; there is no index or cache at this layer.
type Sheets struct {
	cfg    SheetsConfig
	client *http.Client
}

// NewSheets returns a spreadsheet-backed Store.
func NewSheets(cfg SheetsConfig) *Sheets {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSheetsBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Sheets{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

var _ Store = (*Sheets)(nil)

func (s *Sheets) ListTasks(ctx context.Context, spaceID string) ([]Task, error) {
	rows, cols, err := s.readSheet(ctx, taskSheet, taskColumns)
	if err != nil {
		return nil, err
	}
	var out []Task
	for _, row := range rows {
		t := taskFromRow(row, cols)
		if t.SpaceID == spaceID && t.Status != StatusDeleted && t.Title != "" {
			out = append(out, t)
			if len(out) >= ScanCap {
				break
			}
		}
	}
	return out, nil
}

func (s *Sheets) AppendTask(ctx context.Context, t Task) error {
	if t.Title == "" {
		return fmt.Errorf("store: task title must not be empty")
	}
	return s.appendRow(ctx, taskSheet, []string{
		t.ID, t.SpaceID, t.ProjectID, t.Title, t.Description, string(t.Status),
		t.DueAt, t.CreatedAt, t.DoneAt, t.DeletedAt, t.CreatedBy, t.UpdatedAt,
	})
}

func (s *Sheets) PatchTask(ctx context.Context, spaceID, id string, p TaskPatch) error {
	rows, cols, err := s.readSheet(ctx, taskSheet, taskColumns)
	if err != nil {
		return err
	}
	for i, row := range rows {
		t := taskFromRow(row, cols)
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
		// Row 1 is the header; data rows are 1-indexed from row 2.
		return s.updateRow(ctx, taskSheet, i+2, len(taskColumns), []string{
			t.ID, t.SpaceID, t.ProjectID, t.Title, t.Description, string(t.Status),
			t.DueAt, t.CreatedAt, t.DoneAt, t.DeletedAt, t.CreatedBy, t.UpdatedAt,
		})
	}
	return fmt.Errorf("store: task %q not found in space %q", id, spaceID)
}

func (s *Sheets) ListProjects(ctx context.Context, spaceID string) ([]Project, error) {
	rows, cols, err := s.readSheet(ctx, projectSheet, projectColumns)
	if err != nil {
		return nil, err
	}
	var out []Project
	for _, row := range rows {
		p := projectFromRow(row, cols)
		if p.SpaceID == spaceID && p.Status != StatusDeleted && p.Title != "" {
			out = append(out, p)
			if len(out) >= ScanCap {
				break
			}
		}
	}
	return out, nil
}

func (s *Sheets) AppendProject(ctx context.Context, p Project) error {
	if p.Title == "" {
		return fmt.Errorf("store: project title must not be empty")
	}
	return s.appendRow(ctx, projectSheet, []string{
		p.ID, p.SpaceID, p.Title, p.Description, string(p.Status),
		p.DueAt, p.CreatedAt, p.DeletedAt, p.CreatedBy, p.UpdatedAt,
	})
}

func (s *Sheets) PatchProject(ctx context.Context, spaceID, id string, patch ProjectPatch) error {
	rows, cols, err := s.readSheet(ctx, projectSheet, projectColumns)
	if err != nil {
		return err
	}
	for i, row := range rows {
		p := projectFromRow(row, cols)
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
		return s.updateRow(ctx, projectSheet, i+2, len(projectColumns), []string{
			p.ID, p.SpaceID, p.Title, p.Description, string(p.Status),
			p.DueAt, p.CreatedAt, p.DeletedAt, p.CreatedBy, p.UpdatedAt,
		})
	}
	return fmt.Errorf("store: project %q not found in space %q", id, spaceID)
}

func (s *Sheets) ListTemplates(ctx context.Context, spaceID string) ([]TemplateRow, error) {
	rows, cols, err := s.readSheet(ctx, templateSheet, templateColumns)
	if err != nil {
		return nil, err
	}
	var out []TemplateRow
	for _, row := range rows {
		tr := TemplateRow{
			SpaceID:   cell(row, cols["space_id"]),
			Text:      cell(row, cols["text"]),
			Action:    cell(row, cols["action"]),
			SlotsJSON: cell(row, cols["slots_json"]),
			CreatedAt: cell(row, cols["created_at"]),
		}
		if tr.SpaceID == spaceID && tr.Text != "" {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (s *Sheets) AppendTemplate(ctx context.Context, row TemplateRow) error {
	return s.appendRow(ctx, templateSheet, []string{
		row.SpaceID, row.Text, row.Action, row.SlotsJSON, row.CreatedAt,
	})
}

// --- row mapping -----------------------------------------------------------

func taskFromRow(row []string, cols map[string]int) Task {
	return Task{
		ID:          cell(row, cols["id"]),
		SpaceID:     cell(row, cols["space_id"]),
		ProjectID:   cell(row, cols["project_id"]),
		Title:       cell(row, cols["title"]),
		Description: cell(row, cols["description"]),
		Status:      statusOrOpen(cell(row, cols["status"])),
		DueAt:       cell(row, cols["due_at"]),
		CreatedAt:   cell(row, cols["created_at"]),
		DoneAt:      cell(row, cols["done_at"]),
		DeletedAt:   cell(row, cols["deleted_at"]),
		CreatedBy:   cell(row, cols["created_by"]),
		UpdatedAt:   cell(row, cols["updated_at"]),
	}
}

func projectFromRow(row []string, cols map[string]int) Project {
	return Project{
		ID:          cell(row, cols["id"]),
		SpaceID:     cell(row, cols["space_id"]),
		Title:       cell(row, cols["title"]),
		Description: cell(row, cols["description"]),
		Status:      statusOrOpen(cell(row, cols["status"])),
		DueAt:       cell(row, cols["due_at"]),
		CreatedAt:   cell(row, cols["created_at"]),
		DeletedAt:   cell(row, cols["deleted_at"]),
		CreatedBy:   cell(row, cols["created_by"]),
		UpdatedAt:   cell(row, cols["updated_at"]),
	}
}

func statusOrOpen(s string) Status {
	if !ValidStatus(Status(s)) {
		return StatusOpen
	}
	return Status(s)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// columnMap resolves column positions from a header row. Headers that are
// missing or misplaced fall back to their hardcoded default index so a
// hand-edited sheet with a mangled header row keeps working.
func columnMap(header []string, columns []string) map[string]int {
	cols := make(map[string]int, len(columns))
	for i, name := range columns {
		cols[name] = i // hardcoded fallback: declaration order
	}
	for i, h := range header {
		if _, known := cols[h]; known {
			cols[h] = i
		}
	}
	return cols
}

// --- values API ------------------------------------------------------------

// readSheet fetches the sheet's header plus up to ScanCap data rows and
// returns the data rows with the resolved column map.
func (s *Sheets) readSheet(ctx context.Context, sheet string, columns []string) ([][]string, map[string]int, error) {
	rng := fmt.Sprintf("%s!A1:%s%d", sheet, colLetter(len(columns)-1), ScanCap+1)
	values, err := s.valuesGet(ctx, rng)
	if err != nil {
		return nil, nil, err
	}
	if len(values) == 0 {
		return nil, columnMap(nil, columns), nil
	}
	return values[1:], columnMap(values[0], columns), nil
}

func (s *Sheets) valuesGet(ctx context.Context, rng string) ([][]string, error) {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		s.cfg.BaseURL, url.PathEscape(s.cfg.SpreadsheetID), url.PathEscape(rng))
	body, err := s.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Values [][]any `json:"values"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("store: decode values response: %w", err)
	}
	rows := make([][]string, len(decoded.Values))
	for i, raw := range decoded.Values {
		row := make([]string, len(raw))
		for j, v := range raw {
			row[j] = fmt.Sprint(v)
		}
		rows[i] = row
	}
	return rows, nil
}

func (s *Sheets) appendRow(ctx context.Context, sheet string, row []string) error {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=RAW",
		s.cfg.BaseURL, url.PathEscape(s.cfg.SpreadsheetID), url.PathEscape(sheet+"!A:A"))
	_, err := s.do(ctx, http.MethodPost, u, valuesBody(row))
	return err
}

func (s *Sheets) updateRow(ctx context.Context, sheet string, rowIdx, width int, row []string) error {
	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, rowIdx, colLetter(width-1), rowIdx)
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?valueInputOption=RAW",
		s.cfg.BaseURL, url.PathEscape(s.cfg.SpreadsheetID), url.PathEscape(rng))
	_, err := s.do(ctx, http.MethodPut, u, valuesBody(row))
	return err
}

func valuesBody(row []string) []byte {
	data, _ := json.Marshal(map[string]any{"values": [][]string{row}})
	return data
}

func (s *Sheets) do(ctx context.Context, method, u string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("store: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.Token != nil {
		tok, err := s.cfg.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("store: resolve token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store: sheets request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("store: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("store: sheets API returned HTTP %d: %.200s", resp.StatusCode, data)
	}
	return data, nil
}

// colLetter converts a zero-based column index to its A1 letter. Sheets in
// this schema never exceed 26 columns.
func colLetter(idx int) string {
	return string(rune('A' + idx))
}

// DumpTasks returns every task row in the sheet, including soft-deleted and
// malformed ones. Used by the migration tool, which must carry the full
// history across, not the serving view.
func (s *Sheets) DumpTasks(ctx context.Context) ([]Task, error) {
	rows, cols, err := s.readSheet(ctx, taskSheet, taskColumns)
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0, len(rows))
	for _, row := range rows {
		out = append(out, taskFromRow(row, cols))
	}
	return out, nil
}

// DumpProjects is the project counterpart of DumpTasks.
func (s *Sheets) DumpProjects(ctx context.Context) ([]Project, error) {
	rows, cols, err := s.readSheet(ctx, projectSheet, projectColumns)
	if err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(rows))
	for _, row := range rows {
		out = append(out, projectFromRow(row, cols))
	}
	return out, nil
}

// DumpTemplates returns every learned template row.
func (s *Sheets) DumpTemplates(ctx context.Context) ([]TemplateRow, error) {
	rows, cols, err := s.readSheet(ctx, templateSheet, templateColumns)
	if err != nil {
		return nil, err
	}
	out := make([]TemplateRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, TemplateRow{
			SpaceID:   cell(row, cols["space_id"]),
			Text:      cell(row, cols["text"]),
			Action:    cell(row, cols["action"]),
			SlotsJSON: cell(row, cols["slots_json"]),
			CreatedAt: cell(row, cols["created_at"]),
		})
	}
	return out, nil
}
