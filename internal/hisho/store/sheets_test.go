package store_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harunoka/hisho/internal/hisho/store"
)

// sheetServer fakes the Sheets values API for a single sheet.
type sheetServer struct {
	values  [][]string // header + data rows returned on GET
	appends [][]string
	updates map[string][]string // range → row
}

func (f *sheetServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header: %q", got)
		}
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"values": f.values})
		case r.Method == http.MethodPost && strings.Contains(r.URL.Path, ":append"):
			var body struct {
				Values [][]string `json:"values"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			f.appends = append(f.appends, body.Values...)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("{}"))
		case r.Method == http.MethodPut:
			var body struct {
				Values [][]string `json:"values"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if f.updates == nil {
				f.updates = map[string][]string{}
			}
			f.updates[r.URL.Path] = body.Values[0]
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("{}"))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

func newSheets(srvURL string) *store.Sheets {
	return store.NewSheets(store.SheetsConfig{
		SpreadsheetID: "sheet-1",
		BaseURL:       srvURL,
		Token:         func(context.Context) (string, error) { return "test-token", nil },
	})
}

func TestSheets_ListTasksFiltersSpaceAndDeleted(t *testing.T) {
	fake := &sheetServer{values: [][]string{
		{"id", "space_id", "project_id", "title", "description", "status", "due_at", "created_at", "done_at", "deleted_at", "created_by", "updated_at"},
		{"t-1", "s1", "", "買い出し", "", "open", "", "", "", "", "u1", ""},
		{"t-2", "s1", "", "掃除", "", "deleted", "", "", "", "2025-01-01 00:00:00", "u1", ""},
		{"t-3", "s2", "", "他スペース", "", "open", "", "", "", "", "u2", ""},
	}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	tasks, err := newSheets(srv.URL).ListTasks(context.Background(), "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t-1" || tasks[0].Title != "買い出し" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestSheets_HeaderReorderRespected(t *testing.T) {
	// Header row permuted: the column map must follow the header, not the
	// default layout.
	fake := &sheetServer{values: [][]string{
		{"title", "id", "space_id", "status"},
		{"買い出し", "t-1", "s1", "open"},
	}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	tasks, err := newSheets(srv.URL).ListTasks(context.Background(), "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t-1" || tasks[0].Title != "買い出し" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestSheets_MalformedHeaderFallsBackToDefaults(t *testing.T) {
	// A mangled header row must not break reads: the hardcoded column
	// order takes over.
	fake := &sheetServer{values: [][]string{
		{"???", "junk"},
		{"t-1", "s1", "", "買い出し", "", "open", "", "", "", "", "u1", ""},
	}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	tasks, err := newSheets(srv.URL).ListTasks(context.Background(), "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "買い出し" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestSheets_AppendTask(t *testing.T) {
	fake := &sheetServer{values: [][]string{}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	err := newSheets(srv.URL).AppendTask(context.Background(), store.Task{
		ID: "t-9", SpaceID: "s1", Title: "議事録作成", Status: store.StatusOpen,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(fake.appends) != 1 {
		t.Fatalf("expected 1 appended row, got %d", len(fake.appends))
	}
	row := fake.appends[0]
	if row[0] != "t-9" || row[3] != "議事録作成" || row[5] != "open" {
		t.Errorf("unexpected row: %v", row)
	}
}

func TestSheets_PatchTaskWritesFullRow(t *testing.T) {
	fake := &sheetServer{values: [][]string{
		{"id", "space_id", "project_id", "title", "description", "status", "due_at", "created_at", "done_at", "deleted_at", "created_by", "updated_at"},
		{"t-1", "s1", "", "買い出し", "", "open", "", "2025-01-01 00:00:00", "", "", "u1", ""},
	}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	done := store.StatusDone
	stamp := "2025-06-01 12:00:00"
	err := newSheets(srv.URL).PatchTask(context.Background(), "s1", "t-1", store.TaskPatch{
		Status: &done, DoneAt: &stamp,
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if len(fake.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(fake.updates))
	}
	for rng, row := range fake.updates {
		if !strings.Contains(rng, "tasks") {
			t.Errorf("unexpected update range: %q", rng)
		}
		if row[5] != "done" || row[8] != stamp {
			t.Errorf("patched row wrong: %v", row)
		}
		if row[3] != "買い出し" || row[7] != "2025-01-01 00:00:00" {
			t.Errorf("untouched fields changed: %v", row)
		}
	}
}

func TestSheets_PatchMissingTask(t *testing.T) {
	fake := &sheetServer{values: [][]string{
		{"id", "space_id", "project_id", "title", "description", "status", "due_at", "created_at", "done_at", "deleted_at", "created_by", "updated_at"},
	}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	done := store.StatusDone
	err := newSheets(srv.URL).PatchTask(context.Background(), "s1", "t-none", store.TaskPatch{Status: &done})
	if err == nil {
		t.Fatal("expected error for missing row")
	}
}

func TestSheets_HTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"status": "PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	s := store.NewSheets(store.SheetsConfig{
		SpreadsheetID: "sheet-1",
		BaseURL:       srv.URL,
		Token:         func(context.Context) (string, error) { return "t", nil },
	})
	if _, err := s.ListTasks(context.Background(), "s1"); err == nil {
		t.Fatal("expected error on HTTP 403")
	}
}
