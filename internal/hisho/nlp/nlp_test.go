package nlp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harunoka/hisho/internal/hisho/command"
	"github.com/harunoka/hisho/internal/hisho/dateparse"
	"github.com/harunoka/hisho/internal/hisho/nlp"
	"github.com/harunoka/hisho/internal/hisho/rules"
)

func TestGeminiProvider_RequestShape(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Api-Key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("X-Goog-Api-Key"))
		}
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"action\":\"help\"}"}]}}]}`))
	}))
	defer srv.Close()

	p := nlp.NewGemini(nlp.GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	got, err := p.Generate(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != `{"action":"help"}` {
		t.Errorf("got %q", got)
	}

	gen, ok := captured["generationConfig"].(map[string]any)
	if !ok {
		t.Fatalf("no generationConfig in request: %v", captured)
	}
	if gen["temperature"] != float64(0) {
		t.Errorf("temperature = %v, want 0", gen["temperature"])
	}
	if gen["maxOutputTokens"] == float64(0) {
		t.Error("maxOutputTokens not set")
	}
	if _, ok := captured["systemInstruction"]; !ok {
		t.Error("systemInstruction missing")
	}
}

func TestGeminiProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	p := nlp.NewGemini(nlp.GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Generate(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		t.Errorf("err = %v, want API error", err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{`prose {"a":{"b":2}} trailing`, `{"a":{"b":2}}`, true},
		{`{"a":"brace } in string"}`, `{"a":"brace } in string"}`, true},
		{`no json here`, "", false},
		{`{"unterminated":`, "", false},
	}
	for _, tt := range tests {
		got, ok := nlp.ExtractJSON(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExtractJSON(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalize(t *testing.T) {
	cmd := nlp.Normalize("```json\n{\"action\":\"create_task\",\"slots\":{\"title\":\"会場手配\"}}\n```")
	if cmd.Action != command.ActionCreateTask {
		t.Fatalf("action = %s", cmd.Action)
	}
	if cmd.Slots.Title != "会場手配" {
		t.Errorf("title = %q", cmd.Slots.Title)
	}
	// Slots the model omitted decode to empty strings.
	if cmd.Slots.Query != "" || cmd.Slots.Status != "" {
		t.Errorf("omitted slots not empty: %+v", cmd.Slots)
	}
}

func TestNormalize_RejectsBadInput(t *testing.T) {
	for _, raw := range []string{
		"no json at all",
		`{"action":"launch_missiles"}`,
		`{"action":"create_task","slots":{"status":"finished"}}`,
		`{"slots":{"title":"x"}}`,
	} {
		if cmd := nlp.Normalize(raw); cmd.Action != command.ActionUnknown {
			t.Errorf("Normalize(%q) = %s, want unknown", raw, cmd.Action)
		}
	}
}

type fakeProvider struct {
	reply string
	err   error
}

func (f fakeProvider) Generate(_ context.Context, _, _ string) (string, error) {
	return f.reply, f.err
}

func TestInterpret_DueOverwrite(t *testing.T) {
	in := nlp.NewInterpreter(fakeProvider{
		reply: `{"action":"create_task","slots":{"title":"発注","due_at":"明日"}}`,
	}, nil)
	now := time.Date(2025, time.June, 10, 9, 0, 0, 0, dateparse.Location)
	cmd := in.Interpret(context.Background(), "発注を明日までに追加", now)
	if cmd.Action != command.ActionCreateTask {
		t.Fatalf("action = %s", cmd.Action)
	}
	if cmd.Slots.DueAt != "2025-06-11 18:00" {
		t.Errorf("due = %q, want 2025-06-11 18:00", cmd.Slots.DueAt)
	}
}

func TestInterpret_ProviderErrorIsUnknown(t *testing.T) {
	in := nlp.NewInterpreter(fakeProvider{err: context.DeadlineExceeded}, nil)
	cmd := in.Interpret(context.Background(), "なにか", time.Now())
	if cmd.Action != command.ActionUnknown {
		t.Errorf("action = %s, want unknown", cmd.Action)
	}
}

func TestInfer(t *testing.T) {
	inf := nlp.NewInference(rules.Default())
	tests := []struct {
		text          string
		action        command.Action
		query         string
		missingTarget bool
	}{
		{"会場手配ってやつ消して", command.ActionDeleteTask, "会場手配ってやつ", false},
		{"消して", command.ActionDeleteTask, "", true},
		{"プロジェクトなんか消して", command.ActionDeleteProject, "なんか", false},
		{"ぜんぶ見せて", command.ActionListTasks, "ぜんぶ", false},
		{"こんにちは", command.ActionUnknown, "こんにちは", false},
	}
	for _, tt := range tests {
		g := inf.Infer(tt.text)
		if g.Action != tt.action || g.Query != tt.query || g.MissingTarget != tt.missingTarget {
			t.Errorf("Infer(%q) = %+v, want {%s %q %v}", tt.text, g, tt.action, tt.query, tt.missingTarget)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := nlp.NewRateLimiter(2, 50*time.Millisecond)
	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatal("first two calls should pass")
	}
	if rl.Allow("u1") {
		t.Error("third call within window should be denied")
	}
	if !rl.Allow("u2") {
		t.Error("different sender has its own quota")
	}
	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("u1") {
		t.Error("window expired, call should pass")
	}
}
