package parse_test

import (
	"testing"
	"time"

	"github.com/harunoka/hisho/internal/hisho/command"
	"github.com/harunoka/hisho/internal/hisho/dateparse"
	"github.com/harunoka/hisho/internal/hisho/parse"
	"github.com/harunoka/hisho/internal/hisho/rules"
)

var now = time.Date(2025, time.June, 10, 9, 0, 0, 0, dateparse.Location)

func newParser(t *testing.T) *parse.Parser {
	t.Helper()
	return parse.New(rules.Default())
}

func TestParse_Help(t *testing.T) {
	p := newParser(t)
	for _, text := range []string{"ヘルプ", "help", "使い方", "ヘルプ?"} {
		cmd := p.Parse(text, now)
		if cmd == nil || cmd.Action != command.ActionHelp {
			t.Errorf("%q: got %+v, want help", text, cmd)
		}
	}
}

func TestParse_List(t *testing.T) {
	p := newParser(t)
	tests := []struct {
		text string
		want command.Action
	}{
		{"タスク一覧", command.ActionListTasks},
		{"タスクを見せて", command.ActionListTasks},
		{"プロジェクト一覧", command.ActionListProjects},
		{"案件のリスト教えて", command.ActionListProjects},
		{"一覧", command.ActionListTasks},
	}
	for _, tt := range tests {
		cmd := p.Parse(tt.text, now)
		if cmd == nil || cmd.Action != tt.want {
			t.Errorf("%q: got %+v, want %s", tt.text, cmd, tt.want)
		}
	}
}

func TestParse_TaskComplete(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("「資料作成」完了", now)
	if cmd == nil || cmd.Action != command.ActionCompleteTask {
		t.Fatalf("got %+v, want complete_task", cmd)
	}
	if cmd.Slots.Query != "資料作成" {
		t.Errorf("query = %q, want %q", cmd.Slots.Query, "資料作成")
	}
}

func TestParse_TaskCompleteByID(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("t-m3k9x2-a1b2c3d4 完了", now)
	if cmd == nil || cmd.Action != command.ActionCompleteTask {
		t.Fatalf("got %+v, want complete_task", cmd)
	}
	if cmd.Slots.Query != "t-m3k9x2-a1b2c3d4" {
		t.Errorf("query = %q", cmd.Slots.Query)
	}
}

func TestParse_TaskReopen(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("「資料作成」を戻して", now)
	if cmd == nil || cmd.Action != command.ActionReopenTask {
		t.Fatalf("got %+v, want reopen_task", cmd)
	}
	if cmd.Slots.Query != "資料作成" {
		t.Errorf("query = %q", cmd.Slots.Query)
	}
}

func TestParse_NotDoneIsNotComplete(t *testing.T) {
	// 未完了 contains 完了 but means "not done". The complete rule must not
	// fire; without other keywords the utterance falls through.
	p := newParser(t)
	cmd := p.Parse("未完了のまま", now)
	if cmd != nil {
		t.Fatalf("got %+v, want nil fallthrough", cmd)
	}
}

func TestParse_ProjectCompleteMapsToUpdate(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("「夏祭り」プロジェクト完了", now)
	if cmd == nil || cmd.Action != command.ActionUpdateProject {
		t.Fatalf("got %+v, want update_project", cmd)
	}
	if cmd.Slots.Status != "done" {
		t.Errorf("status = %q, want done", cmd.Slots.Status)
	}
	if cmd.Slots.Query != "夏祭り" {
		t.Errorf("query = %q", cmd.Slots.Query)
	}
}

func TestParse_DeleteSingle(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("「買い出し」を削除して", now)
	if cmd == nil || cmd.Action != command.ActionDeleteTask {
		t.Fatalf("got %+v, want delete_task", cmd)
	}
	if cmd.Slots.Query != "買い出し" {
		t.Errorf("query = %q", cmd.Slots.Query)
	}
}

func TestParse_DeleteMultiQuoted(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("「買い出し」と「会場予約」を削除", now)
	if cmd == nil || cmd.Action != command.ActionDeleteTask {
		t.Fatalf("got %+v, want delete_task", cmd)
	}
	if cmd.Slots.Query != "買い出し,会場予約" {
		t.Errorf("query = %q", cmd.Slots.Query)
	}
}

func TestParse_DeleteProject(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("プロジェクト「旧サイト」を削除", now)
	if cmd == nil || cmd.Action != command.ActionDeleteProject {
		t.Fatalf("got %+v, want delete_project", cmd)
	}
	if cmd.Slots.Query != "旧サイト" {
		t.Errorf("query = %q", cmd.Slots.Query)
	}
}

func TestParse_LabeledCreate(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("タイトル: 会場手配 / 説明: 駅前ホールに電話 / 期限: 6/20 15:00", now)
	if cmd == nil || cmd.Action != command.ActionCreateTask {
		t.Fatalf("got %+v, want create_task", cmd)
	}
	if cmd.Slots.Title != "会場手配" {
		t.Errorf("title = %q", cmd.Slots.Title)
	}
	if cmd.Slots.Description != "駅前ホールに電話" {
		t.Errorf("description = %q", cmd.Slots.Description)
	}
	if cmd.Slots.DueAt != "2025-06-20 15:00" {
		t.Errorf("due = %q", cmd.Slots.DueAt)
	}
}

func TestParse_NaturalCreateEndToEnd(t *testing.T) {
	// The create keyword appears once mid-title (作成) and once as the
	// closing verb (追加); only the closing one drives the match.
	p := newParser(t)
	cmd := p.Parse("議事録作成を明日18時までに追加", now)
	if cmd == nil || cmd.Action != command.ActionCreateTask {
		t.Fatalf("got %+v, want create_task", cmd)
	}
	if cmd.Slots.Title != "議事録作成" {
		t.Errorf("title = %q, want 議事録作成", cmd.Slots.Title)
	}
	if cmd.Slots.DueAt != "2025-06-11 18:00" {
		t.Errorf("due = %q, want 2025-06-11 18:00", cmd.Slots.DueAt)
	}
}

func TestParse_NaturalCreateQuoted(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("「飲み物を発注」を追加して", now)
	if cmd == nil || cmd.Action != command.ActionCreateTask {
		t.Fatalf("got %+v, want create_task", cmd)
	}
	if cmd.Slots.Title != "飲み物を発注" {
		t.Errorf("title = %q", cmd.Slots.Title)
	}
}

func TestParse_NaturalCreateProject(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("プロジェクト「夏祭り」を登録", now)
	if cmd == nil || cmd.Action != command.ActionCreateProject {
		t.Fatalf("got %+v, want create_project", cmd)
	}
	if cmd.Slots.Title != "夏祭り" {
		t.Errorf("title = %q", cmd.Slots.Title)
	}
}

func TestParse_UpdateRename(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("「買い出し」を「買い出しリスト確定」に変更", now)
	if cmd == nil || cmd.Action != command.ActionUpdateTask {
		t.Fatalf("got %+v, want update_task", cmd)
	}
	if cmd.Slots.Query != "買い出し" || cmd.Slots.NewTitle != "買い出しリスト確定" {
		t.Errorf("query = %q, new_title = %q", cmd.Slots.Query, cmd.Slots.NewTitle)
	}
}

func TestParse_UpdateDueOverwrite(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("「会場手配」の期限を6/25に変更", now)
	if cmd == nil || cmd.Action != command.ActionUpdateTask {
		t.Fatalf("got %+v, want update_task", cmd)
	}
	if cmd.Slots.DueAt != "2025-06-25 18:00" {
		t.Errorf("due = %q, want 2025-06-25 18:00", cmd.Slots.DueAt)
	}
}

func TestParse_Relocate(t *testing.T) {
	p := newParser(t)
	cmd := p.Parse("「会場手配」を「夏祭り」プロジェクトに移動", now)
	if cmd == nil || cmd.Action != command.ActionUpdateTask {
		t.Fatalf("got %+v, want update_task", cmd)
	}
	if cmd.Slots.Query != "会場手配" {
		t.Errorf("query = %q", cmd.Slots.Query)
	}
	if cmd.Slots.ProjectTitle != "夏祭り" {
		t.Errorf("project_title = %q", cmd.Slots.ProjectTitle)
	}
}

func TestParse_Deterministic(t *testing.T) {
	p := newParser(t)
	first := p.Parse("議事録作成を明日18時までに追加", now)
	for i := 0; i < 10; i++ {
		again := p.Parse("議事録作成を明日18時までに追加", now)
		if *again != *first {
			t.Fatalf("iteration %d: %+v != %+v", i, again, first)
		}
	}
}

func TestParse_NoMatchFallsThrough(t *testing.T) {
	p := newParser(t)
	if cmd := p.Parse("今日はいい天気ですね", now); cmd != nil {
		t.Errorf("got %+v, want nil", cmd)
	}
}

func TestParseStatus_OpenBeforeDone(t *testing.T) {
	p := newParser(t)
	tests := []struct {
		text string
		want string
	}{
		{"未完了に戻す", "open"},
		{"進行中にして", "doing"},
		{"完了にして", "done"},
		{"特になし", ""},
	}
	for _, tt := range tests {
		if got := string(p.ParseStatus(tt.text)); got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.text, got, tt.want)
		}
	}
}
