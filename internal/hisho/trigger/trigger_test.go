package trigger_test

import (
	"testing"

	"github.com/harunoka/hisho/internal/hisho/trigger"
)

func newDetector() *trigger.Detector {
	return trigger.New("hisho", nil)
}

func TestDetect_Mention(t *testing.T) {
	d := newDetector()
	tests := []struct {
		text string
		want bool
	}{
		{"@hisho タスク一覧", true},
		{"タスク一覧 @hisho", true},
		{"＠hisho タスク一覧", true},
		{"@HISHO タスク一覧", true},
		{"@ hisho タスク一覧", true},
		{"hisho タスク一覧", false},
	}
	for _, tt := range tests {
		if got := d.Detect(tt.text); got != tt.want {
			t.Errorf("Detect(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestDetect_WakeWordHeadOnly(t *testing.T) {
	d := newDetector()
	tests := []struct {
		text string
		want bool
	}{
		{"ボット タスク一覧", true},
		{"ボット、タスク一覧", true},
		{"ボット", true},
		// Wake word at head but glued to a following letter is ordinary text.
		{"ボットに伝えて", false},
		// Wake word not at the head never triggers.
		{"よろしくボット", false},
		{"このボット すごい", false},
	}
	for _, tt := range tests {
		if got := d.Detect(tt.text); got != tt.want {
			t.Errorf("Detect(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestStrip(t *testing.T) {
	d := newDetector()
	tests := []struct {
		text string
		want string
	}{
		{"@hisho タスク一覧", "タスク一覧"},
		{"タスク一覧 @hisho", "タスク一覧"},
		{"ボット、タスク一覧", "タスク一覧"},
		{"ボット タスク一覧", "タスク一覧"},
		{"@hisho 議事録を @hisho 追加", "議事録を 追加"},
		{"タスク一覧", "タスク一覧"},
	}
	for _, tt := range tests {
		if got := d.Strip(tt.text); got != tt.want {
			t.Errorf("Strip(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
