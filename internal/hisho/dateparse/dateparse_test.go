package dateparse_test

import (
	"strings"
	"testing"
	"time"

	"github.com/harunoka/hisho/internal/hisho/dateparse"
)

func ref(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, dateparse.Location)
}

func TestParse_YearRollsForward(t *testing.T) {
	// 1/10 typed on 2025-12-20 means January of the coming year.
	got := dateparse.Parse("1/10 18:00", ref(2025, time.December, 20))
	if got != "2026-01-10 18:00" {
		t.Errorf("got %q, want %q", got, "2026-01-10 18:00")
	}
}

func TestParse_DefaultTimeAndCurrentYear(t *testing.T) {
	got := dateparse.Parse("4/10", ref(2025, time.March, 1))
	if got != "2025-04-10 18:00" {
		t.Errorf("got %q, want %q", got, "2025-04-10 18:00")
	}
}

func TestParse_ExplicitYearNeverRolls(t *testing.T) {
	got := dateparse.Parse("2024/01/10", ref(2025, time.December, 20))
	if got != "2024-01-10 18:00" {
		t.Errorf("got %q, want %q", got, "2024-01-10 18:00")
	}
}

func TestParse_KanjiForms(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"3月4日", "2025-03-04 18:00"},
		{"3月4日 9時", "2025-03-04 09:00"},
		{"3月4日 9時30分", "2025-03-04 09:30"},
		{"2025年3月4日 正午", "2025-03-04 12:00"},
	}
	r := ref(2025, time.March, 1)
	for _, tt := range tests {
		if got := dateparse.Parse(tt.text, r); got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParse_RelativeDays(t *testing.T) {
	r := ref(2025, time.December, 31)
	tests := []struct {
		text string
		want string
	}{
		{"今日中にやる", "2025-12-31 18:00"},
		{"明日18時までに", "2026-01-01 18:00"},
		{"明後日まで", "2026-01-02 18:00"},
		{"明日の夜", "2026-01-01 21:00"},
	}
	for _, tt := range tests {
		if got := dateparse.Parse(tt.text, r); got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParse_NoDate(t *testing.T) {
	if got := dateparse.Parse("18:00までに頼む", ref(2025, time.March, 1)); got != "" {
		t.Errorf("time without a date must not parse, got %q", got)
	}
	if got := dateparse.Parse("議事録を書く", ref(2025, time.March, 1)); got != "" {
		t.Errorf("plain text must not parse, got %q", got)
	}
}

func TestParse_ImpossibleDate(t *testing.T) {
	if got := dateparse.Parse("2025/2/31", ref(2025, time.January, 1)); got != "" {
		t.Errorf("impossible date must not parse, got %q", got)
	}
}

func TestParse_EndToEndScenario(t *testing.T) {
	// "add minutes-writing due tomorrow 18:00".
	r := ref(2025, time.June, 10)
	got := dateparse.Parse("議事録作成を明日18時までに追加", r)
	if got != "2025-06-11 18:00" {
		t.Errorf("got %q, want %q", got, "2025-06-11 18:00")
	}
}

func TestStripPhrases(t *testing.T) {
	got := dateparse.StripPhrases("議事録作成を明日18時までに")
	// Residual text keeps the title material and loses the date phrase.
	if want := "議事録作成を"; strings.Join(strings.Fields(got), "") != want {
		t.Errorf("StripPhrases = %q, want residue %q", got, want)
	}
}
