// Package dateparse extracts an absolute due date-time from free Japanese
// text.
//
// The result is always rendered in the bot's fixed local time zone (UTC+9)
// as "YYYY-MM-DD HH:MM". Date forms are tried in priority order: explicit
// year, month/day, then relative day words. A time of day is parsed
// separately and defaults to 18:00 when the text names a date but no time.
package dateparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Location is the fixed local time zone every parsed timestamp is rendered
// in. A fixed zone avoids a tzdata dependency at runtime.
var Location = time.FixedZone("JST", 9*60*60)

// Layout is the timestamp format stored in due-at fields.
const Layout = "2006-01-02 15:04"

// DefaultHour is the time of day assumed when the text names a date but no
// time.
const DefaultHour = 18

var (
	yearDateRe  = regexp.MustCompile(`(\d{4})[-/年](\d{1,2})[-/月](\d{1,2})日?`)
	monthDayRe  = regexp.MustCompile(`(\d{1,2})[/月](\d{1,2})日?`)
	clockRe     = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	kanjiTimeRe = regexp.MustCompile(`(\d{1,2})時(?:(\d{1,2})分)?`)
)

// relativeDays maps relative day words to their offset from the reference
// date. Longer words come first so 明後日 is tried before 明日.
var relativeDays = []struct {
	word string
	days int
}{
	{"明後日", 2},
	{"あさって", 2},
	{"明日", 1},
	{"あした", 1},
	{"今日", 0},
	{"本日", 0},
	{"tomorrow", 1},
	{"today", 0},
}

// keywordTimes are fixed time-of-day words checked after the numeric forms.
var keywordTimes = []struct {
	word         string
	hour, minute int
}{
	{"正午", 12, 0},
	{"今夜", 21, 0},
	{"夜", 21, 0},
	{"noon", 12, 0},
	{"tonight", 21, 0},
}

// Parse extracts a due date-time from text relative to ref. It returns the
// formatted timestamp, or "" when no date could be found.
func Parse(text string, ref time.Time) string {
	local := ref.In(Location)

	year, month, day, matched, hadYear := findDate(text, local)
	if matched == "" {
		return ""
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, Location)
	if date.Month() != time.Month(month) || date.Day() != day {
		return "" // impossible date like 2/31
	}

	// Year inference: a yearless date that already passed this year means
	// next year ("1/10" typed in December is January of the coming year).
	if !hadYear {
		refMidnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Location)
		if date.Before(refMidnight) {
			date = date.AddDate(1, 0, 0)
		}
	}

	// The date substring is excluded from time parsing so digits inside it
	// cannot be misread as a clock time.
	hour, minute := findTime(strings.Replace(text, matched, " ", 1))
	return fmt.Sprintf("%s %02d:%02d", date.Format("2006-01-02"), hour, minute)
}

// findDate locates the highest-priority date expression in text. The matched
// substring is returned so the caller can exclude it from time parsing.
func findDate(text string, local time.Time) (year, month, day int, matched string, hadYear bool) {
	if m := yearDateRe.FindStringSubmatch(text); m != nil {
		return atoi(m[1]), atoi(m[2]), atoi(m[3]), m[0], true
	}
	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		mo, d := atoi(m[1]), atoi(m[2])
		if mo >= 1 && mo <= 12 && d >= 1 && d <= 31 {
			return local.Year(), mo, d, m[0], false
		}
	}
	for _, rel := range relativeDays {
		if strings.Contains(text, rel.word) {
			target := local.AddDate(0, 0, rel.days)
			return target.Year(), int(target.Month()), target.Day(), rel.word, true
		}
	}
	return 0, 0, 0, "", false
}

// findTime locates a time-of-day expression in text, defaulting to
// DefaultHour:00.
func findTime(text string) (hour, minute int) {
	if m := clockRe.FindStringSubmatch(text); m != nil {
		h, mi := atoi(m[1]), atoi(m[2])
		if h <= 23 && mi <= 59 {
			return h, mi
		}
	}
	if m := kanjiTimeRe.FindStringSubmatch(text); m != nil {
		h, mi := atoi(m[1]), 0
		if m[2] != "" {
			mi = atoi(m[2])
		}
		if h <= 23 && mi <= 59 {
			return h, mi
		}
	}
	for _, kw := range keywordTimes {
		if strings.Contains(text, kw.word) {
			return kw.hour, kw.minute
		}
	}
	return DefaultHour, 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

var untilRe = regexp.MustCompile(`までに?`)

// StripPhrases removes every date/time expression this parser understands,
// plus the trailing までに/まで connective, so title extractors can work on
// the residual text. The caller is expected to collapse whitespace.
func StripPhrases(text string) string {
	for _, re := range []*regexp.Regexp{yearDateRe, monthDayRe, clockRe, kanjiTimeRe} {
		text = re.ReplaceAllString(text, " ")
	}
	for _, rel := range relativeDays {
		text = strings.ReplaceAll(text, rel.word, " ")
	}
	for _, kw := range keywordTimes {
		text = strings.ReplaceAll(text, kw.word, " ")
	}
	return untilRe.ReplaceAllString(text, " ")
}
