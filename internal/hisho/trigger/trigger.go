// Package trigger decides whether an inbound message is addressed to the bot
// and strips the trigger phrase before parsing.
package trigger

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/harunoka/hisho/internal/hisho/jptext"
)

// DefaultWakeWords are the fixed head-only tokens that address the bot
// without an explicit mention.
var DefaultWakeWords = []string{"ボット", "秘書", "ひしょ", "bot"}

// Detector matches the two trigger forms:
//
//   - An explicit mention ("@" or "＠", optional whitespace, then the bot
//     name, case-insensitive) anywhere in the message.
//   - A wake word at the very head of the whitespace-normalized message,
//     followed by whitespace, punctuation, or end of string. Mid-sentence
//     occurrences of a wake word are ordinary text and do not trigger.
type Detector struct {
	wakeWords []string
	mention   *regexp.Regexp
}

// New builds a Detector for the given bot name. When wakeWords is empty,
// DefaultWakeWords is used.
func New(botName string, wakeWords []string) *Detector {
	if len(wakeWords) == 0 {
		wakeWords = DefaultWakeWords
	}
	return &Detector{
		wakeWords: wakeWords,
		mention:   regexp.MustCompile(`(?i)[@＠]\s*` + regexp.QuoteMeta(botName)),
	}
}

// Detect reports whether text is addressed to the bot. text is expected to
// be jptext-normalized.
func (d *Detector) Detect(text string) bool {
	if d.mention.MatchString(text) {
		return true
	}
	return d.headWakeWord(text) != ""
}

// Strip removes every mention occurrence and a single leading wake word,
// then collapses whitespace. Leading separator punctuation left behind by
// the wake word ("ボット、…") is dropped as well.
func (d *Detector) Strip(text string) string {
	text = d.mention.ReplaceAllString(text, " ")
	text = jptext.CollapseSpace(text)
	if w := d.headWakeWord(text); w != "" {
		text = strings.TrimLeftFunc(text[len(w):], func(r rune) bool {
			return unicode.IsSpace(r) || strings.ContainsRune("、。,.:;!?", r)
		})
	}
	return jptext.CollapseSpace(text)
}

// headWakeWord returns the wake word found at the head of text, or "".
func (d *Detector) headWakeWord(text string) string {
	for _, w := range d.wakeWords {
		if !strings.HasPrefix(text, w) {
			continue
		}
		rest := text[len(w):]
		if rest == "" {
			return w
		}
		r := []rune(rest)[0]
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			return w
		}
	}
	return ""
}
