// Package parse implements the regex fast path: an ordered rule table that
// recognizes common intents without invoking the generative model.
//
// The table is evaluated top to bottom and the first matching rule wins.
// The order is load-bearing: project status operations are checked before
// generic task operations, deletes before creates, and relocation last, so
// the tie-breaks users rely on stay stable. Do not reorder casually.
package parse

import (
	"regexp"
	"strings"
	"time"

	"github.com/harunoka/hisho/internal/hisho/command"
	"github.com/harunoka/hisho/internal/hisho/dateparse"
	"github.com/harunoka/hisho/internal/hisho/jptext"
	"github.com/harunoka/hisho/internal/hisho/rules"
	"github.com/harunoka/hisho/internal/hisho/store"
)

// Parser matches normalized, trigger-stripped utterances against the rule
// table.
type Parser struct {
	cfg   *rules.Config
	table []rule
}

type rule struct {
	name  string
	match func(text string, now time.Time) *command.Command
}

// New builds a Parser over the given keyword rule set.
func New(cfg *rules.Config) *Parser {
	p := &Parser{cfg: cfg}
	p.table = []rule{
		{"help", p.matchHelp},
		{"list", p.matchList},
		{"project-status-op", p.matchProjectStatusOp},
		{"task-status-op", p.matchTaskStatusOp},
		{"delete", p.matchDelete},
		{"labeled-create", p.matchLabeledCreate},
		{"natural-create", p.matchNaturalCreate},
		{"update", p.matchUpdate},
		{"relocate", p.matchRelocate},
	}
	return p
}

// Parse returns the first rule match, or nil when no rule applies and the
// caller should fall through to the LLM. A due date found anywhere in the
// utterance overwrites whatever the matched rule extracted.
func (p *Parser) Parse(text string, now time.Time) *command.Command {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	for _, r := range p.table {
		cmd := r.match(text, now)
		if cmd == nil {
			continue
		}
		if due := dateparse.Parse(text, now); due != "" {
			cmd.Slots.DueAt = due
		}
		return cmd
	}
	return nil
}

// --- individual rules ------------------------------------------------------

var helpRe = regexp.MustCompile(`(?i)^(ヘルプ|help|使い方|つかいかた)[!?！？。]?$`)

func (p *Parser) matchHelp(text string, _ time.Time) *command.Command {
	if helpRe.MatchString(text) {
		return &command.Command{Action: command.ActionHelp}
	}
	return nil
}

func (p *Parser) matchList(text string, _ time.Time) *command.Command {
	if _, ok := containsAny(text, p.cfg.Actions.List); !ok {
		return nil
	}
	if _, ok := containsAny(text, p.cfg.Targets.Project); ok {
		return &command.Command{Action: command.ActionListProjects}
	}
	// A bare "一覧" with no target word means the task list.
	return &command.Command{Action: command.ActionListTasks}
}

// matchProjectStatusOp handles project complete/reopen. Projects have no
// dedicated status actions; both map to update_project with a status slot.
func (p *Parser) matchProjectStatusOp(text string, _ time.Time) *command.Command {
	if _, ok := containsAny(text, p.cfg.Targets.Project); !ok {
		return nil
	}
	status, matched := p.statusChange(text)
	if status == "" {
		return nil
	}
	cmd := &command.Command{Action: command.ActionUpdateProject}
	cmd.Slots.Status = string(status)
	cmd.Slots.Query = p.extractQuery(text, matched, p.cfg.Targets.Project)
	return cmd
}

func (p *Parser) matchTaskStatusOp(text string, _ time.Time) *command.Command {
	status, matched := p.statusChange(text)
	if status == "" {
		return nil
	}
	cmd := &command.Command{Action: command.ActionCompleteTask}
	if status == store.StatusOpen {
		cmd.Action = command.ActionReopenTask
	}
	if id := findID(text); id != "" {
		cmd.Slots.Query = id
		return cmd
	}
	cmd.Slots.Query = p.extractQuery(text, matched, p.cfg.Targets.Task)
	return cmd
}

func (p *Parser) matchDelete(text string, _ time.Time) *command.Command {
	matched, ok := containsAny(text, p.cfg.Actions.Delete)
	if !ok {
		return nil
	}
	action := command.ActionDeleteTask
	strip := p.cfg.Targets.Task
	if _, isProject := containsAny(text, p.cfg.Targets.Project); isProject {
		action = command.ActionDeleteProject
		strip = p.cfg.Targets.Project
	}
	cmd := &command.Command{Action: action}
	if qs := Quoted(text); len(qs) > 0 {
		// Multiple quoted titles become one comma-separated multi-query.
		cmd.Slots.Query = strings.Join(qs, ",")
		return cmd
	}
	if id := findID(text); id != "" {
		cmd.Slots.Query = id
		return cmd
	}
	cmd.Slots.Query = p.extractQuery(text, matched, strip)
	return cmd
}

func (p *Parser) matchLabeledCreate(text string, now time.Time) *command.Command {
	if !strings.Contains(text, "タイトル:") && !strings.Contains(strings.ToLower(text), "title:") &&
		!strings.Contains(text, "題名:") {
		return nil
	}
	action := command.ActionCreateTask
	head := text[:strings.Index(text, ":")]
	if _, ok := containsAny(head, p.cfg.Targets.Project); ok {
		action = command.ActionCreateProject
	}

	cmd := &command.Command{Action: action}
	for _, seg := range splitFields(text) {
		label, value, found := strings.Cut(seg, ":")
		if !found {
			continue
		}
		label = strings.TrimSpace(strings.ToLower(label))
		value = strings.TrimSpace(value)
		switch {
		case hasSuffixAny(label, "タイトル", "題名", "title"):
			cmd.Slots.Title = value
		case hasSuffixAny(label, "説明", "詳細", "メモ", "desc", "description"):
			cmd.Slots.Description = value
		case hasSuffixAny(label, "期限", "締切", "〆切", "due"):
			cmd.Slots.DueAt = parseDueField(value, now)
		case hasSuffixAny(label, "プロジェクト", "project"):
			cmd.Slots.ProjectTitle = value
		case hasSuffixAny(label, "ステータス", "状態", "status"):
			cmd.Slots.Status = string(p.ParseStatus(value))
		}
	}
	if cmd.Slots.Title == "" {
		return nil
	}
	return cmd
}

func (p *Parser) matchNaturalCreate(text string, now time.Time) *command.Command {
	if relocateRe.MatchString(text) {
		return nil // handled by the relocate rule
	}
	loc := p.createTailRe().FindStringIndex(text)
	if loc == nil {
		return nil
	}
	action := command.ActionCreateTask
	strip := p.cfg.Targets.Task
	if _, ok := containsAny(text, p.cfg.Targets.Project); ok {
		action = command.ActionCreateProject
		strip = p.cfg.Targets.Project
	}

	cmd := &command.Command{Action: action}
	if qs := Quoted(text); len(qs) > 0 {
		cmd.Slots.Title = qs[0]
		return cmd
	}
	title := text[:loc[0]]
	title = dateparse.StripPhrases(title)
	title = removeAll(title, strip)
	title = trimParticles(jptext.CollapseSpace(title))
	cmd.Slots.Title = title
	return cmd
}

var descFieldRe = regexp.MustCompile(`(?:説明|詳細|メモ)[をは]?[:：]?\s*(.+?)(?:に変更|に修正|に更新|$)`)

func (p *Parser) matchUpdate(text string, _ time.Time) *command.Command {
	matched, ok := containsAny(text, p.cfg.Actions.Update)
	if !ok {
		return nil
	}
	action := command.ActionUpdateTask
	strip := p.cfg.Targets.Task
	if _, isProject := containsAny(text, p.cfg.Targets.Project); isProject {
		action = command.ActionUpdateProject
		strip = p.cfg.Targets.Project
	}
	cmd := &command.Command{Action: action}

	qs := Quoted(text)
	switch len(qs) {
	case 0:
		cmd.Slots.Query = p.extractQuery(text, matched, strip)
	case 1:
		cmd.Slots.Query = qs[0]
	default:
		// 「old」を「new」に変更 — first quote is the target, second the
		// replacement title.
		cmd.Slots.Query = qs[0]
		cmd.Slots.NewTitle = qs[1]
	}

	if st := p.ParseStatus(text); st != "" {
		cmd.Slots.Status = string(st)
	}
	if m := descFieldRe.FindStringSubmatch(text); m != nil {
		cmd.Slots.Description = strings.TrimSpace(m[1])
	}
	return cmd
}

var relocateRe = regexp.MustCompile(`(.+?)を(.+?)(?:プロジェクト|案件)?に(移動|移して|入れて|紐付けて?)`)

func (p *Parser) matchRelocate(text string, _ time.Time) *command.Command {
	m := relocateRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	cmd := &command.Command{Action: command.ActionUpdateTask}
	cmd.Slots.Query = unquote(strings.TrimSpace(m[1]))
	cmd.Slots.ProjectTitle = unquote(strings.TrimSpace(m[2]))
	if cmd.Slots.Query == "" || cmd.Slots.ProjectTitle == "" {
		return nil
	}
	return cmd
}

// --- extraction helpers ----------------------------------------------------

// statusChange maps complete/reopen keywords to the target status. Delete
// is intentionally excluded here; it has its own rule later in the table.
func (p *Parser) statusChange(text string) (store.Status, string) {
	if w, ok := containsAny(text, p.cfg.Actions.Reopen); ok {
		return store.StatusOpen, w
	}
	if w, ok := containsAny(text, p.cfg.Actions.Complete); ok {
		// 未完了 and friends mean "not done" and must not read as complete.
		if _, isOpen := containsAny(text, p.cfg.Status.Open); !isOpen {
			return store.StatusDone, w
		}
	}
	return "", ""
}

// extractQuery isolates the entity reference: a quoted substring when
// present, otherwise the utterance minus the matched keyword, the target
// words, and trailing particles.
func (p *Parser) extractQuery(text, matchedKeyword string, targetWords []string) string {
	if qs := Quoted(text); len(qs) > 0 {
		return qs[0]
	}
	text = strings.Replace(text, matchedKeyword, " ", 1)
	text = removeAll(text, targetWords)
	text = removeAll(text, []string{"して", "ください", "下さい", "お願い"})
	return trimParticles(jptext.CollapseSpace(text))
}

// createTailRe matches a create keyword at the end of the utterance.
// Japanese verbs close the sentence, so an ending create word is the
// reliable signal; the same word mid-title ("議事録作成") stays untouched.
func (p *Parser) createTailRe() *regexp.Regexp {
	alts := make([]string, len(p.cfg.Actions.Create))
	for i, w := range p.cfg.Actions.Create {
		alts[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(` + strings.Join(alts, "|") + `)(して)?(ください|下さい)?[!！。]?$`)
}

// ParseStatus maps status synonyms to a store status. Open synonyms are
// checked first so 未完了 ("not done") never reads as done.
func (p *Parser) ParseStatus(text string) store.Status {
	if _, ok := containsAny(text, p.cfg.Status.Open); ok {
		return store.StatusOpen
	}
	if _, ok := containsAny(text, p.cfg.Status.Doing); ok {
		return store.StatusDoing
	}
	if _, ok := containsAny(text, p.cfg.Status.Done); ok {
		return store.StatusDone
	}
	return ""
}

var quoteRe = regexp.MustCompile(`「([^」]+)」|『([^』]+)』|"([^"]+)"|'([^']+)'`)

// Quoted returns every quoted substring in text, in order. Quoted text
// always beats keyword-stripped remainders as the extracted title/query.
func Quoted(text string) []string {
	var out []string
	for _, m := range quoteRe.FindAllStringSubmatch(text, -1) {
		for _, g := range m[1:] {
			if g != "" {
				out = append(out, g)
			}
		}
	}
	return out
}

var idRe = regexp.MustCompile(`[tp]-[0-9a-z]+-[0-9a-f]+`)

func findID(text string) string {
	return idRe.FindString(text)
}

var fieldSplitRe = regexp.MustCompile(`[/\n]`)

func splitFields(text string) []string {
	return fieldSplitRe.Split(text, -1)
}

func parseDueField(value string, now time.Time) string {
	if _, err := time.ParseInLocation(dateparse.Layout, value, dateparse.Location); err == nil {
		return value
	}
	return dateparse.Parse(value, now)
}

var trailingParticleRe = regexp.MustCompile(`(を|に|へ|は|で|の)$`)

func trimParticles(s string) string {
	for {
		trimmed := trailingParticleRe.ReplaceAllString(strings.TrimSpace(s), "")
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

func removeAll(text string, words []string) string {
	for _, w := range words {
		text = strings.ReplaceAll(text, w, " ")
	}
	return text
}

func hasSuffixAny(label string, words ...string) bool {
	for _, w := range words {
		if strings.HasSuffix(label, w) {
			return true
		}
	}
	return false
}

func containsAny(text string, words []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, w := range words {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return w, true
		}
	}
	return "", false
}

func unquote(s string) string {
	if qs := Quoted(s); len(qs) == 1 {
		return qs[0]
	}
	return s
}
