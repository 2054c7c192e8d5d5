package nlp

import (
	"strings"
	"unicode/utf8"

	"github.com/harunoka/hisho/internal/hisho/command"
	"github.com/harunoka/hisho/internal/hisho/jptext"
	"github.com/harunoka/hisho/internal/hisho/rules"
)

// Guess is the output of keyword inference. It is never executed directly;
// the engine turns it into a clarification prompt or an "I did not
// understand" message enumerating what was recognized.
type Guess struct {
	// Action is the coarse intent, or unknown when no action keyword hit.
	Action command.Action

	// Query is the residual text after stripping recognized keywords, or
	// empty when the residue was too short to be a useful entity reference.
	Query string

	// MissingTarget is set when the action needs an identified entity but
	// no usable query remained.
	MissingTarget bool
}

// Inference classifies an utterance by keyword presence alone, as the last
// resort after both the fast path and the model fallback reported unknown.
type Inference struct {
	cfg *rules.Config
}

// NewInference builds an Inference over the given keyword rule set.
func NewInference(cfg *rules.Config) *Inference {
	return &Inference{cfg: cfg}
}

// Infer classifies text into a coarse action and target type. Action and
// target are detected independently; the query is whatever survives keyword
// stripping, discarded when shorter than the configured minimum.
func (inf *Inference) Infer(text string) Guess {
	project := containsWord(text, inf.cfg.Targets.Project)

	var g Guess
	switch {
	case containsWord(text, inf.cfg.Actions.Delete):
		g.Action = pick(project, command.ActionDeleteProject, command.ActionDeleteTask)
	case containsWord(text, inf.cfg.Actions.Reopen):
		g.Action = pick(project, command.ActionUpdateProject, command.ActionReopenTask)
	case containsWord(text, inf.cfg.Actions.Complete) && !containsWord(text, inf.cfg.Status.Open):
		g.Action = pick(project, command.ActionUpdateProject, command.ActionCompleteTask)
	case containsWord(text, inf.cfg.Actions.List):
		g.Action = pick(project, command.ActionListProjects, command.ActionListTasks)
	case containsWord(text, inf.cfg.Actions.Create):
		g.Action = pick(project, command.ActionCreateProject, command.ActionCreateTask)
	case containsWord(text, inf.cfg.Actions.Update):
		g.Action = pick(project, command.ActionUpdateProject, command.ActionUpdateTask)
	default:
		g.Action = command.ActionUnknown
	}

	g.Query = inf.residual(text)
	if g.Action.NeedsTarget() && g.Query == "" {
		g.MissingTarget = true
	}
	return g
}

// residual strips every recognized keyword and returns what is left, or
// empty when the remainder is shorter than min_query_len runes.
func (inf *Inference) residual(text string) string {
	for _, words := range [][]string{
		inf.cfg.WakeWords,
		inf.cfg.Actions.Create, inf.cfg.Actions.Update, inf.cfg.Actions.Delete,
		inf.cfg.Actions.Complete, inf.cfg.Actions.Reopen, inf.cfg.Actions.List,
		inf.cfg.Targets.Task, inf.cfg.Targets.Project,
		inf.cfg.Status.Done, inf.cfg.Status.Doing, inf.cfg.Status.Open,
		{"して", "ください", "下さい", "お願い"},
	} {
		for _, w := range words {
			text = strings.ReplaceAll(text, w, " ")
		}
	}
	text = jptext.CollapseSpace(text)
	if utf8.RuneCountInString(text) < inf.cfg.MinQueryLen {
		return ""
	}
	return text
}

func pick(project bool, ifProject, ifTask command.Action) command.Action {
	if project {
		return ifProject
	}
	return ifTask
}

func containsWord(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
