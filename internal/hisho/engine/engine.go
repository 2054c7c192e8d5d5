// Package engine orchestrates the interpretation pipeline and executes the
// resulting commands against the record store.
//
// Control flow per inbound message: normalize → trigger detection (early
// exit when untriggered and nothing is pending) → pending-action slot fill
// → template cache → regex rules → model fallback → keyword inference →
// execution. Every stage either produces a command or hands over to the
// next; inference is the floor and always produces some reply.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunoka/hisho/internal/hisho/command"
	"github.com/harunoka/hisho/internal/hisho/dateparse"
	"github.com/harunoka/hisho/internal/hisho/jptext"
	"github.com/harunoka/hisho/internal/hisho/nlp"
	"github.com/harunoka/hisho/internal/hisho/parse"
	"github.com/harunoka/hisho/internal/hisho/pending"
	"github.com/harunoka/hisho/internal/hisho/rules"
	"github.com/harunoka/hisho/internal/hisho/store"
	"github.com/harunoka/hisho/internal/hisho/templates"
	"github.com/harunoka/hisho/internal/hisho/trigger"
)

// Message is one inbound chat message, already mapped from the platform
// event by the transport.
type Message struct {
	SpaceID string
	UserID  string
	Text    string

	// Addressed marks messages that are directed at the bot by the
	// transport itself (a slash command), so no wake word is needed.
	Addressed bool
}

// Options wires an Engine. Store, Rules, and BotName are required; the
// model fallback is disabled when Interpreter is nil.
type Options struct {
	BotName     string
	Rules       *rules.Config
	Store       store.Store
	Interpreter *nlp.Interpreter
	Limiter     *nlp.RateLimiter
	Logger      *slog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Engine is the per-process pipeline state: the pending-action tracker and
// the template cache live here and are lost on restart. That limits the
// design to single-instance deployments; running two replicas splits the
// clarification state between them.
type Engine struct {
	cfg     *rules.Config
	trigger *trigger.Detector
	parser  *parse.Parser
	cache   *templates.Cache
	llm     *nlp.Interpreter
	infer   *nlp.Inference
	limiter *nlp.RateLimiter
	pending *pending.Tracker
	store   store.Store
	log     *slog.Logger
	now     func() time.Time
}

// New builds an Engine from opts.
func New(opts Options) *Engine {
	cfg := opts.Rules
	if cfg == nil {
		cfg = rules.Default()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = nlp.NewRateLimiter(0, 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:     cfg,
		trigger: trigger.New(opts.BotName, cfg.WakeWords),
		parser:  parse.New(cfg),
		cache:   templates.NewCache(opts.Store, log),
		llm:     opts.Interpreter,
		infer:   nlp.NewInference(cfg),
		limiter: limiter,
		pending: pending.NewTracker(),
		store:   opts.Store,
		log:     log,
		now:     now,
	}
}

// Process runs one message through the pipeline and returns the reply
// texts, or nil when the message is not addressed to the bot. A panic in
// any stage is recovered, logged, and turned into a generic error reply so
// one bad event cannot take down the batch.
func (e *Engine) Process(ctx context.Context, msg Message) (replies []string) {
	defer func() {
		if r := recover(); r != nil {
			e.log.ErrorContext(ctx, "event handler panicked",
				"panic", r, "space", msg.SpaceID)
			replies = []string{msgInternalError}
		}
	}()

	text := jptext.Normalize(msg.Text)
	triggered := msg.Addressed || e.trigger.Detect(text)
	if triggered {
		text = e.trigger.Strip(text)
	}

	// A pending clarification consumes the next message from the same
	// conversation whether or not it carries the trigger.
	if pa, ok := e.pending.Get(msg.SpaceID, msg.UserID); ok {
		if e.isCancel(text) {
			e.pending.Clear(msg.SpaceID, msg.UserID)
			return []string{msgCancelled}
		}
		e.pending.Clear(msg.SpaceID, msg.UserID)
		return e.execute(ctx, msg, fillSlot(pa, text, e.now()))
	}

	if !triggered {
		return nil
	}
	if text == "" {
		return []string{msgEmptyPrompt}
	}

	if cmd := e.cache.Lookup(ctx, msg.SpaceID, text); cmd != nil {
		// Learned due dates go stale ("明日" learned last week); the date
		// parser over the live text wins.
		if due := dateparse.Parse(text, e.now()); due != "" {
			cmd.Slots.DueAt = due
		}
		return e.execute(ctx, msg, cmd)
	}

	if cmd := e.parser.Parse(text, e.now()); cmd != nil {
		e.cache.Learn(ctx, msg.SpaceID, text, cmd)
		return e.execute(ctx, msg, cmd)
	}

	if e.llm != nil && e.limiter.Allow(msg.UserID) {
		cmd := e.llm.Interpret(ctx, text, e.now())
		if cmd.Action != command.ActionUnknown {
			if cmd.Action != command.ActionAskUser {
				e.cache.Learn(ctx, msg.SpaceID, text, cmd)
			}
			return e.execute(ctx, msg, cmd)
		}
	}

	return e.inferReply(msg, text)
}

// inferReply is the failure floor: keyword inference drives a clarification
// prompt or a best-guess report, never an execution.
func (e *Engine) inferReply(msg Message, text string) []string {
	g := e.infer.Infer(text)
	if g.Action == command.ActionUnknown {
		return []string{msgNotUnderstood}
	}
	if g.MissingTarget {
		e.pending.Set(msg.SpaceID, msg.UserID, pending.Action{Next: g.Action})
		return []string{clarifyQuestion(g.Action)}
	}
	return []string{fmt.Sprintf(msgGuessFmt, actionLabel(g.Action), g.Query)}
}

func (e *Engine) isCancel(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, w := range e.cfg.CancelWords {
		if lower == strings.ToLower(w) {
			return true
		}
	}
	return false
}

// fillSlot turns a pending action plus the follow-up text into a complete
// command: the text is the title for creates and the entity query for
// everything else. A date phrase in the follow-up still becomes the due
// date rather than part of the title.
func fillSlot(pa pending.Action, text string, now time.Time) *command.Command {
	cmd := &command.Command{Action: pa.Next, Slots: pa.Slots}
	switch pa.Next {
	case command.ActionCreateTask, command.ActionCreateProject:
		if cmd.Slots.Title == "" {
			title := text
			if due := dateparse.Parse(text, now); due != "" {
				cmd.Slots.DueAt = due
				title = jptext.CollapseSpace(dateparse.StripPhrases(text))
			}
			cmd.Slots.Title = title
		}
	default:
		cmd.Slots.Query = text
	}
	return cmd
}
