package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/harunoka/hisho/internal/hisho/command"
	"github.com/harunoka/hisho/internal/hisho/dateparse"
)

// commandSchemaTmpl validates the model's reply before it is trusted. The
// action enum is substituted from the registered action set.
const commandSchemaTmpl = `{
  "type": "object",
  "required": ["action"],
  "properties": {
    "action": {"type": "string", "enum": [%s]},
    "slots": {
      "type": "object",
      "properties": {
        "title": {"type": "string"},
        "new_title": {"type": "string"},
        "description": {"type": "string"},
        "due_at": {"type": "string"},
        "status": {"type": "string", "enum": ["", "open", "doing", "done"]},
        "project_title": {"type": "string"},
        "project_id": {"type": "string"},
        "query": {"type": "string"},
        "question": {"type": "string"},
        "next_action": {"type": "string"}
      }
    }
  }
}`

var commandSchema = compileCommandSchema()

func compileCommandSchema() *jsonschema.Schema {
	quoted := make([]string, len(command.Actions))
	for i, a := range command.Actions {
		quoted[i] = fmt.Sprintf("%q", string(a))
	}
	doc := fmt.Sprintf(commandSchemaTmpl, strings.Join(quoted, ", "))
	return jsonschema.MustCompileString("command.schema.json", doc)
}

// ExtractJSON returns the first balanced top-level JSON object in s. The
// scan is string-aware so braces inside string values do not end the object
// early. Models wrap JSON in code fences or prose often enough that a plain
// unmarshal of the whole reply is not workable.
func ExtractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Normalize turns a raw model reply into a command. Any failure, from a
// missing JSON object to a schema violation, yields the unknown command;
// callers never see an error from this path. Slots absent from the reply
// are already empty strings after decoding, so callers may assume every
// slot exists.
func Normalize(raw string) *command.Command {
	doc, ok := ExtractJSON(raw)
	if !ok {
		return command.Unknown()
	}

	var generic any
	if err := json.Unmarshal([]byte(doc), &generic); err != nil {
		return command.Unknown()
	}
	if err := commandSchema.Validate(generic); err != nil {
		return command.Unknown()
	}

	var cmd command.Command
	if err := json.Unmarshal([]byte(doc), &cmd); err != nil {
		return command.Unknown()
	}
	if !cmd.Action.Valid() {
		return command.Unknown()
	}
	return &cmd
}

// Interpreter drives the fallback: prompt, model call, normalization, and
// the trailing due-date re-parse that keeps date handling consistent with
// the fast path.
type Interpreter struct {
	provider Provider
	system   string
	log      *slog.Logger
}

// NewInterpreter wraps a Provider. A nil logger falls back to slog.Default.
func NewInterpreter(provider Provider, log *slog.Logger) *Interpreter {
	if log == nil {
		log = slog.Default()
	}
	return &Interpreter{provider: provider, system: SystemPrompt(), log: log}
}

// Interpret sends text to the model and returns the normalized command.
// It never returns an error; transport and parse failures become the
// unknown command and are logged at warn level.
func (in *Interpreter) Interpret(ctx context.Context, text string, now time.Time) *command.Command {
	raw, err := in.provider.Generate(ctx, in.system, text)
	if err != nil {
		in.log.WarnContext(ctx, "nlp fallback failed", "error", err)
		return command.Unknown()
	}
	cmd := Normalize(raw)
	if cmd.Action == command.ActionUnknown {
		return cmd
	}
	// The model echoes date phrases verbatim; the date parser over the
	// whole utterance is the single source of truth for due timestamps.
	if due := dateparse.Parse(text, now); due != "" {
		cmd.Slots.DueAt = due
	} else if cmd.Slots.DueAt != "" {
		if reparsed := dateparse.Parse(cmd.Slots.DueAt, now); reparsed != "" {
			cmd.Slots.DueAt = reparsed
		} else {
			cmd.Slots.DueAt = ""
		}
	}
	return cmd
}
