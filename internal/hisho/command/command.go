// Package command defines the structured command exchanged between the
// interpretation pipeline stages and the executor.
//
// A Command is transient: it is produced by the template/regex fast path,
// the LLM fallback, or the keyword inference layer, and consumed by the
// engine. It is never persisted except as a learned template row.
package command

// Action is the closed set of things the bot can be asked to do.
type Action string

const (
	ActionCreateTask    Action = "create_task"
	ActionUpdateTask    Action = "update_task"
	ActionDeleteTask    Action = "delete_task"
	ActionCompleteTask  Action = "complete_task"
	ActionReopenTask    Action = "reopen_task"
	ActionListTasks     Action = "list_tasks"
	ActionCreateProject Action = "create_project"
	ActionUpdateProject Action = "update_project"
	ActionDeleteProject Action = "delete_project"
	ActionListProjects  Action = "list_projects"
	ActionHelp          Action = "help"
	ActionAskUser       Action = "ask_user"
	ActionUnknown       Action = "unknown"
)

// Actions lists every valid action tag. The LLM prompt and the response
// schema are both generated from this slice so they cannot drift apart.
var Actions = []Action{
	ActionCreateTask, ActionUpdateTask, ActionDeleteTask,
	ActionCompleteTask, ActionReopenTask, ActionListTasks,
	ActionCreateProject, ActionUpdateProject, ActionDeleteProject,
	ActionListProjects, ActionHelp, ActionAskUser, ActionUnknown,
}

// Valid reports whether a is one of the registered action tags.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// IsMutation reports whether the action writes to the store.
func (a Action) IsMutation() bool {
	switch a {
	case ActionCreateTask, ActionUpdateTask, ActionDeleteTask,
		ActionCompleteTask, ActionReopenTask,
		ActionCreateProject, ActionUpdateProject, ActionDeleteProject:
		return true
	}
	return false
}

// NeedsTarget reports whether the action requires an identified entity
// (a query slot) to proceed.
func (a Action) NeedsTarget() bool {
	switch a {
	case ActionUpdateTask, ActionDeleteTask, ActionCompleteTask,
		ActionReopenTask, ActionUpdateProject, ActionDeleteProject:
		return true
	}
	return false
}

// Slots is the flat bag of string slot values attached to a command.
//
// At the LLM serialization boundary every slot is always present, defaulting
// to the empty string; internal code reads only the slots relevant to the
// action.
type Slots struct {
	Title        string `json:"title"`
	NewTitle     string `json:"new_title"`
	Description  string `json:"description"`
	DueAt        string `json:"due_at"`
	Status       string `json:"status"`
	ProjectTitle string `json:"project_title"`
	ProjectID    string `json:"project_id"`
	Query        string `json:"query"`
	Question     string `json:"question"`
	NextAction   string `json:"next_action"`
}

// Command is the normalized output of the interpretation pipeline.
type Command struct {
	Action Action `json:"action"`
	Slots  Slots  `json:"slots"`
}

// Unknown is the canonical "could not interpret" command.
func Unknown() *Command {
	return &Command{Action: ActionUnknown}
}

// HasPatch reports whether the command carries at least one updatable field
// (title, description, status, or due date). Used by the update executor to
// reject no-op update requests.
func (c *Command) HasPatch() bool {
	return c.Slots.NewTitle != "" || c.Slots.Description != "" ||
		c.Slots.Status != "" || c.Slots.DueAt != "" ||
		c.Slots.ProjectID != "" || c.Slots.ProjectTitle != ""
}
