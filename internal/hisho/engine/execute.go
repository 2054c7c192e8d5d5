package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/harunoka/hisho/internal/hisho/command"
	"github.com/harunoka/hisho/internal/hisho/match"
	"github.com/harunoka/hisho/internal/hisho/pending"
	"github.com/harunoka/hisho/internal/hisho/store"
)

// execute maps a resolved command to store operations and reply texts.
// Domain conditions ("not found", "ambiguous") are not errors; they become
// clarification replies and, where useful, arm a pending action.
func (e *Engine) execute(ctx context.Context, msg Message, cmd *command.Command) []string {
	switch cmd.Action {
	case command.ActionCreateTask:
		return e.createTask(ctx, msg, cmd)
	case command.ActionCreateProject:
		return e.createProject(ctx, msg, cmd)
	case command.ActionListTasks:
		return e.listTasks(ctx, msg)
	case command.ActionListProjects:
		return e.listProjects(ctx, msg)
	case command.ActionCompleteTask:
		return e.setTaskStatus(ctx, msg, cmd, store.StatusDone)
	case command.ActionReopenTask:
		return e.setTaskStatus(ctx, msg, cmd, store.StatusOpen)
	case command.ActionUpdateTask:
		return e.updateTask(ctx, msg, cmd)
	case command.ActionUpdateProject:
		return e.updateProject(ctx, msg, cmd)
	case command.ActionDeleteTask:
		return e.deleteTasks(ctx, msg, cmd)
	case command.ActionDeleteProject:
		return e.deleteProjects(ctx, msg, cmd)
	case command.ActionHelp:
		return []string{helpText}
	case command.ActionAskUser:
		return e.askUser(msg, cmd)
	default:
		return []string{msgNotUnderstood}
	}
}

func (e *Engine) createTask(ctx context.Context, msg Message, cmd *command.Command) []string {
	title := strings.TrimSpace(cmd.Slots.Title)
	if title == "" {
		e.pending.Set(msg.SpaceID, msg.UserID, pending.Action{
			Next:  command.ActionCreateTask,
			Slots: cmd.Slots,
		})
		return []string{msgAskTaskTitle}
	}

	var notes []string
	projectID := cmd.Slots.ProjectID
	if projectID == "" && cmd.Slots.ProjectTitle != "" {
		id, note := e.resolveProjectLink(ctx, msg.SpaceID, cmd.Slots.ProjectTitle)
		projectID = id
		if note != "" {
			notes = append(notes, note)
		}
	}

	status := store.StatusOpen
	if s := store.Status(cmd.Slots.Status); s == store.StatusDoing || s == store.StatusDone {
		status = s
	}

	now := store.Now()
	task := store.Task{
		ID:          store.NewTaskID(),
		SpaceID:     msg.SpaceID,
		ProjectID:   projectID,
		Title:       title,
		Description: cmd.Slots.Description,
		Status:      status,
		DueAt:       cmd.Slots.DueAt,
		CreatedAt:   now,
		CreatedBy:   msg.UserID,
		UpdatedAt:   now,
	}
	if err := e.store.AppendTask(ctx, task); err != nil {
		e.log.ErrorContext(ctx, "append task failed", "error", err, "space", msg.SpaceID)
		return []string{msgStoreError}
	}

	reply := fmt.Sprintf("タスク「%s」を追加しました。", title)
	if task.DueAt != "" {
		reply += fmt.Sprintf(" 期限: %s", task.DueAt)
	}
	return append([]string{reply}, notes...)
}

func (e *Engine) createProject(ctx context.Context, msg Message, cmd *command.Command) []string {
	title := strings.TrimSpace(cmd.Slots.Title)
	if title == "" {
		e.pending.Set(msg.SpaceID, msg.UserID, pending.Action{
			Next:  command.ActionCreateProject,
			Slots: cmd.Slots,
		})
		return []string{msgAskProjectTitle}
	}

	now := store.Now()
	project := store.Project{
		ID:          store.NewProjectID(),
		SpaceID:     msg.SpaceID,
		Title:       title,
		Description: cmd.Slots.Description,
		Status:      store.StatusOpen,
		DueAt:       cmd.Slots.DueAt,
		CreatedAt:   now,
		CreatedBy:   msg.UserID,
		UpdatedAt:   now,
	}
	if err := e.store.AppendProject(ctx, project); err != nil {
		e.log.ErrorContext(ctx, "append project failed", "error", err, "space", msg.SpaceID)
		return []string{msgStoreError}
	}
	return []string{fmt.Sprintf("プロジェクト「%s」を追加しました。", title)}
}

func (e *Engine) listTasks(ctx context.Context, msg Message) []string {
	tasks, err := e.store.ListTasks(ctx, msg.SpaceID)
	if err != nil {
		e.log.ErrorContext(ctx, "list tasks failed", "error", err, "space", msg.SpaceID)
		return []string{msgStoreError}
	}
	if len(tasks) == 0 {
		return []string{msgNoTasks}
	}
	// Project titles are display-only; a read failure here must not sink
	// the listing.
	projects, err := e.store.ListProjects(ctx, msg.SpaceID)
	if err != nil {
		projects = nil
	}
	return []string{formatTaskList(tasks, projects)}
}

func (e *Engine) listProjects(ctx context.Context, msg Message) []string {
	projects, err := e.store.ListProjects(ctx, msg.SpaceID)
	if err != nil {
		e.log.ErrorContext(ctx, "list projects failed", "error", err, "space", msg.SpaceID)
		return []string{msgStoreError}
	}
	if len(projects) == 0 {
		return []string{msgNoProjects}
	}
	return []string{formatProjectList(projects)}
}

func (e *Engine) setTaskStatus(ctx context.Context, msg Message, cmd *command.Command, target store.Status) []string {
	action := command.ActionCompleteTask
	if target == store.StatusOpen {
		action = command.ActionReopenTask
	}
	task, reply := e.resolveOneTask(ctx, msg, action, cmd.Slots)
	if reply != "" {
		return []string{reply}
	}

	now := store.Now()
	patch := store.TaskPatch{Status: &target}
	doneAt := ""
	if target == store.StatusDone {
		doneAt = now
	}
	patch.DoneAt = &doneAt
	if err := e.store.PatchTask(ctx, msg.SpaceID, task.ID, patch); err != nil {
		e.log.ErrorContext(ctx, "patch task failed", "error", err, "task", task.ID)
		return []string{msgStoreError}
	}
	if target == store.StatusDone {
		return []string{fmt.Sprintf("「%s」を完了にしました。", task.Title)}
	}
	return []string{fmt.Sprintf("「%s」を未着手に戻しました。", task.Title)}
}

func (e *Engine) updateTask(ctx context.Context, msg Message, cmd *command.Command) []string {
	if !cmd.HasPatch() {
		return []string{msgNoPatch}
	}
	task, reply := e.resolveOneTask(ctx, msg, command.ActionUpdateTask, cmd.Slots)
	if reply != "" {
		return []string{reply}
	}

	var notes []string
	patch := store.TaskPatch{}
	if cmd.Slots.NewTitle != "" {
		patch.Title = &cmd.Slots.NewTitle
	}
	if cmd.Slots.Description != "" {
		patch.Description = &cmd.Slots.Description
	}
	if cmd.Slots.DueAt != "" {
		patch.DueAt = &cmd.Slots.DueAt
	}
	if s := store.Status(cmd.Slots.Status); s != "" && store.ValidStatus(s) && s != store.StatusDeleted {
		patch.Status = &s
	}
	if cmd.Slots.ProjectID != "" {
		patch.ProjectID = &cmd.Slots.ProjectID
	} else if cmd.Slots.ProjectTitle != "" {
		id, note := e.resolveProjectLink(ctx, msg.SpaceID, cmd.Slots.ProjectTitle)
		if id != "" {
			patch.ProjectID = &id
		}
		if note != "" {
			notes = append(notes, note)
		}
	}

	if err := e.store.PatchTask(ctx, msg.SpaceID, task.ID, patch); err != nil {
		e.log.ErrorContext(ctx, "patch task failed", "error", err, "task", task.ID)
		return []string{msgStoreError}
	}
	return append([]string{fmt.Sprintf("「%s」を更新しました。", task.Title)}, notes...)
}

func (e *Engine) updateProject(ctx context.Context, msg Message, cmd *command.Command) []string {
	if !cmd.HasPatch() {
		return []string{msgNoPatch}
	}
	project, reply := e.resolveOneProject(ctx, msg, command.ActionUpdateProject, cmd.Slots)
	if reply != "" {
		return []string{reply}
	}

	patch := store.ProjectPatch{}
	if cmd.Slots.NewTitle != "" {
		patch.Title = &cmd.Slots.NewTitle
	}
	if cmd.Slots.Description != "" {
		patch.Description = &cmd.Slots.Description
	}
	if cmd.Slots.DueAt != "" {
		patch.DueAt = &cmd.Slots.DueAt
	}
	if s := store.Status(cmd.Slots.Status); s != "" && store.ValidStatus(s) && s != store.StatusDeleted {
		patch.Status = &s
	}

	if err := e.store.PatchProject(ctx, msg.SpaceID, project.ID, patch); err != nil {
		e.log.ErrorContext(ctx, "patch project failed", "error", err, "project", project.ID)
		return []string{msgStoreError}
	}
	if patch.Status != nil && *patch.Status == store.StatusDone {
		return []string{fmt.Sprintf("プロジェクト「%s」を完了にしました。", project.Title)}
	}
	return []string{fmt.Sprintf("プロジェクト「%s」を更新しました。", project.Title)}
}

var multiQuerySplitRe = regexp.MustCompile(`[,、\n]`)

func (e *Engine) deleteTasks(ctx context.Context, msg Message, cmd *command.Command) []string {
	queries := splitQueries(cmd.Slots.Query)
	if len(queries) == 0 {
		// Armed space-wide but bound: only the asker's next message is the
		// answer, anyone else's messages stay fresh commands.
		e.pending.Set(msg.SpaceID, "", pending.Action{
			Next:      command.ActionDeleteTask,
			BoundUser: msg.UserID,
		})
		return []string{clarifyQuestion(command.ActionDeleteTask)}
	}

	tasks, err := e.store.ListTasks(ctx, msg.SpaceID)
	if err != nil {
		e.log.ErrorContext(ctx, "list tasks failed", "error", err, "space", msg.SpaceID)
		return []string{msgStoreError}
	}

	var replies []string
	for _, q := range queries {
		matches := match.Tasks(tasks, q)
		switch len(matches) {
		case 0:
			replies = append(replies, notFoundMsg(q))
		case 1:
			if r := e.softDeleteTask(ctx, msg.SpaceID, matches[0]); r != "" {
				replies = append(replies, r)
			}
		default:
			// The next message from this user narrows the query instead
			// of starting a fresh command.
			e.pending.Set(msg.SpaceID, "", pending.Action{
				Next:      command.ActionDeleteTask,
				BoundUser: msg.UserID,
			})
			replies = append(replies, disambiguateTasks(q, matches))
		}
	}
	return replies
}

func (e *Engine) softDeleteTask(ctx context.Context, spaceID string, task store.Task) string {
	status := store.StatusDeleted
	deletedAt := store.Now()
	patch := store.TaskPatch{Status: &status, DeletedAt: &deletedAt}
	if err := e.store.PatchTask(ctx, spaceID, task.ID, patch); err != nil {
		e.log.ErrorContext(ctx, "delete task failed", "error", err, "task", task.ID)
		return msgStoreError
	}
	return fmt.Sprintf("「%s」を削除しました。", task.Title)
}

func (e *Engine) deleteProjects(ctx context.Context, msg Message, cmd *command.Command) []string {
	queries := splitQueries(cmd.Slots.Query)
	if len(queries) == 0 {
		e.pending.Set(msg.SpaceID, "", pending.Action{
			Next:      command.ActionDeleteProject,
			BoundUser: msg.UserID,
		})
		return []string{clarifyQuestion(command.ActionDeleteProject)}
	}

	projects, err := e.store.ListProjects(ctx, msg.SpaceID)
	if err != nil {
		e.log.ErrorContext(ctx, "list projects failed", "error", err, "space", msg.SpaceID)
		return []string{msgStoreError}
	}

	var replies []string
	for _, q := range queries {
		matches := match.Projects(projects, q)
		switch len(matches) {
		case 0:
			replies = append(replies, notFoundMsg(q))
		case 1:
			status := store.StatusDeleted
			deletedAt := store.Now()
			patch := store.ProjectPatch{Status: &status, DeletedAt: &deletedAt}
			if err := e.store.PatchProject(ctx, msg.SpaceID, matches[0].ID, patch); err != nil {
				e.log.ErrorContext(ctx, "delete project failed", "error", err, "project", matches[0].ID)
				replies = append(replies, msgStoreError)
				continue
			}
			replies = append(replies, fmt.Sprintf("プロジェクト「%s」を削除しました。", matches[0].Title))
		default:
			e.pending.Set(msg.SpaceID, "", pending.Action{
				Next:      command.ActionDeleteProject,
				BoundUser: msg.UserID,
			})
			replies = append(replies, disambiguateProjects(q, matches))
		}
	}
	return replies
}

func (e *Engine) askUser(msg Message, cmd *command.Command) []string {
	next := command.Action(cmd.Slots.NextAction)
	question := cmd.Slots.Question
	if question == "" {
		question = msgNotUnderstood
	}
	if next.Valid() && next != command.ActionUnknown && next != command.ActionAskUser {
		slots := cmd.Slots
		slots.Question = ""
		slots.NextAction = ""
		e.pending.Set(msg.SpaceID, msg.UserID, pending.Action{Next: next, Slots: slots})
	}
	return []string{question}
}

// resolveOneTask narrows the slot query to exactly one live task. A
// non-empty reply means resolution failed and the reply should be sent
// instead; for a missing query the matching pending action is armed with
// the slots extracted so far, so the follow-up answer completes the
// original command instead of restarting it empty.
func (e *Engine) resolveOneTask(ctx context.Context, msg Message, action command.Action, slots command.Slots) (store.Task, string) {
	query := strings.TrimSpace(slots.Query)
	if query == "" {
		e.pending.Set(msg.SpaceID, msg.UserID, pending.Action{Next: action, Slots: slots})
		return store.Task{}, clarifyQuestion(action)
	}
	tasks, err := e.store.ListTasks(ctx, msg.SpaceID)
	if err != nil {
		e.log.ErrorContext(ctx, "list tasks failed", "error", err, "space", msg.SpaceID)
		return store.Task{}, msgStoreError
	}
	matches := match.Tasks(tasks, query)
	switch len(matches) {
	case 0:
		return store.Task{}, notFoundMsg(query)
	case 1:
		return matches[0], ""
	default:
		return store.Task{}, disambiguateTasks(query, matches)
	}
}

func (e *Engine) resolveOneProject(ctx context.Context, msg Message, action command.Action, slots command.Slots) (store.Project, string) {
	query := strings.TrimSpace(slots.Query)
	if query == "" {
		e.pending.Set(msg.SpaceID, msg.UserID, pending.Action{Next: action, Slots: slots})
		return store.Project{}, clarifyQuestion(action)
	}
	projects, err := e.store.ListProjects(ctx, msg.SpaceID)
	if err != nil {
		e.log.ErrorContext(ctx, "list projects failed", "error", err, "space", msg.SpaceID)
		return store.Project{}, msgStoreError
	}
	matches := match.Projects(projects, query)
	switch len(matches) {
	case 0:
		return store.Project{}, notFoundMsg(query)
	case 1:
		return matches[0], ""
	default:
		return store.Project{}, disambiguateProjects(query, matches)
	}
}

// resolveProjectLink resolves a project title to an id for task linkage.
// An unresolved title is tolerated; the task is stored without a project
// and the note tells the user why.
func (e *Engine) resolveProjectLink(ctx context.Context, spaceID, title string) (id, note string) {
	projects, err := e.store.ListProjects(ctx, spaceID)
	if err != nil {
		return "", ""
	}
	matches := match.Projects(projects, title)
	if len(matches) == 1 {
		return matches[0].ID, ""
	}
	return "", fmt.Sprintf("プロジェクト「%s」は特定できなかったため、未分類のままにしています。", title)
}

func splitQueries(q string) []string {
	var out []string
	for _, part := range multiQuerySplitRe.Split(q, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
