package engine

import (
	"fmt"
	"strings"

	"github.com/harunoka/hisho/internal/hisho/command"
	"github.com/harunoka/hisho/internal/hisho/store"
)

// Fixed user-facing reply texts. Several of these are exact contracts with
// the tests (notably the empty-list messages); change with care.
const (
	msgNoTasks    = "タスクはまだありません。"
	msgNoProjects = "プロジェクトはまだありません。"

	msgInternalError = "ごめんなさい、処理中にエラーが発生しました。もう一度お試しください。"
	msgStoreError    = "ごめんなさい、記録の読み書きに失敗しました。もう一度お試しください。"
	msgCancelled     = "キャンセルしました。"
	msgEmptyPrompt   = "はい、ご用件をどうぞ。「ヘルプ」で使い方を表示します。"
	msgNotUnderstood = "ごめんなさい、うまく理解できませんでした。「ヘルプ」で使い方を確認できます。"
	msgNoPatch       = "変更内容が見つかりませんでした。新しいタイトル、説明、期限、ステータスのいずれかを指定してください。"

	msgAskTaskTitle    = "追加するタスクの名前を教えてください。"
	msgAskProjectTitle = "追加するプロジェクトの名前を教えてください。"

	msgGuessFmt = "うまく理解できませんでしたが、「%s」の操作で対象は「%s」でしょうか?言い換えてもう一度お試しください。"

	helpText = `使い方:
・タスク追加: 「◯◯を追加」「タイトル: ◯◯ / 期限: 明日18時」
・一覧: 「タスク一覧」「プロジェクト一覧」
・完了/再開: 「「◯◯」完了」「「◯◯」を戻して」
・変更: 「「◯◯」を「△△」に変更」「「◯◯」の期限を6/25に変更」
・削除: 「「◯◯」を削除」(複数は「、」区切り)
・プロジェクトへ移動: 「「◯◯」を「△△」プロジェクトに移動」
期限は「明日18時」「6/25 15:00」のような表現が使えます。`
)

var statusLabels = map[store.Status]string{
	store.StatusOpen:  "未着手",
	store.StatusDoing: "進行中",
	store.StatusDone:  "完了",
}

var actionLabels = map[command.Action]string{
	command.ActionCreateTask:    "タスク追加",
	command.ActionUpdateTask:    "タスク変更",
	command.ActionDeleteTask:    "タスク削除",
	command.ActionCompleteTask:  "タスク完了",
	command.ActionReopenTask:    "タスク再開",
	command.ActionListTasks:     "タスク一覧",
	command.ActionCreateProject: "プロジェクト追加",
	command.ActionUpdateProject: "プロジェクト変更",
	command.ActionDeleteProject: "プロジェクト削除",
	command.ActionListProjects:  "プロジェクト一覧",
}

func actionLabel(a command.Action) string {
	if label, ok := actionLabels[a]; ok {
		return label
	}
	return string(a)
}

// clarifyQuestion is the prompt sent when inference knows the action but
// not the target.
func clarifyQuestion(a command.Action) string {
	switch a {
	case command.ActionDeleteTask, command.ActionDeleteProject:
		return "どれを削除しますか?名前か ID を教えてください。"
	case command.ActionCompleteTask:
		return "どのタスクを完了にしますか?名前か ID を教えてください。"
	case command.ActionReopenTask:
		return "どのタスクを戻しますか?名前か ID を教えてください。"
	default:
		return "どれを変更しますか?名前か ID を教えてください。"
	}
}

func notFoundMsg(query string) string {
	return fmt.Sprintf("「%s」に一致するものは見つかりませんでした。", query)
}

func disambiguateTasks(query string, matches []store.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "「%s」に複数の候補があります。ID か、より具体的な名前で指定してください。\n", query)
	for _, t := range matches {
		fmt.Fprintf(&sb, "・%s [%s]\n", t.Title, t.ID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func disambiguateProjects(query string, matches []store.Project) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "「%s」に複数の候補があります。ID か、より具体的な名前で指定してください。\n", query)
	for _, p := range matches {
		fmt.Fprintf(&sb, "・%s [%s]\n", p.Title, p.ID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatTaskList(tasks []store.Task, projects []store.Project) string {
	byID := make(map[string]string, len(projects))
	for _, p := range projects {
		byID[p.ID] = p.Title
	}
	var sb strings.Builder
	sb.WriteString("タスク一覧:\n")
	for _, t := range tasks {
		fmt.Fprintf(&sb, "・%s [%s]", t.Title, statusLabels[t.Status])
		if t.DueAt != "" {
			fmt.Fprintf(&sb, " 期限: %s", t.DueAt)
		}
		// Dangling project references are tolerated and simply not shown.
		if name, ok := byID[t.ProjectID]; ok && t.ProjectID != "" {
			fmt.Fprintf(&sb, " / %s", name)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatProjectList(projects []store.Project) string {
	var sb strings.Builder
	sb.WriteString("プロジェクト一覧:\n")
	for _, p := range projects {
		fmt.Fprintf(&sb, "・%s [%s]", p.Title, statusLabels[p.Status])
		if p.DueAt != "" {
			fmt.Fprintf(&sb, " 期限: %s", p.DueAt)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}
