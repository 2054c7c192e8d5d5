package nlp

import (
	"fmt"
	"strings"

	"github.com/harunoka/hisho/internal/hisho/command"
)

// systemPromptTmpl is the fixed instruction sent with every fallback call.
// One printf verb is substituted: the comma-separated action catalogue,
// generated from the registered action set so prompt and validator cannot
// drift apart.
const systemPromptTmpl = `あなたは日本語のチャットからタスク管理コマンドを抽出するパーサーです。
ユーザーの発言を読み、必ず JSON だけを返してください。

許可される action は次のいずれかです:
%s

出力スキーマ (action 以外のキーはすべて slots の下、値はすべて文字列):
{
  "action": "<action>",
  "slots": {
    "title": "",
    "new_title": "",
    "description": "",
    "due_at": "",
    "status": "",
    "project_title": "",
    "project_id": "",
    "query": "",
    "question": "",
    "next_action": ""
  }
}

規則 (厳守):
1. JSON 以外のテキスト、コードフェンス、説明を一切出力しない。
2. action は上の一覧にある値だけを使う。判断できなければ "unknown"。
3. 発言に無い情報を創作しない。不明な slot は空文字列のままにする。
4. 日付や時刻はそのままの表現で due_at に入れる (例: "明日18時")。変換は行わない。
5. 既存のタスクやプロジェクトを指す語句は query に入れる。
6. 追加情報が必要なときだけ action を "ask_user" にし、question に質問文、
   next_action に再開する action を入れる。
7. status は open / doing / done のいずれかだけを使う。`

// SystemPrompt returns the instruction prompt for the fallback parser.
func SystemPrompt() string {
	tags := make([]string, len(command.Actions))
	for i, a := range command.Actions {
		tags[i] = string(a)
	}
	return fmt.Sprintf(systemPromptTmpl, strings.Join(tags, ", "))
}
