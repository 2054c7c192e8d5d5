// Package linebot is the LINE webhook transport: signature-checked event
// intake, immediate acknowledgment, and reply/push delivery of the engine's
// replies.
package linebot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/harunoka/hisho/common/trace"
	"github.com/harunoka/hisho/internal/hisho/engine"
	"github.com/harunoka/hisho/internal/hisho/observability"
)

// replyBatchLimit is the LINE API cap on messages per reply or push call.
const replyBatchLimit = 5

// MessagingClient is the slice of the LINE messaging API the transport
// uses. *messaging_api.MessagingApiAPI satisfies it; tests substitute a
// recorder.
type MessagingClient interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
	PushMessage(req *messaging_api.PushMessageRequest, xLineRetryKey string) (*messaging_api.PushMessageResponse, error)
	GetProfile(userID string) (*messaging_api.UserProfileResponse, error)
	GetGroupMemberProfile(groupID, userID string) (*messaging_api.GroupUserProfileResponse, error)
}

// Handler is the /webhook/line HTTP handler. It acknowledges the request
// before doing any work; LINE's webhook timeout is shorter than a store
// round trip, so all substantive processing happens after the 200 and
// failures surface only as best-effort push messages.
type Handler struct {
	channelSecret string
	client        MessagingClient
	engine        *engine.Engine
	log           *slog.Logger

	// wait, when set, makes event processing synchronous. Tests only.
	wait bool
}

// New builds a Handler. A nil logger falls back to slog.Default.
func New(channelSecret string, client MessagingClient, eng *engine.Engine, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{channelSecret: channelSecret, client: client, engine: eng, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cb, err := webhook.ParseRequest(h.channelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	// The request context dies with the response; processing gets its own,
	// carrying a fresh trace id for the batch.
	ctx := trace.With(context.Background(), trace.NewID())
	if h.wait {
		h.processEvents(ctx, cb.Events)
		return
	}
	go h.processEvents(ctx, cb.Events)
}

// processEvents walks the batch sequentially. A failure in one event must
// not abort the rest; the engine already recovers panics per event.
func (h *Handler) processEvents(ctx context.Context, events []webhook.EventInterface) {
	for _, event := range events {
		switch ev := event.(type) {
		case webhook.MessageEvent:
			h.handleMessage(ctx, ev)
		case webhook.FollowEvent:
			h.greet(ctx, ev.ReplyToken, ev.Source)
		case webhook.JoinEvent:
			h.deliver(ctx, ev.ReplyToken, chatID(ev.Source),
				[]string{"こんにちは!タスク管理を手伝います。「ボット ヘルプ」で使い方を表示します。"})
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, ev webhook.MessageEvent) {
	if ev.Message.GetType() != "text" {
		return
	}
	textMsg, ok := ev.Message.(webhook.TextMessageContent)
	if !ok {
		return
	}

	space := chatID(ev.Source)
	user := userID(ev.Source)
	if space == "" {
		return
	}

	replies := h.engine.Process(ctx, engine.Message{
		SpaceID: space,
		UserID:  user,
		Text:    textMsg.Text,
	})
	if len(replies) == 0 {
		return
	}
	h.deliver(ctx, ev.ReplyToken, space, replies)
}

// greet welcomes a new friend by display name, degrading to a masked user
// id when the profile lookup fails.
func (h *Handler) greet(ctx context.Context, replyToken string, source webhook.SourceInterface) {
	user := userID(source)
	name := observability.MaskUserID(user)
	if profile, err := h.client.GetProfile(user); err == nil && profile.DisplayName != "" {
		name = profile.DisplayName
	} else if err != nil {
		h.log.DebugContext(ctx, "profile lookup failed", "error", err)
	}
	h.deliver(ctx, replyToken, chatID(source), []string{
		fmt.Sprintf("%sさん、こんにちは!タスクやプロジェクトの管理を手伝います。「ボット ヘルプ」で使い方を表示します。", name),
	})
}

// deliver sends replies: the first batch rides the reply token, the rest
// (or a failed reply) fall back to push.
func (h *Handler) deliver(ctx context.Context, replyToken, to string, replies []string) {
	messages := renderMessages(replies)

	first := messages
	if len(first) > replyBatchLimit {
		first = first[:replyBatchLimit]
	}
	rest := messages[len(first):]

	if replyToken != "" {
		_, err := h.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages:   first,
		})
		if err == nil {
			h.push(ctx, to, rest)
			return
		}
		// Expired or consumed token; push everything instead.
		h.log.WarnContext(ctx, "reply failed, falling back to push", "error", err)
	}
	h.push(ctx, to, messages)
}

func (h *Handler) push(ctx context.Context, to string, messages []messaging_api.MessageInterface) {
	for len(messages) > 0 && to != "" {
		batch := messages
		if len(batch) > replyBatchLimit {
			batch = batch[:replyBatchLimit]
		}
		messages = messages[len(batch):]
		if _, err := h.client.PushMessage(&messaging_api.PushMessageRequest{
			To:       to,
			Messages: batch,
		}, ""); err != nil {
			h.log.ErrorContext(ctx, "push failed", "error", err)
			return
		}
	}
}

// renderMessages maps reply texts to LINE messages. Multi-line listings
// become Flex bubbles so long lists stay readable on phones; everything
// else is plain text.
func renderMessages(replies []string) []messaging_api.MessageInterface {
	out := make([]messaging_api.MessageInterface, 0, len(replies))
	for _, text := range replies {
		if header, lines, ok := splitListing(text); ok {
			out = append(out, listFlexMessage(header, lines))
			continue
		}
		out = append(out, &messaging_api.TextMessage{Text: text})
	}
	return out
}

// splitListing recognizes the engine's listing replies: a header line
// ending with ":" followed by bullet lines.
func splitListing(text string) (header string, lines []string, ok bool) {
	parts := strings.Split(text, "\n")
	if len(parts) < 2 || !strings.HasSuffix(parts[0], ":") {
		return "", nil, false
	}
	for _, line := range parts[1:] {
		if !strings.HasPrefix(line, "・") {
			return "", nil, false
		}
	}
	return strings.TrimSuffix(parts[0], ":"), parts[1:], true
}

func listFlexMessage(header string, lines []string) messaging_api.MessageInterface {
	contents := make([]messaging_api.FlexComponentInterface, 0, len(lines)+1)
	contents = append(contents, &messaging_api.FlexText{
		Text:   header,
		Weight: "bold",
		Size:   "md",
	})
	for _, line := range lines {
		contents = append(contents, &messaging_api.FlexText{
			Text: strings.TrimPrefix(line, "・"),
			Wrap: true,
			Size: "sm",
		})
	}
	return &messaging_api.FlexMessage{
		AltText: header,
		Contents: &messaging_api.FlexBubble{
			Body: &messaging_api.FlexBox{
				Layout:   "vertical",
				Spacing:  "sm",
				Contents: contents,
			},
		},
	}
}

// chatID is the space identifier: group id, room id, or the user id for a
// one-on-one chat.
func chatID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.GroupSource:
		return s.GroupId
	case webhook.RoomSource:
		return s.RoomId
	case webhook.UserSource:
		return s.UserId
	case *webhook.GroupSource:
		return s.GroupId
	case *webhook.RoomSource:
		return s.RoomId
	case *webhook.UserSource:
		return s.UserId
	}
	return ""
}

func userID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	case webhook.UserSource:
		return s.UserId
	case *webhook.GroupSource:
		return s.UserId
	case *webhook.RoomSource:
		return s.UserId
	case *webhook.UserSource:
		return s.UserId
	}
	return ""
}
