// Package discord is the Discord interactions transport: Ed25519-verified
// webhook intake, the PING/deferred-ack protocol, and follow-up delivery of
// the engine's replies.
package discord

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/harunoka/hisho/common/trace"
	"github.com/harunoka/hisho/internal/hisho/engine"
)

// CommandName is the slash command the bot registers; its single string
// option carries the utterance.
const CommandName = "hisho"

// Session is the slice of the Discord REST API the transport uses.
// *discordgo.Session satisfies it; tests substitute a recorder.
type Session interface {
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Handler is the /webhook/discord HTTP handler. Interactions time out in
// three seconds, so commands are acknowledged with a deferred response
// (type 5) and the real reply arrives as a follow-up webhook message.
type Handler struct {
	publicKey ed25519.PublicKey
	session   Session
	engine    *engine.Engine
	log       *slog.Logger

	// wait, when set, makes command processing synchronous. Tests only.
	wait bool
}

// New builds a Handler. publicKeyHex is the application's interaction
// verification key as configured in the developer portal.
func New(publicKeyHex string, session Session, eng *engine.Engine, log *slog.Logger) (*Handler, error) {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("discord: decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("discord: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{publicKey: ed25519.PublicKey(raw), session: session, engine: eng, log: log}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !discordgo.VerifyInteraction(r, h.publicKey) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var interaction discordgo.Interaction
	if err := json.NewDecoder(r.Body).Decode(&interaction); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch interaction.Type {
	case discordgo.InteractionPing:
		writeResponse(w, &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong})
	case discordgo.InteractionApplicationCommand:
		// Ack within the three-second window; the reply follows up.
		writeResponse(w, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		})
		ctx := trace.With(context.Background(), trace.NewID())
		if h.wait {
			h.handleCommand(ctx, &interaction)
			return
		}
		go h.handleCommand(ctx, &interaction)
	default:
		writeResponse(w, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
	}
}

func (h *Handler) handleCommand(ctx context.Context, interaction *discordgo.Interaction) {
	data := interaction.ApplicationCommandData()
	if data.Name != CommandName {
		return
	}
	var text string
	for _, opt := range data.Options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			text = opt.StringValue()
			break
		}
	}

	replies := h.engine.Process(ctx, engine.Message{
		SpaceID:   interaction.ChannelID,
		UserID:    senderID(interaction),
		Text:      text,
		Addressed: true,
	})
	if len(replies) == 0 {
		replies = []string{"(応答なし)"}
	}

	// The first reply resolves the deferred ack; the rest are plain
	// channel messages.
	if _, err := h.session.FollowupMessageCreate(interaction, true, &discordgo.WebhookParams{
		Content: replies[0],
	}); err != nil {
		h.log.ErrorContext(ctx, "followup failed", "error", err)
		return
	}
	for _, reply := range replies[1:] {
		if _, err := h.session.ChannelMessageSend(interaction.ChannelID, reply); err != nil {
			h.log.ErrorContext(ctx, "channel send failed", "error", err)
			return
		}
	}
}

// senderID works for both guild and DM interactions.
func senderID(interaction *discordgo.Interaction) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func writeResponse(w http.ResponseWriter, resp *discordgo.InteractionResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		// The connection is gone; nothing useful left to do.
		_ = err
	}
}

// RegisterCommand creates the slash command on the application. Called once
// at startup; re-creating an existing command is an upsert on Discord's
// side.
func RegisterCommand(s *discordgo.Session, appID, guildID string) error {
	_, err := s.ApplicationCommandCreate(appID, guildID, &discordgo.ApplicationCommand{
		Name:        CommandName,
		Description: "タスクとプロジェクトを管理します",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message",
				Description: "例: 議事録作成を明日18時までに追加",
				Required:    true,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("discord: register command: %w", err)
	}
	return nil
}
