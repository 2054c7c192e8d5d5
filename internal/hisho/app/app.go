// Package app wires configuration, logging, the store, the interpretation
// pipeline, and the chat transports into one HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/harunoka/hisho/common/redact"
	"github.com/harunoka/hisho/internal/hisho/discord"
	"github.com/harunoka/hisho/internal/hisho/engine"
	"github.com/harunoka/hisho/internal/hisho/linebot"
	"github.com/harunoka/hisho/internal/hisho/nlp"
	"github.com/harunoka/hisho/internal/hisho/observability"
	"github.com/harunoka/hisho/internal/hisho/rules"
	"github.com/harunoka/hisho/internal/hisho/store"
)

// App is the assembled service.
type App struct {
	cfg    *Config
	log    *slog.Logger
	server *http.Server
}

// New builds the App from cfg.
func New(cfg *Config) (*App, error) {
	observability.Setup(cfg.LogLevel, cfg.LogFormat)
	log := slog.Default()

	ruleSet := rules.Default()
	if cfg.RulesPath != "" {
		loaded, err := rules.Load(cfg.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("app: load rules: %w", err)
		}
		ruleSet = loaded
	}

	var st store.Store
	if cfg.Sheets.SpreadsheetID != "" {
		token := cfg.Sheets.AccessToken
		st = store.NewSheets(store.SheetsConfig{
			SpreadsheetID: cfg.Sheets.SpreadsheetID,
			BaseURL:       cfg.Sheets.BaseURL,
			Timeout:       cfg.Sheets.Timeout,
			Token: func(context.Context) (string, error) {
				return token, nil
			},
		})
	} else {
		log.Warn("no spreadsheet configured, using in-memory store; all data is lost on restart")
		st = store.NewMemory()
	}

	var interpreter *nlp.Interpreter
	if cfg.Gemini.APIKey != "" {
		provider := nlp.NewGemini(nlp.GeminiConfig{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
		})
		interpreter = nlp.NewInterpreter(provider, log)
	} else {
		log.Warn("no model API key configured, fallback parsing disabled")
	}

	eng := engine.New(engine.Options{
		BotName:     cfg.BotName,
		Rules:       ruleSet,
		Store:       st,
		Interpreter: interpreter,
		Limiter:     nlp.NewRateLimiter(cfg.LLMRateLimit, 0),
		Logger:      log,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.lineEnabled() {
		client, err := messaging_api.NewMessagingApiAPI(cfg.Line.ChannelToken)
		if err != nil {
			return nil, fmt.Errorf("app: line client: %w", err)
		}
		mux.Handle("/webhook/line", linebot.New(cfg.Line.ChannelSecret, client, eng, log))
		log.Info("line transport enabled")
	}

	if cfg.discordEnabled() {
		session, err := discordgo.New("Bot " + cfg.Discord.BotToken)
		if err != nil {
			return nil, fmt.Errorf("app: discord session: %w", err)
		}
		handler, err := discord.New(cfg.Discord.PublicKey, session, eng, log)
		if err != nil {
			return nil, fmt.Errorf("app: discord handler: %w", err)
		}
		mux.Handle("/webhook/discord", handler)
		if cfg.Discord.AppID != "" {
			if err := discord.RegisterCommand(session, cfg.Discord.AppID, cfg.Discord.GuildID); err != nil {
				// Command registration is an upsert; a transient failure
				// here should not block serving verified interactions.
				log.Warn("slash command registration failed", "error",
					redact.String(err.Error(), cfg.Discord.BotToken))
			}
		}
		log.Info("discord transport enabled")
	}

	return &App{
		cfg: cfg,
		log: log,
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", a.cfg.ListenAddr)
		errCh <- a.server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	case sig := <-stop:
		a.log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("app: shutdown: %w", err)
		}
		return nil
	}
}
