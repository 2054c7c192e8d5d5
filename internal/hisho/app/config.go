package app

import (
	"fmt"
	"time"

	"github.com/harunoka/hisho/common/environment"
)

// Config is the full runtime configuration, loaded from the environment.
type Config struct {
	ListenAddr string
	LogLevel   string
	LogFormat  string
	BotName    string

	Line    LineConfig
	Discord DiscordConfig
	Sheets  SheetsConfig
	Gemini  GeminiConfig

	// LLMRateLimit caps model fallback calls per sender per minute.
	LLMRateLimit int

	// RulesPath optionally overrides the embedded keyword rule set.
	RulesPath string
}

// LineConfig enables the LINE transport when both values are set.
type LineConfig struct {
	ChannelSecret string
	ChannelToken  string
}

// DiscordConfig enables the Discord transport when PublicKey and BotToken
// are set. AppID (plus optional GuildID) additionally registers the slash
// command at startup.
type DiscordConfig struct {
	PublicKey string
	BotToken  string
	AppID     string
	GuildID   string
}

// SheetsConfig selects the spreadsheet store. With an empty SpreadsheetID
// the process falls back to the in-memory store, which is only useful for
// local development.
type SheetsConfig struct {
	SpreadsheetID string
	AccessToken   string
	BaseURL       string
	Timeout       time.Duration
}

// GeminiConfig enables the model fallback when APIKey is set.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// LoadConfig reads configuration from the environment. At least one
// transport must be fully configured.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ListenAddr: environment.StringOr("HISHO_LISTEN_ADDR", ":8080"),
		LogLevel:   environment.StringOr("HISHO_LOG_LEVEL", "info"),
		LogFormat:  environment.StringOr("HISHO_LOG_FORMAT", "json"),
		BotName:    environment.StringOr("HISHO_BOT_NAME", "hisho"),
		Line: LineConfig{
			ChannelSecret: environment.StringOr("LINE_CHANNEL_SECRET", ""),
			ChannelToken:  environment.StringOr("LINE_CHANNEL_TOKEN", ""),
		},
		Discord: DiscordConfig{
			PublicKey: environment.StringOr("DISCORD_PUBLIC_KEY", ""),
			BotToken:  environment.StringOr("DISCORD_BOT_TOKEN", ""),
			AppID:     environment.StringOr("DISCORD_APP_ID", ""),
			GuildID:   environment.StringOr("DISCORD_GUILD_ID", ""),
		},
		Sheets: SheetsConfig{
			SpreadsheetID: environment.StringOr("SHEETS_SPREADSHEET_ID", ""),
			AccessToken:   environment.StringOr("SHEETS_ACCESS_TOKEN", ""),
			BaseURL:       environment.StringOr("SHEETS_BASE_URL", ""),
			Timeout:       environment.DurationOr("SHEETS_TIMEOUT", 15*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey:  environment.StringOr("GEMINI_API_KEY", ""),
			Model:   environment.StringOr("GEMINI_MODEL", ""),
			BaseURL: environment.StringOr("GEMINI_BASE_URL", ""),
		},
		LLMRateLimit: environment.IntOr("HISHO_LLM_RATE_LIMIT", 0),
		RulesPath:    environment.StringOr("HISHO_RULES_PATH", ""),
	}

	if !cfg.lineEnabled() && !cfg.discordEnabled() {
		return nil, fmt.Errorf("app: no transport configured, set LINE_CHANNEL_SECRET/LINE_CHANNEL_TOKEN or DISCORD_PUBLIC_KEY/DISCORD_BOT_TOKEN")
	}
	return cfg, nil
}

func (c *Config) lineEnabled() bool {
	return c.Line.ChannelSecret != "" && c.Line.ChannelToken != ""
}

func (c *Config) discordEnabled() bool {
	return c.Discord.PublicKey != "" && c.Discord.BotToken != ""
}
