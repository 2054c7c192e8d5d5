// Package rules holds the keyword configuration shared by the trigger
// detector, the regex fast path, and the inference fallback.
//
// The keyword lists were tuned by trial against real group-chat logs, so
// they are data, not code: the defaults are embedded, and a deployment can
// override them with an external YAML file without rebuilding the bot.
package rules

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultYAML []byte

// Config is the full keyword rule set.
type Config struct {
	WakeWords   []string    `yaml:"wake_words"`
	CancelWords []string    `yaml:"cancel_words"`
	Status      StatusWords `yaml:"status"`
	Actions     ActionWords `yaml:"actions"`
	Targets     TargetWords `yaml:"targets"`
	// MinQueryLen is the minimum rune length of a residual query before
	// the inference layer treats it as noise.
	MinQueryLen int `yaml:"min_query_len"`
}

// StatusWords are the synonyms mapped to each task status.
type StatusWords struct {
	Done  []string `yaml:"done"`
	Doing []string `yaml:"doing"`
	Open  []string `yaml:"open"`
}

// ActionWords are the coarse action keywords used by the inference
// fallback and by the fast-path status-operation rules.
type ActionWords struct {
	Create   []string `yaml:"create"`
	Update   []string `yaml:"update"`
	Delete   []string `yaml:"delete"`
	Complete []string `yaml:"complete"`
	Reopen   []string `yaml:"reopen"`
	List     []string `yaml:"list"`
}

// TargetWords classify the entity type an utterance is about.
type TargetWords struct {
	Task    []string `yaml:"task"`
	Project []string `yaml:"project"`
}

// Default returns the embedded rule set.
func Default() *Config {
	cfg, err := parse(defaultYAML)
	if err != nil {
		// The embedded file is validated by tests; reaching this is a
		// build defect.
		panic(fmt.Sprintf("rules: embedded keywords.yaml invalid: %v", err))
	}
	return cfg
}

// Load reads the rule set from path, falling back to the embedded defaults
// when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules: %s: %w", path, err)
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if len(cfg.WakeWords) == 0 {
		return fmt.Errorf("wake_words must not be empty")
	}
	if len(cfg.CancelWords) == 0 {
		return fmt.Errorf("cancel_words must not be empty")
	}
	if len(cfg.Status.Done) == 0 || len(cfg.Status.Open) == 0 {
		return fmt.Errorf("status synonym lists must not be empty")
	}
	if cfg.MinQueryLen <= 0 {
		return fmt.Errorf("min_query_len must be positive")
	}
	return nil
}
