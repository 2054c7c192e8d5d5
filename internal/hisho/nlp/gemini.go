package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiBase  = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel = "gemini-2.0-flash"
	defaultTimeout     = 30 * time.Second

	// maxOutputTokens caps the completion. A command JSON is small; anything
	// longer than this is the model rambling.
	maxOutputTokens = 512
)

// GeminiConfig configures the Gemini generateContent provider.
type GeminiConfig struct {
	// APIKey authenticates against the Generative Language API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for the Vertex AI variant
	// of the same surface or a local proxy. Defaults to the public
	// generativelanguage endpoint when empty.
	BaseURL string

	// Model is the model identifier. Defaults to gemini-2.0-flash when
	// empty (cheap, sufficient for slot extraction).
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

type geminiProvider struct {
	cfg    GeminiConfig
	client *http.Client
}

// NewGemini returns a Provider backed by the Gemini generateContent API.
// The returned provider is safe for concurrent use.
func NewGemini(cfg GeminiConfig) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &geminiProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal generateContent wire types ---

type gemPart struct {
	Text string `json:"text"`
}

type gemContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []gemPart `json:"parts"`
}

type gemGenerationConfig struct {
	// Temperature is always 0 here; the caller wants deterministic slot
	// extraction, not prose.
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type gemRequest struct {
	SystemInstruction *gemContent         `json:"systemInstruction,omitempty"`
	Contents          []gemContent        `json:"contents"`
	GenerationConfig  gemGenerationConfig `json:"generationConfig"`
}

type gemResponse struct {
	Candidates []struct {
		Content      gemContent `json:"content"`
		FinishReason string     `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (p *geminiProvider) Generate(ctx context.Context, system, user string) (string, error) {
	body := gemRequest{
		SystemInstruction: &gemContent{Parts: []gemPart{{Text: system}}},
		Contents: []gemContent{
			{Role: "user", Parts: []gemPart{{Text: user}}},
		},
		GenerationConfig: gemGenerationConfig{
			Temperature:     0,
			MaxOutputTokens: maxOutputTokens,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("nlp: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.cfg.BaseURL, p.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("nlp: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("nlp: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("nlp: read response body: %w", err)
	}

	var gemResp gemResponse
	if err := json.Unmarshal(respBody, &gemResp); err != nil {
		return "", fmt.Errorf("nlp: decode API response: %w", err)
	}

	if gemResp.Error != nil {
		return "", fmt.Errorf("nlp: API error (%s): %s", gemResp.Error.Status, gemResp.Error.Message)
	}

	if len(gemResp.Candidates) == 0 {
		return "", fmt.Errorf("nlp: no candidates returned (HTTP %d)", resp.StatusCode)
	}

	var sb strings.Builder
	for _, part := range gemResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
