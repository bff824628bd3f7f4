package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Backend is a text-completion capability the analyzer reasons with.
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config selects and tunes the completion backend.
type Config struct {
	// Backend is "ollama", "openai", or "rules" (no model, heuristics only).
	Backend   string        `yaml:"backend"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
	// SampleRows caps how many rows are shown to the model per source.
	SampleRows int `yaml:"sample_rows"`
}

// DefaultConfig returns the local-model defaults.
func DefaultConfig() Config {
	return Config{
		Backend:    "ollama",
		BaseURL:    "http://localhost:11434",
		Model:      "llama3.2",
		APIKeyEnv:  "OPENAI_API_KEY",
		Timeout:    120 * time.Second,
		SampleRows: 20,
	}
}

// NewBackend builds the configured backend. "rules" returns nil: the
// analyzer treats a nil backend as heuristics-only.
func NewBackend(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", "rules":
		return nil, nil
	case "ollama":
		return newOllamaBackend(cfg), nil
	case "openai":
		return newOpenAIBackend(cfg)
	default:
		return nil, fmt.Errorf("unknown analyzer backend: %q", cfg.Backend)
	}
}

type ollamaBackend struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func newOllamaBackend(cfg Config) *ollamaBackend {
	base := cfg.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}
	return &ollamaBackend{
		baseURL:    strings.TrimSuffix(base, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (b *ollamaBackend) Name() string { return "ollama" }

func (b *ollamaBackend) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model":  b.model,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("model returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return out.Response, nil
}

type openaiBackend struct {
	baseURL    string
	model      string
	apiKeyEnv  string
	httpClient *http.Client
}

func newOpenAIBackend(cfg Config) (*openaiBackend, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	if os.Getenv(keyEnv) == "" {
		return nil, fmt.Errorf("analyzer API key not found in env var: %s", keyEnv)
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4"
	}
	return &openaiBackend{
		baseURL:    strings.TrimSuffix(base, "/"),
		model:      model,
		apiKeyEnv:  keyEnv,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (b *openaiBackend) Name() string { return "openai" }

func (b *openaiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model": b.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a cybersecurity forensic analyst. Always respond with valid JSON."},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+os.Getenv(b.apiKeyEnv))

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("model returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty model response")
	}
	return out.Choices[0].Message.Content, nil
}
