package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiConfig holds settings for the generative-language provider.
type GeminiConfig struct {
	Enabled   bool          `yaml:"enabled"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		Enabled:   false,
		BaseURL:   geminiDefaultBaseURL,
		Model:     "gemini-pro",
		APIKeyEnv: "GEMINI_API_KEY",
		Timeout:   60 * time.Second,
	}
}

// GeminiProvider implements Provider against the Gemini generateContent API.
type GeminiProvider struct {
	config     GeminiConfig
	httpClient *http.Client
}

// NewGeminiProvider validates the API key is resolvable and returns a
// provider. A missing key is a construction error: intelligence retrieval is
// best-effort at call time, but an enabled provider without credentials is a
// misconfiguration.
func NewGeminiProvider(config GeminiConfig) (*GeminiProvider, error) {
	if os.Getenv(config.APIKeyEnv) == "" {
		return nil, fmt.Errorf("intelligence API key not found in env var: %s", config.APIKeyEnv)
	}
	if config.BaseURL == "" {
		config.BaseURL = geminiDefaultBaseURL
	}
	if config.Model == "" {
		config.Model = "gemini-pro"
	}
	return &GeminiProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string { return "gemini" }

// ActorIntelligence queries the model for TTPs and IOCs attributed to the
// actor and parses the structured JSON it is instructed to return.
func (p *GeminiProvider) ActorIntelligence(ctx context.Context, actor string) (*Report, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, nil
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: actorPrompt(actor)}}}},
		GenerationConfig: generationConfig{
			Temperature: 0.3,
			TopP:        0.95,
			TopK:        40,
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimSuffix(p.config.BaseURL, "/"),
		url.PathEscape(p.config.Model),
		url.QueryEscape(os.Getenv(p.config.APIKeyEnv)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("intelligence lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("intelligence API returned %d: %s", resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	text := genResp.text()
	if text == "" {
		return nil, fmt.Errorf("empty model response")
	}

	report, err := parseReport(text)
	if err != nil {
		return nil, err
	}
	if report.ThreatActor == "" {
		report.ThreatActor = actor
	}
	return report, nil
}

// parseReport extracts the first JSON object from model output. Models wrap
// JSON in prose or code fences; everything outside the outermost braces is
// discarded.
func parseReport(text string) (*Report, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}
	var report Report
	if err := json.Unmarshal([]byte(text[start:end+1]), &report); err != nil {
		return nil, fmt.Errorf("parsing intelligence JSON: %w", err)
	}
	return &report, nil
}

func actorPrompt(actor string) string {
	return fmt.Sprintf(`You are a cybersecurity threat intelligence analyst. Research and provide information about the threat actor group: %s

Please provide:
1. Known TTPs (Tactics, Techniques, and Procedures) used by this group
2. Known IOCs (Indicators of Compromise) associated with this group: IP addresses, domain names, file hashes (MD5, SHA1, SHA256), email addresses, executable names, registry keys, user agents, and any other indicators

Respond with only a JSON object in this structure:
{
  "threat_actor": "%s",
  "ttps": [{"tactic": "...", "technique": "...", "description": "..."}],
  "iocs": {
    "ip_addresses": [], "domains": [], "file_hashes": [], "email_addresses": [],
    "executables": [], "registry_keys": [], "user_agents": [], "other": []
  },
  "sources": []
}`, actor, actor)
}

// Gemini API request/response types.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP"`
	TopK        int     `json:"topK"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (r generateResponse) text() string {
	var sb strings.Builder
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
