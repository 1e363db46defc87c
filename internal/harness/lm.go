package harness

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

	openai "github.com/sashabaranov/go-openai"
)

// Binding is a configured language-model client. The core exposes it to the
// loaded program (as the object handed to setLM) and otherwise treats it as
// opaque.
type Binding interface {
	// Complete sends a single-turn prompt and returns the completion text.
	Complete(ctx context.Context, prompt string) (string, error)

	// Model returns the bare model identifier being used.
	Model() string
}

// NewBinding constructs a Binding from the request's LM configuration. The
// model identifier is provider-qualified ("openai/gpt-4o-mini",
// "anthropic/claude-sonnet-4-20250514"); a bare name means openai. An
// unknown provider is a load failure. A missing API key is not: credential
// problems surface at call time, as per-example errors, so that programs
// that never call the model still evaluate.
func NewBinding(cfg *LMConfig) (Binding, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	provider, name := splitModel(model)

	maxTokens := DefaultMaxTokens
	if cfg.MaxTokens != nil {
		maxTokens = *cfg.MaxTokens
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	switch provider {
	case "openai":
		return newOpenAIBinding(cfg, name, maxTokens, temperature), nil
	case "anthropic":
		return newAnthropicBinding(cfg, name, maxTokens, temperature), nil
	default:
		return nil, loadErrorf(LoadLMConfig, "unsupported model provider %q in %q", provider, model)
	}
}

// splitModel splits a provider-qualified model identifier. Identifiers
// without a provider prefix default to openai.
func splitModel(model string) (provider, name string) {
	if i := strings.IndexByte(model, '/'); i >= 0 {
		return model[:i], model[i+1:]
	}
	return "openai", model
}

type openAIBinding struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func newOpenAIBinding(cfg *LMConfig, model string, maxTokens int, temperature float64) *openAIBinding {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = cfg.APIBase
	}
	return &openAIBinding{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
	}
}

func (b *openAIBinding) Model() string { return b.model }

func (b *openAIBinding) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type anthropicBinding struct {
	apiKey      string
	apiBase     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

func newAnthropicBinding(cfg *LMConfig, model string, maxTokens int, temperature float64) *anthropicBinding {
	return &anthropicBinding{
		apiKey:      cfg.APIKey,
		apiBase:     cfg.APIBase,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (b *anthropicBinding) Model() string { return b.model }

func (b *anthropicBinding) Complete(ctx context.Context, prompt string) (string, error) {
	apiKey := b.apiKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	apiBase := b.apiBase
	if apiBase == "" {
		apiBase = "https://api.anthropic.com"
	}

	reqBody := anthropicRequest{
		Model:       b.model,
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiBase+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// Anthropic API types
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
