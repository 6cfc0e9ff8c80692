package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultTimeout = 120 * time.Second
)

// Default models for different tasks
const (
	ModelClaude35Sonnet = "anthropic/claude-3.5-sonnet"
	ModelClaude3Haiku   = "anthropic/claude-3-haiku"
	ModelGPT4oMini      = "openai/gpt-4o-mini"
	ModelGPT4o          = "openai/gpt-4o"
	ModelGeminiFlash    = "google/gemini-flash-1.5"
)

// Client handles communication with OpenAI-compatible APIs
type Client struct {
	client       openai.Client
	defaultModel string
}

// ClientOption configures the client
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL      string
	timeout      time.Duration
	defaultModel string
}

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.baseURL = url
	}
}

// WithTimeout sets custom HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.timeout = timeout
	}
}

// WithDefaultModel sets the default model
func WithDefaultModel(model string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.defaultModel = model
	}
}

// NewClient creates a new OpenAI-compatible client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	cfg := &clientConfig{
		baseURL:      DefaultBaseURL,
		timeout:      DefaultTimeout,
		defaultModel: ModelClaude35Sonnet,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
		option.WithHeader("HTTP-Referer", "https://github.com/rezonia/invoice-processor"),
		option.WithHeader("X-Title", "Curly's Books Receipts"),
	}

	return &Client{
		client:       openai.NewClient(clientOpts...),
		defaultModel: cfg.defaultModel,
	}
}

// Usage reports the token counts an LLM call billed, for downstream
// cost tracking (input_tokens/1000 x input_rate + output_tokens/1000
// x output_rate, in USD).
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// ChatTextWithUsage runs a system+user text completion and returns the
// token usage reported by the API alongside the response, since the
// Item Recognizer needs it for cost tracking on each categorized line.
func (c *Client) ChatTextWithUsage(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int64) (string, Usage, error) {
	if model == "" {
		model = c.defaultModel
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		MaxTokens:   param.NewOpt[int64](maxTokens),
		Temperature: param.NewOpt[float64](temperature),
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("no choices in response")
	}

	usage := Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// ExtractJSON extracts JSON from LLM response (handles markdown code blocks)
func ExtractJSON(response string) string {
	// Try to find JSON in markdown code block
	if start := strings.Index(response, "```json"); start != -1 {
		start += 7
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	// Try to find JSON in generic code block
	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		// Skip language identifier if present
		if nl := strings.Index(response[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	// Try to find raw JSON object/array
	response = strings.TrimSpace(response)
	if (strings.HasPrefix(response, "{") && strings.HasSuffix(response, "}")) ||
		(strings.HasPrefix(response, "[") && strings.HasSuffix(response, "]")) {
		return response
	}

	return response
}
