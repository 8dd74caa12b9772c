package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// Rate limiter defaults: 50 requests per minute with small bursts.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// Config holds configuration for the OpenAI-backed capability client.
type Config struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the chat completion model. Default: gpt-4o-mini.
	Model string
	// BaseURL overrides the API endpoint (optional).
	BaseURL string
	// Timeout bounds each completion call.
	Timeout time.Duration
}

// Client implements Classifier and Generator against the OpenAI chat API.
type Client struct {
	llm     *openai.LLM
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates an OpenAI-backed capability client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &Client{
		llm:     client,
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		timeout: timeout,
		logger:  logger,
	}, nil
}

// complete runs one system+user chat completion and returns the raw text.
func (c *Client) complete(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.llm.GenerateContent(ctx,
		chatMessages(system, prompt),
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedOutput)
	}
	return resp.Choices[0].Content, nil
}

// chatMessages builds the system+human message pair for a completion.
func chatMessages(system, prompt string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}
}

// completeJSON runs a completion and unmarshals the response into out.
func (c *Client) completeJSON(ctx context.Context, system, prompt string, maxTokens int, out any) error {
	content, err := c.complete(ctx, system, prompt, 0.3, maxTokens)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(cleanJSONResponse(content)), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// cleanJSONResponse strips markdown fences and surrounding prose that models
// sometimes wrap around JSON.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Fall back to the outermost braces when prose surrounds the object.
	if !strings.HasPrefix(content, "{") {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start >= 0 && end > start {
			content = content[start : end+1]
		}
	}
	return content
}

// DetectTopic classifies text into a short topic label, keeping only high or
// medium confidence results.
func (c *Client) DetectTopic(ctx context.Context, text string) (string, error) {
	var result struct {
		Topic      string `json:"topic"`
		Confidence string `json:"confidence"`
		Reasoning  string `json:"reasoning"`
	}
	if err := c.completeJSON(ctx, topicSystemPrompt, topicPrompt(text), 150, &result); err != nil {
		return "", err
	}
	if result.Topic == "" || result.Topic == "null" {
		return "", nil
	}
	switch result.Confidence {
	case "high", "medium":
		return result.Topic, nil
	}
	return "", nil
}

// DetectRejections extracts rejected product phrases from the conversation.
func (c *Client) DetectRejections(ctx context.Context, text string) ([]string, error) {
	var result struct {
		RejectedProducts []string `json:"rejected_products"`
		Reasoning        string   `json:"reasoning"`
	}
	if err := c.completeJSON(ctx, rejectionSystemPrompt, rejectionPrompt(text), 200, &result); err != nil {
		return nil, err
	}
	return result.RejectedProducts, nil
}

// ShouldSuggest decides whether a suggestion is contextually appropriate.
func (c *Client) ShouldSuggest(ctx context.Context, text, topic string) (bool, error) {
	var result struct {
		ShouldSuggest bool   `json:"should_suggest"`
		Reasoning     string `json:"reasoning"`
	}
	if err := c.completeJSON(ctx, gateSystemPrompt, gatePrompt(text, topic), 200, &result); err != nil {
		return false, err
	}
	c.logger.Debug("suggestion gate decision",
		zap.Bool("should_suggest", result.ShouldSuggest),
		zap.String("reasoning", result.Reasoning),
	)
	return result.ShouldSuggest, nil
}

// ExpandQuery enhances cleaned context into a richer search string and a
// coarse product type.
func (c *Client) ExpandQuery(ctx context.Context, text, topic string, rejected []string) (QueryExpansion, error) {
	var result struct {
		ProductType string `json:"product_type"`
		Reasoning   string `json:"reasoning"`
		SearchQuery string `json:"search_query"`
	}
	if err := c.completeJSON(ctx, expandSystemPrompt, expandPrompt(text, topic, rejected), 250, &result); err != nil {
		return QueryExpansion{}, err
	}
	if result.SearchQuery == "" {
		result.SearchQuery = text
	}
	if result.ProductType == "" {
		result.ProductType = "unknown"
	}
	return QueryExpansion{SearchQuery: result.SearchQuery, ProductType: result.ProductType}, nil
}

// SuggestionText generates conversational suggestion text for a product.
// Wrapping quote characters are stripped from the result.
func (c *Client) SuggestionText(ctx context.Context, input GenerationInput) (string, error) {
	// Higher temperature for natural variation.
	content, err := c.complete(ctx, generateSystemPrompt, generatePrompt(input), 0.7, 150)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(content)
	text = stripWrappingQuotes(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty suggestion text", ErrMalformedOutput)
	}
	return text, nil
}

// stripWrappingQuotes removes one pair of matching wrapping quotes.
func stripWrappingQuotes(s string) string {
	for _, q := range []string{`"`, `'`} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[1 : len(s)-1]
		}
	}
	return s
}
