// internal/common/llm/client.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

var (
	ErrMissingCredentials = errors.New("llm api key not configured")
	ErrEmptyReply         = errors.New("llm returned no choices")
	ErrRateLimited        = errors.New("llm rate limiter rejected the call")
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Config describes an OpenAI-compatible chat completion endpoint.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	MaxTokens         int
	Temperature       float32
	RequestsPerSecond float64
}

// Client sends single-turn prompts to the configured model.
type Client struct {
	config  Config
	client  *openai.Client
	limiter *rate.Limiter
	logger  Logger
}

// NewClient builds a client. httpClient may be nil to use the SDK default.
func NewClient(cfg Config, httpClient openai.HTTPDoer, log Logger) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		config:  cfg,
		client:  openai.NewClientWithConfig(clientCfg),
		limiter: limiter,
		logger:  log,
	}
}

func (c *Client) Model() string {
	return c.config.Model
}

// Complete sends prompt as a user message and returns the first choice's
// content. The deadline of ctx bounds the whole call.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(c.config.APIKey) == "" {
		return "", ErrMissingCredentials
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn("LLM endpoint returned an error", map[string]interface{}{
				"model":      c.config.Model,
				"statusCode": apiErr.HTTPStatusCode,
				"message":    apiErr.Message,
			})
			return "", fmt.Errorf("llm status %d: %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("llm call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}

	c.logger.Debug("LLM call completed", map[string]interface{}{
		"model":        c.config.Model,
		"latencyMs":    time.Since(start).Milliseconds(),
		"finishReason": string(resp.Choices[0].FinishReason),
		"totalTokens":  resp.Usage.TotalTokens,
	})

	return resp.Choices[0].Message.Content, nil
}
