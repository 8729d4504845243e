package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketplace-assistant/internal/config"
)

// ErrDisabled is returned when no completion endpoint is configured
var ErrDisabled = errors.New("llm client disabled")

// maxResponseBytes caps how much of a completion response is read
const maxResponseBytes = 1 << 20

// Message is one chat turn sent to the model
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// CompletionRequest is the conversation to complete
type CompletionRequest struct {
	Messages []Message
}

// Completion is the model's answer
type Completion struct {
	Content string
	Model   string
	Tokens  int
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Client talks to an OpenAI-compatible chat completions endpoint
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	enabled     bool
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates the completion client. It is disabled when turned off in
// configuration or when no API key is set.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	lc := cfg.LLM
	enabled := lc.Enabled && lc.APIKey != ""
	if lc.Enabled && !enabled {
		logger.Warn("llm enabled without an api key, open questions will get the fallback answer")
	}

	return &Client{
		baseURL:     strings.TrimSuffix(lc.BaseURL, "/"),
		apiKey:      lc.APIKey,
		model:       lc.Model,
		maxTokens:   lc.MaxTokens,
		temperature: lc.Temperature,
		enabled:     enabled,
		httpClient:  &http.Client{Timeout: lc.Timeout},
		logger:      logger,
	}
}

// Enabled reports whether Complete can reach a model
func (c *Client) Enabled() bool {
	return c.enabled
}

// Complete sends one completion request. There are no retries; the caller's
// circuit breaker decides when to stop calling.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if !c.enabled {
		return nil, ErrDisabled
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read completion response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode completion response (status %d): %w", resp.StatusCode, err)
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("llm api error: %s (type: %s, code: %s)",
			chatResp.Error.Message, chatResp.Error.Type, chatResp.Error.Code)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm api returned status %d", resp.StatusCode)
	}
	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return nil, errors.New("llm returned an empty completion")
	}

	model := chatResp.Model
	if model == "" {
		model = c.model
	}

	c.logger.Debug("completion received",
		zap.String("model", model),
		zap.Int("tokens", chatResp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))

	return &Completion{
		Content: strings.TrimSpace(chatResp.Choices[0].Message.Content),
		Model:   model,
		Tokens:  chatResp.Usage.TotalTokens,
	}, nil
}
