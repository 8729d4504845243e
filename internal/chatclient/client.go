package chatclient

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

	"marketplace-assistant/internal/models"
)

// ErrEmptyMessage is returned before any request is made for a blank message
var ErrEmptyMessage = errors.New("message is required")

// APIError is a non-200 answer from the chat endpoint
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api returned %d: %s", e.StatusCode, e.Message)
}

// Client asks the assistant, consulting the local cache first
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *LocalCache
	logger     *zap.Logger
}

// NewClient creates a client for the server at baseURL. cache may be nil.
func NewClient(baseURL string, timeout time.Duration, cache *LocalCache, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		logger:     logger,
	}
}

// Ask answers a message from the local cache or the server. Fallback
// answers are never cached.
func (c *Client) Ask(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	if c.cache != nil {
		resp, ok, err := c.cache.Get(ctx, req.Message, req.UserID)
		if err != nil {
			c.logger.Warn("local cache lookup failed", zap.Error(err))
		} else if ok {
			c.logger.Debug("answered from local cache", zap.String("source", string(resp.Source)))
			return resp, nil
		}
	}

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && resp.Source != models.SourceFallback && resp.Response != "" {
		if err := c.cache.Set(ctx, req.Message, req.UserID, resp); err != nil {
			c.logger.Warn("local cache write failed", zap.Error(err))
		}
	}

	return resp, nil
}

func (c *Client) post(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, &APIError{StatusCode: httpResp.StatusCode, Message: msg}
	}

	var resp models.ChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	return &resp, nil
}
