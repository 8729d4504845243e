package models

import (
	"time"

	"github.com/google/uuid"
)

// ResponseSource identifies which tier of the chat pipeline produced an answer
type ResponseSource string

const (
	SourceRule        ResponseSource = "rule"
	SourcePrecomputed ResponseSource = "precomputed"
	SourceCache       ResponseSource = "cache"
	SourceAI          ResponseSource = "ai"
	SourceFallback    ResponseSource = "fallback"
)

// RuleModel is stored in the model column of cache entries produced by the rule engine.
const RuleModel = "rule"

// ConversationMessage is one prior turn supplied by the client
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatContext carries optional page and user context from the client
type ChatContext struct {
	Page string                 `json:"page,omitempty"`
	User map[string]interface{} `json:"user,omitempty"`
}

// ChatRequest is the body of POST /api/v1/chat
type ChatRequest struct {
	Message             string                `json:"message"`
	ConversationHistory []ConversationMessage `json:"conversationHistory,omitempty"`
	UserID              string                `json:"userId,omitempty"`
	Context             *ChatContext          `json:"context,omitempty"`
}

// ActionButton is a suggested navigation target shown under an answer
type ActionButton struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// ChatResponse is returned for every accepted chat request
type ChatResponse struct {
	Response string         `json:"response"`
	Source   ResponseSource `json:"source"`
	Cached   bool           `json:"cached"`
	Model    string         `json:"model,omitempty"`
	Tokens   int            `json:"tokens,omitempty"`
	Actions  []ActionButton `json:"actions,omitempty"`
}

// CachedResponse is a persisted answer keyed by normalized query hash and user scope
type CachedResponse struct {
	QueryHash string         `json:"query_hash" db:"query_hash"`
	UserScope string         `json:"user_scope" db:"user_scope"`
	Query     string         `json:"query" db:"query"`
	Response  string         `json:"response" db:"response"`
	Source    ResponseSource `json:"source" db:"source"`
	Model     string         `json:"model,omitempty" db:"model"`
	Tokens    int            `json:"tokens,omitempty" db:"tokens"`
	HitCount  int64          `json:"hit_count" db:"hit_count"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// CacheKey identifies one persisted answer
type CacheKey struct {
	QueryHash string `json:"query_hash" db:"query_hash"`
	UserScope string `json:"user_scope" db:"user_scope"`
}

// IsRuleGenerated reports whether the entry was written by the rule engine
func (c *CachedResponse) IsRuleGenerated() bool {
	return c.Model == RuleModel || c.Source == SourceRule
}

// ChatEvent is published after every answered chat request
type ChatEvent struct {
	ID        uuid.UUID      `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Query     string         `json:"query"`
	Source    ResponseSource `json:"source"`
	Cached    bool           `json:"cached"`
	Model     string         `json:"model,omitempty"`
	Tokens    int            `json:"tokens,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
	Timestamp time.Time      `json:"timestamp"`
}
