package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace-assistant/internal/breaker"
	"marketplace-assistant/internal/cache"
	"marketplace-assistant/internal/config"
	"marketplace-assistant/internal/events"
	"marketplace-assistant/internal/faq"
	"marketplace-assistant/internal/llm"
	"marketplace-assistant/internal/metrics"
	"marketplace-assistant/internal/models"
)

var (
	ErrMessageRequired = errors.New("Message is required")
	ErrMessageTooLong  = errors.New("Message is too long")
)

const (
	// DegradedResponse is returned while the language model is unavailable
	DegradedResponse = "I can help with orders, returns, shipping, payments, vehicles, service bookings, " +
		"events and sim racing. I can't answer open questions right now, so please try rephrasing " +
		"or visit the Help Center."
	// ErrorResponse is returned when a language model call fails
	ErrorResponse = "I'm sorry, I encountered an error while answering that. " +
		"Please try again in a moment or contact Support."
)

var fallbackActions = []models.ActionButton{
	{Label: "Help Center", URL: "/help"},
	{Label: "Contact Support", URL: "/support"},
}

// ResponseCache is the server-side answer cache
type ResponseCache interface {
	Get(ctx context.Context, query, userID string) (*models.CachedResponse, error)
	Put(ctx context.Context, entry *models.CachedResponse) error
}

// RuleMatcher answers known questions without a model call
type RuleMatcher interface {
	Match(query string) (*faq.Match, bool)
}

// CompletionClient calls the language model
type CompletionClient interface {
	Enabled() bool
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error)
}

// CircuitBreaker guards the language model
type CircuitBreaker interface {
	Allow() bool
	RecordSuccess()
	RecordFailure()
	Release()
}

// ChatService answers chat messages: cache, then rules, then the language
// model, degrading to a canned answer whenever the model can't be used.
type ChatService struct {
	cache     ResponseCache
	matcher   RuleMatcher
	llm       CompletionClient
	breaker   CircuitBreaker
	publisher events.Publisher
	metrics   *metrics.MetricsCollector
	logger    *zap.Logger

	systemPrompt   string
	historyLimit   int
	maxMessageSize int
	persistTimeout time.Duration

	wg sync.WaitGroup
}

// ChatDeps are the collaborators of a ChatService. Publisher and Metrics may be nil.
type ChatDeps struct {
	Cache     ResponseCache
	Matcher   RuleMatcher
	LLM       CompletionClient
	Breaker   CircuitBreaker
	Publisher events.Publisher
	Metrics   *metrics.MetricsCollector
}

// NewChatService creates the chat service for dependency injection
func NewChatService(
	cfg *config.Config,
	cacheService *cache.CacheService,
	matcher *faq.Matcher,
	client *llm.Client,
	cb *breaker.Breaker,
	publisher events.Publisher,
	metricsCollector *metrics.MetricsCollector,
	logger *zap.Logger,
) *ChatService {
	s := NewChatServiceWith(cfg, ChatDeps{
		Cache:     cacheService,
		Matcher:   matcher,
		LLM:       client,
		Breaker:   cb,
		Publisher: publisher,
		Metrics:   metricsCollector,
	}, logger)

	logger.Info("chat service initialized",
		zap.Bool("llm_enabled", client.Enabled()),
		zap.Int("history_limit", s.historyLimit),
		zap.Duration("response_ttl", cfg.Chat.ResponseTTL))

	return s
}

// NewChatServiceWith creates a chat service from explicit collaborators
func NewChatServiceWith(cfg *config.Config, deps ChatDeps, logger *zap.Logger) *ChatService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	persistTimeout := cfg.Chat.PersistTimeout
	if persistTimeout <= 0 {
		persistTimeout = 5 * time.Second
	}
	prompt := cfg.LLM.SystemPrompt
	if prompt == "" {
		prompt = config.DefaultSystemPrompt
	}

	return &ChatService{
		cache:          deps.Cache,
		matcher:        deps.Matcher,
		llm:            deps.LLM,
		breaker:        deps.Breaker,
		publisher:      publisher,
		metrics:        deps.Metrics,
		logger:         logger,
		systemPrompt:   prompt,
		historyLimit:   cfg.Chat.HistoryLimit,
		maxMessageSize: cfg.Chat.MaxMessageSize,
		persistTimeout: persistTimeout,
	}
}

// HandleChat answers one chat message. Only validation failures return an
// error; every other failure degrades to a fallback answer.
func (s *ChatService) HandleChat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return nil, ErrMessageRequired
	}
	if s.maxMessageSize > 0 && len(req.Message) > s.maxMessageSize {
		return nil, ErrMessageTooLong
	}

	start := time.Now()
	query := faq.Normalize(req.Message)

	resp := s.answer(ctx, req, query)

	elapsed := time.Since(start)
	s.metrics.RecordChatResponse(string(resp.Source), resp.Cached, elapsed)
	s.publish(req, query, resp, elapsed)

	s.logger.Debug("chat request answered",
		zap.String("source", string(resp.Source)),
		zap.Bool("cached", resp.Cached),
		zap.Duration("duration", elapsed))

	return resp, nil
}

func (s *ChatService) answer(ctx context.Context, req *models.ChatRequest, query string) *models.ChatResponse {
	// 1. cache
	entry, err := s.cache.Get(ctx, query, req.UserID)
	if err != nil {
		s.logger.Warn("response cache unavailable", zap.Error(err))
	} else if entry != nil {
		return s.fromCache(query, entry)
	}

	// 2. rules
	if match, ok := s.matcher.Match(query); ok {
		s.persist(&models.CachedResponse{
			UserScope: cache.GlobalScope,
			Query:     query,
			Response:  match.Response,
			Source:    models.SourceRule,
			Model:     models.RuleModel,
		})
		return &models.ChatResponse{
			Response: match.Response,
			Source:   models.SourceRule,
			Actions:  match.Actions,
		}
	}

	// 3. breaker
	if !s.llm.Enabled() || !s.breaker.Allow() {
		return &models.ChatResponse{
			Response: DegradedResponse,
			Source:   models.SourceFallback,
			Actions:  fallbackActions,
		}
	}

	// 4. language model
	start := time.Now()
	completion, err := s.llm.Complete(ctx, llm.CompletionRequest{Messages: s.buildMessages(req)})
	if err != nil {
		if ctx.Err() != nil {
			// the caller went away; says nothing about the upstream
			s.breaker.Release()
			s.metrics.RecordLLMRequest("cancelled", 0, time.Since(start))
			s.logger.Info("llm request cancelled by caller", zap.Error(ctx.Err()))
		} else {
			s.breaker.RecordFailure()
			s.metrics.RecordLLMRequest("error", 0, time.Since(start))
			s.logger.Error("llm request failed", zap.Error(err))
		}
		return &models.ChatResponse{
			Response: ErrorResponse,
			Source:   models.SourceFallback,
			Actions:  fallbackActions,
		}
	}

	s.breaker.RecordSuccess()
	s.metrics.RecordLLMRequest("success", completion.Tokens, time.Since(start))

	s.persist(&models.CachedResponse{
		UserScope: req.UserID,
		Query:     query,
		Response:  completion.Content,
		Source:    models.SourceAI,
		Model:     completion.Model,
		Tokens:    completion.Tokens,
	})

	return &models.ChatResponse{
		Response: completion.Content,
		Source:   models.SourceAI,
		Model:    completion.Model,
		Tokens:   completion.Tokens,
	}
}

func (s *ChatService) fromCache(query string, entry *models.CachedResponse) *models.ChatResponse {
	if entry.IsRuleGenerated() {
		resp := &models.ChatResponse{
			Response: entry.Response,
			Source:   models.SourcePrecomputed,
			Cached:   true,
		}
		// action buttons are not stored with the answer
		if match, ok := s.matcher.Match(query); ok {
			resp.Actions = match.Actions
		}
		return resp
	}

	return &models.ChatResponse{
		Response: entry.Response,
		Source:   models.SourceCache,
		Cached:   true,
		Model:    entry.Model,
		Tokens:   entry.Tokens,
	}
}

// buildMessages assembles the system prompt, page context, the most recent
// history turns and the new message.
func (s *ChatService) buildMessages(req *models.ChatRequest) []llm.Message {
	system := s.systemPrompt
	if req.Context != nil && req.Context.Page != "" {
		system += fmt.Sprintf("\nThe user is currently viewing the %q page.", req.Context.Page)
	}

	history := req.ConversationHistory
	if s.historyLimit > 0 && len(history) > s.historyLimit {
		history = history[len(history)-s.historyLimit:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	for _, h := range history {
		if h.Role != "user" && h.Role != "assistant" {
			continue
		}
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: strings.TrimSpace(req.Message)})

	return messages
}

func (s *ChatService) persist(entry *models.CachedResponse) {
	s.background(func(ctx context.Context) {
		if err := s.cache.Put(ctx, entry); err != nil {
			s.logger.Warn("failed to cache chat response",
				zap.Error(err),
				zap.String("source", string(entry.Source)))
		}
	})
}

func (s *ChatService) publish(req *models.ChatRequest, query string, resp *models.ChatResponse, elapsed time.Duration) {
	event := &models.ChatEvent{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Query:     query,
		Source:    resp.Source,
		Cached:    resp.Cached,
		Model:     resp.Model,
		Tokens:    resp.Tokens,
		LatencyMS: elapsed.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}

	s.background(func(ctx context.Context) {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish chat event", zap.Error(err))
		}
	})
}

func (s *ChatService) background(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until background cache writes and event publishes finish
func (s *ChatService) Wait() {
	s.wg.Wait()
}
