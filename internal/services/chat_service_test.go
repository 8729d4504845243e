package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketplace-assistant/internal/breaker"
	"marketplace-assistant/internal/config"
	"marketplace-assistant/internal/faq"
	"marketplace-assistant/internal/llm"
	"marketplace-assistant/internal/models"
)

// MockResponseCache is a mock implementation of the response cache
type MockResponseCache struct {
	mock.Mock
}

func (m *MockResponseCache) Get(ctx context.Context, query, userID string) (*models.CachedResponse, error) {
	args := m.Called(ctx, query, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CachedResponse), args.Error(1)
}

func (m *MockResponseCache) Put(ctx context.Context, entry *models.CachedResponse) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockCompletionClient is a mock implementation of the language model client
type MockCompletionClient struct {
	mock.Mock
}

func (m *MockCompletionClient) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *MockCompletionClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Completion), args.Error(1)
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.ChatEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e *models.ChatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func testChatConfig() *config.Config {
	return &config.Config{
		Chat: config.ChatConfig{HistoryLimit: 2, PersistTimeout: time.Second, MaxMessageSize: 100},
		LLM:  config.LLMConfig{SystemPrompt: "be helpful"},
	}
}

type chatFixture struct {
	svc       *ChatService
	cache     *MockResponseCache
	llm       *MockCompletionClient
	breaker   *breaker.Breaker
	clock     *fakeClock
	publisher *recordingPublisher
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	matcher, err := faq.NewDefaultMatcher(zap.NewNop())
	require.NoError(t, err)

	f := &chatFixture{
		cache:     new(MockResponseCache),
		llm:       new(MockCompletionClient),
		clock:     &fakeClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)},
		publisher: &recordingPublisher{},
	}
	f.breaker = breaker.New(breaker.Settings{FailureThreshold: 3, Cooldown: time.Minute, Clock: f.clock})
	f.svc = NewChatServiceWith(testChatConfig(), ChatDeps{
		Cache:     f.cache,
		Matcher:   matcher,
		LLM:       f.llm,
		Breaker:   f.breaker,
		Publisher: f.publisher,
	}, zap.NewNop())
	return f
}

func TestHandleChatValidation(t *testing.T) {
	f := newChatFixture(t)

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.HandleChat(context.Background(), &models.ChatRequest{Message: msg})
		assert.ErrorIs(t, err, ErrMessageRequired)
	}

	_, err := f.svc.HandleChat(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMessageRequired)

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	_, err = f.svc.HandleChat(context.Background(), &models.ChatRequest{Message: string(long)})
	assert.ErrorIs(t, err, ErrMessageTooLong)

	f.cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleChatRuleMatch(t *testing.T) {
	f := newChatFixture(t)

	f.cache.On("Get", mock.Anything, "hi", "").Return(nil, nil)
	f.cache.On("Put", mock.Anything, mock.MatchedBy(func(e *models.CachedResponse) bool {
		return e.Query == "hi" && e.UserScope == "" && e.Model == models.RuleModel && e.Source == models.SourceRule
	})).Return(nil)

	resp, err := f.svc.HandleChat(context.Background(), &models.ChatRequest{Message: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceRule, resp.Source)
	assert.False(t, resp.Cached)
	assert.Contains(t, resp.Response, "Hello")
	assert.GreaterOrEqual(t, len(resp.Response), 30)

	f.svc.Wait()
	f.cache.AssertExpectations(t)
	f.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestHandleChatRuleMatchStoredGlobally(t *testing.T) {
	f := newChatFixture(t)

	f.cache.On("Get", mock.Anything, "what is your return policy?", "user-1").Return(nil, nil)
	f.cache.On("Put", mock.Anything, mock.MatchedBy(func(e *models.CachedResponse) bool {
		return e.UserScope == ""
	})).Return(nil)

	resp, err := f.svc.HandleChat(context.Background(), &models.ChatRequest{Message: "What is your return policy?", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceRule, resp.Source)
	assert.Contains(t, resp.Response, "30 days")

	f.svc.Wait()
	f.cache.AssertExpectations(t)
}

func TestHandleChatPrecomputedHit(t *testing.T) {
	f := newChatFixture(t)

	f.cache.On("Get", mock.Anything, "hi", "").Return(&models.CachedResponse{
		Response: "Hello from cache",
		Source:   models.SourceRule,
		Model:    models.RuleModel,
	}, nil)

	resp, err := f.svc.HandleChat(context.Background(), &models.ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, models.SourcePrecomputed, resp.Source)
	assert.True(t, resp.Cached)
	assert.Equal(t, "Hello from cache", resp.Response)

	f.svc.Wait()
	f.cache.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestHandleChatCachedAIAnswer(t *testing.T) {
	f := newChatFixture(t)

	f.cache.On("Get", mock.Anything, "which helmet fits best?", "user-1").Return(&models.CachedResponse{
		Response: "Try a medium.",
		Source:   models.SourceAI,
		Model:    "gpt-4o-mini",
		Tokens:   21,
	}, nil)

	resp, err := f.svc.HandleChat(context.Background(), &models.ChatRequest{Message: "Which helmet fits best?", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceCache, resp.Source)
	assert.True(t, resp.Cached)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, 21, resp.Tokens)
	f.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestHandleChatCacheErrorFallsThroughToRules(t *testing.T) {
	f := newChatFixture(t)

	f.cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	f.cache.On("Put", mock.Anything, mock.Anything).Return(errors.New("db down"))

	resp, err := f.svc.HandleChat(context.Background(), &models.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceRule, resp.Source)
	f.svc.Wait()
}

func TestHandleChatLLMSuccess(t *testing.T) {
	f := newChatFixture(t)

	f.cache.On("Get", mock.Anything, "what should i wear to a karting day?", "user-1").Return(nil, nil)
	f.llm.On("Enabled").Return(true)
	f.llm.On("Complete", mock.Anything, mock.Anything).Return(&llm.Completion{
		Content: "A fire-rated suit and gloves.",
		Model:   "gpt-4o-mini",
		Tokens:  37,
	}, nil)
	f.cache.On("Put", mock.Anything, mock.MatchedBy(func(e *models.CachedResponse) bool {
		return e.UserScope == "user-1" && e.Source == models.SourceAI && e.Tokens == 37
	})).Return(nil)

	resp, err := f.svc.HandleChat(context.Background(), &models.ChatRequest{
		Message: "What should I wear to a karting day?",
		UserID:  "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SourceAI, resp.Source)
	assert.False(t, resp.Cached)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, 37, resp.Tokens)

	f.svc.Wait()
	f.cache.AssertExpectations(t)
	assert.Equal(t, breaker.StateClosed, f.breaker.State())
}

func TestHandleChatLLMFailureReturnsFallback(t *testing.T) {
	f := newChatFixture(t)

	f.cache.On("Get", mock.Anything, "asdkjfh alksdjf", "").Return(nil, nil)
	f.llm.On("Enabled").Return(true)
	f.llm.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("upstream 502"))

	resp, err := f.svc.HandleChat(context.Background(), &models.ChatRequest{Message: "asdkjfh alksdjf"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceFallback, resp.Source)
	assert.Equal(t, ErrorResponse, resp.Response)
	assert.NotEmpty(t, resp.Response)

	f.svc.Wait()
	f.cache.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.breaker.Snapshot().ConsecutiveFailures)
}

func TestHandleChatBreakerOpensAfterRepeatedFailures(t *testing.T) {
	f := newChatFixture(t)

	f.cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.llm.On("Enabled").Return(true)
	f.llm.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	req := &models.ChatRequest{Message: "asdkjfh alksdjf"}
	for i := 0; i < 3; i++ {
		resp, err := f.svc.HandleChat(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, ErrorResponse, resp.Response)
	}
	assert.Equal(t, breaker.StateOpen, f.breaker.State())

	// open: no remote call, degraded answer
	resp, err := f.svc.HandleChat(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.SourceFallback, resp.Source)
	assert.Equal(t, DegradedResponse, resp.Response)
	f.llm.AssertNumberOfCalls(t, "Complete", 3)

	// after the cooldown a single trial goes through and closes the breaker
	f.clock.now = f.clock.now.Add(time.Minute)
	f.llm.ExpectedCalls = nil
	f.llm.On("Enabled").Return(true)
	f.llm.On("Complete", mock.Anything, mock.Anything).Return(&llm.Completion{Content: "ok", Model: "m"}, nil)
	f.cache.On("Put", mock.Anything, mock.Anything).Return(nil)

	resp, err = f.svc.HandleChat(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.SourceAI, resp.Source)
	assert.Equal(t, breaker.StateClosed, f.breaker.State())
	f.svc.Wait()
}

func TestHandleChatLLMDisabled(t *testing.T) {
	f := newChatFixture(t)

	f.cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.llm.On("Enabled").Return(false)

	resp, err := f.svc.HandleChat(context.Background(), &models.ChatRequest{Message: "asdkjfh alksdjf"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceFallback, resp.Source)
	assert.Equal(t, DegradedResponse, resp.Response)
	assert.NotEmpty(t, resp.Actions)
	f.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestBuildMessages(t *testing.T) {
	f := newChatFixture(t)

	msgs := f.svc.buildMessages(&models.ChatRequest{
		Message: "  and the blue one? ",
		ConversationHistory: []models.ConversationMessage{
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "second"},
			{Role: "system", Content: "ignored"},
			{Role: "user", Content: "third"},
		},
		Context: &models.ChatContext{Page: "shop"},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "be helpful")
	assert.Contains(t, msgs[0].Content, `"shop"`)
	// history limit 2 keeps the last two turns, the system turn is dropped
	assert.Equal(t, "third", msgs[1].Content)
	assert.Equal(t, llm.Message{Role: "user", Content: "and the blue one?"}, msgs[2])
}

func TestHandleChatPublishesEvent(t *testing.T) {
	f := newChatFixture(t)

	f.cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.cache.On("Put", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.HandleChat(context.Background(), &models.ChatRequest{Message: "thanks!", UserID: "user-9"})
	require.NoError(t, err)
	f.svc.Wait()

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, "user-9", f.publisher.events[0].UserID)
	assert.Equal(t, models.SourceRule, f.publisher.events[0].Source)
}

func TestHandleChatCallerCancellationLeavesBreakerClosed(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
		w.Write([]byte(`{"model":"m","choices":[{"message":{"role":"assistant","content":"late"}}]}`))
	}))
	defer upstream.Close()

	matcher, err := faq.NewDefaultMatcher(zap.NewNop())
	require.NoError(t, err)
	cache := new(MockResponseCache)
	cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	cfg := testChatConfig()
	cfg.LLM = config.LLMConfig{Enabled: true, BaseURL: upstream.URL, APIKey: "k", Model: "m", Timeout: 2 * time.Second}
	cb := breaker.New(breaker.Settings{FailureThreshold: 3, Cooldown: time.Minute})
	svc := NewChatServiceWith(cfg, ChatDeps{
		Cache:   cache,
		Matcher: matcher,
		LLM:     llm.NewClient(cfg, zap.NewNop()),
		Breaker: cb,
	}, zap.NewNop())

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		resp, err := svc.HandleChat(ctx, &models.ChatRequest{Message: "asdkjfh alksdjf"})
		cancel()
		require.NoError(t, err)
		assert.Equal(t, models.SourceFallback, resp.Source)
	}
	svc.Wait()

	assert.Equal(t, breaker.StateClosed, cb.State())
	assert.Equal(t, 0, cb.Snapshot().ConsecutiveFailures)
}

func TestHandleChatCancelledHalfOpenTrialIsReleased(t *testing.T) {
	f := newChatFixture(t)

	f.cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.llm.On("Enabled").Return(true)
	f.llm.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("upstream 503")).Times(3)

	req := &models.ChatRequest{Message: "asdkjfh alksdjf"}
	for i := 0; i < 3; i++ {
		_, err := f.svc.HandleChat(context.Background(), req)
		require.NoError(t, err)
	}
	require.Equal(t, breaker.StateOpen, f.breaker.State())

	f.clock.now = f.clock.now.Add(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.llm.On("Complete", mock.Anything, mock.Anything).Return(nil, context.Canceled).Once()

	resp, err := f.svc.HandleChat(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.SourceFallback, resp.Source)

	// the trial slot is free again and the breaker did not re-trip
	assert.Equal(t, breaker.StateHalfOpen, f.breaker.State())
	assert.True(t, f.breaker.Allow())
	f.svc.Wait()
}

// memoryCache keeps answers by query and scope, like the two-tier cache
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*models.CachedResponse
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*models.CachedResponse)}
}

func (c *memoryCache) Get(_ context.Context, query, userID string) (*models.CachedResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	scopes := []string{""}
	if userID != "" {
		scopes = []string{userID, ""}
	}
	for _, scope := range scopes {
		if e, ok := c.entries[scope+"|"+faq.HashQuery(query)]; ok {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (c *memoryCache) Put(_ context.Context, entry *models.CachedResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *entry
	c.entries[entry.UserScope+"|"+faq.HashQuery(entry.Query)] = &cp
	return nil
}

func TestHandleChatRepeatedQueryServedFromCache(t *testing.T) {
	matcher, err := faq.NewDefaultMatcher(zap.NewNop())
	require.NoError(t, err)

	completions := new(MockCompletionClient)
	completions.On("Enabled").Return(true)
	completions.On("Complete", mock.Anything, mock.Anything).Return(&llm.Completion{
		Content: "Bring a helmet and closed shoes.",
		Model:   "gpt-4o-mini",
		Tokens:  12,
	}, nil).Once()

	svc := NewChatServiceWith(testChatConfig(), ChatDeps{
		Cache:   newMemoryCache(),
		Matcher: matcher,
		LLM:     completions,
		Breaker: breaker.New(breaker.Settings{}),
	}, zap.NewNop())

	req := &models.ChatRequest{Message: "What should I bring to a karting day?", UserID: "user-1"}

	first, err := svc.HandleChat(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.SourceAI, first.Source)
	assert.False(t, first.Cached)
	svc.Wait()

	for i := 0; i < 2; i++ {
		again, err := svc.HandleChat(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, models.SourceCache, again.Source)
		assert.True(t, again.Cached)
		assert.Equal(t, first.Response, again.Response)
		assert.Equal(t, "gpt-4o-mini", again.Model)
	}

	completions.AssertNumberOfCalls(t, "Complete", 1)
}
