package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketplace-assistant/internal/breaker"
	"marketplace-assistant/internal/config"
	"marketplace-assistant/internal/faq"
	"marketplace-assistant/internal/llm"
	"marketplace-assistant/internal/models"
	"marketplace-assistant/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockChatAnswerer is a mock implementation of the chat service
type MockChatAnswerer struct {
	mock.Mock
}

func (m *MockChatAnswerer) HandleChat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatResponse), args.Error(1)
}

func setupChatRouter(chat ChatAnswerer) *gin.Engine {
	router := gin.New()
	h := NewChatHandler(chat, 1<<20, zap.NewNop())
	router.POST("/api/v1/chat", h.Chat)
	return router
}

func postChat(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatHandler_Success(t *testing.T) {
	chat := new(MockChatAnswerer)
	router := setupChatRouter(chat)

	chat.On("HandleChat", mock.Anything, mock.MatchedBy(func(r *models.ChatRequest) bool {
		return r.Message == "Hi" && r.UserID == "user-1" && len(r.ConversationHistory) == 1 && r.Context.Page == "shop"
	})).Return(&models.ChatResponse{
		Response: "Hello! I'm your marketplace assistant.",
		Source:   models.SourceRule,
	}, nil)

	w := postChat(router, `{"message":"Hi","userId":"user-1","conversationHistory":[{"role":"user","content":"earlier"}],"context":{"page":"shop"}}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rule", resp["source"])
	assert.Equal(t, false, resp["cached"])
	assert.NotEmpty(t, resp["response"])

	chat.AssertExpectations(t)
}

func TestChatHandler_EmptyMessage(t *testing.T) {
	chat := new(MockChatAnswerer)
	router := setupChatRouter(chat)

	chat.On("HandleChat", mock.Anything, mock.Anything).Return(nil, services.ErrMessageRequired)

	w := postChat(router, `{"message":""}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Message is required"}`, w.Body.String())
}

func TestChatHandler_MalformedJSON(t *testing.T) {
	chat := new(MockChatAnswerer)
	router := setupChatRouter(chat)

	w := postChat(router, `{"message":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Message is required"}`, w.Body.String())
	chat.AssertNotCalled(t, "HandleChat", mock.Anything, mock.Anything)
}

func TestChatHandler_UnexpectedError(t *testing.T) {
	chat := new(MockChatAnswerer)
	router := setupChatRouter(chat)

	chat.On("HandleChat", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	w := postChat(router, `{"message":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// failingCompletion always fails like an unreachable upstream
type failingCompletion struct{}

func (failingCompletion) Enabled() bool { return true }
func (failingCompletion) Complete(context.Context, llm.CompletionRequest) (*llm.Completion, error) {
	return nil, errors.New("upstream unavailable")
}

// missCache never has an answer and accepts every write
type missCache struct{}

func (missCache) Get(context.Context, string, string) (*models.CachedResponse, error) { return nil, nil }
func (missCache) Put(context.Context, *models.CachedResponse) error                 { return nil }

func newPipelineRouter(t *testing.T) (*gin.Engine, *services.ChatService) {
	t.Helper()
	matcher, err := faq.NewDefaultMatcher(zap.NewNop())
	require.NoError(t, err)

	cfg := &config.Config{Chat: config.ChatConfig{HistoryLimit: 10, PersistTimeout: time.Second}}
	svc := services.NewChatServiceWith(cfg, services.ChatDeps{
		Cache:   missCache{},
		Matcher: matcher,
		LLM:     failingCompletion{},
		Breaker: breaker.New(breaker.Settings{}),
	}, zap.NewNop())

	return setupChatRouter(svc), svc
}

func TestChatPipeline_GreetingFromRules(t *testing.T) {
	router, svc := newPipelineRouter(t)
	defer svc.Wait()

	w := postChat(router, `{"message":"Hi"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.SourceRule, resp.Source)
	assert.GreaterOrEqual(t, len(resp.Response), 30)
}

func TestChatPipeline_UnmatchedWithFailingLLM(t *testing.T) {
	router, svc := newPipelineRouter(t)
	defer svc.Wait()

	w := postChat(router, `{"message":"asdkjfh alksdjf"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Response)
	assert.Equal(t, models.SourceFallback, resp.Source)
}

func TestChatPipeline_EmptyMessage(t *testing.T) {
	router, svc := newPipelineRouter(t)
	defer svc.Wait()

	body, _ := json.Marshal(map[string]string{"message": ""})
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Message is required"}`, w.Body.String())
}
