package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-assistant/internal/models"
	"marketplace-assistant/internal/services"
)

// ChatAnswerer answers chat messages
type ChatAnswerer interface {
	HandleChat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)
}

// ChatHandler handles HTTP requests for the chat assistant
type ChatHandler struct {
	chat           ChatAnswerer
	maxRequestSize int64
	logger         *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat ChatAnswerer, maxRequestSize int64, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:           chat,
		maxRequestSize: maxRequestSize,
		logger:         logger,
	}
}

// Chat answers one message
// POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	if h.maxRequestSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestSize)
	}

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid chat request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": services.ErrMessageRequired.Error()})
		return
	}

	resp, err := h.chat.HandleChat(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrMessageRequired) || errors.Is(err, services.ErrMessageTooLong) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("chat request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
