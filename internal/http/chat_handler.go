package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"silvery-chat/internal/llm"
	"silvery-chat/internal/service"
)

// ChatStreamer es el contrato del orquestador de turnos que consume este
// handler.
type ChatStreamer interface {
	StreamTurn(
		ctx context.Context,
		userID string,
		conversationID string,
		history []llm.Message,
		onStart func(conversationID string),
		onChunk func([]byte) error,
	) (string, error)
}

// ChatHandler expone el endpoint de streaming de chat.
type ChatHandler struct {
	logger *zap.Logger
	chat   ChatStreamer
}

func NewChatHandler(logger *zap.Logger, chat ChatStreamer) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{logger: logger, chat: chat}
}

type chatRequest struct {
	Messages []llm.Message `json:"messages" binding:"required"`
	ChatID   string        `json:"chatId"`
}

// StreamChat maneja POST /chat: reenvía el stream SSE del proveedor y expone
// el id de conversación resuelto en el header X-Chat-Id.
func (h *ChatHandler) StreamChat(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	streamed := false
	_, err := h.chat.StreamTurn(c.Request.Context(), claims.UserID, req.ChatID, req.Messages,
		func(conversationID string) {
			c.Header("X-Chat-Id", conversationID)
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
		},
		func(chunk []byte) error {
			streamed = true
			if _, err := c.Writer.Write(chunk); err != nil {
				return err
			}
			c.Writer.Flush()
			return nil
		},
	)
	if err != nil {
		h.handleTurnError(c, err, streamed)
	}
}

// handleTurnError traduce errores del turno a status codes. Una vez que hubo
// bytes en el wire ya no se puede cambiar el status: solo se loguea.
func (h *ChatHandler) handleTurnError(c *gin.Context, err error, streamed bool) {
	if errors.Is(err, context.Canceled) {
		// Cliente desconectado a mitad del stream; nada que responder.
		return
	}
	if errors.Is(err, service.ErrAssistantNotPersisted) {
		// El texto ya llegó al cliente; la falla de persistencia es soft.
		h.logger.Warn("assistant reply streamed but not persisted", zap.Error(err))
		return
	}
	if streamed {
		h.logger.Error("chat turn failed mid-stream", zap.Error(err))
		return
	}

	switch {
	case errors.Is(err, service.ErrChatInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, service.ErrQuotaExceeded):
		c.JSON(http.StatusForbidden, gin.H{"error": "Free message limit reached. Redeem a code to keep chatting."})
	case errors.Is(err, service.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
	case errors.Is(err, llm.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please wait a moment and try again."})
	case errors.Is(err, llm.ErrServiceUnavailable):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Service temporarily unavailable. Please try again later."})
	case errors.Is(err, llm.ErrUpstream):
		h.logger.Error("upstream error", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Something went wrong. Please try again."})
	default:
		h.logger.Error("chat turn failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
	}
}
