package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"silvery-chat/internal/domain"
	"silvery-chat/internal/repository"
)

// ConversationHandler expone el CRUD de conversaciones y mensajes.
type ConversationHandler struct {
	logger        *zap.Logger
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
}

func NewConversationHandler(
	logger *zap.Logger,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{
		logger:        logger,
		conversations: conversations,
		messages:      messages,
	}
}

// CreateConversation maneja POST /conversations.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	conv := domain.Conversation{
		ID:        uuid.NewString(),
		UserID:    claims.UserID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.conversations.Create(c.Request.Context(), conv); err != nil {
		h.logger.Error("create conversation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// ListConversations maneja GET /conversations: solo las del usuario
// autenticado, más recientes primero, sin las borradas.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	convs, err := h.conversations.ListByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("list conversations failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list conversations"})
		return
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}

	c.JSON(http.StatusOK, convs)
}

// ListMessages maneja GET /conversations/:id/messages en orden cronológico.
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	conv, ok := h.ownedConversation(c)
	if !ok {
		return
	}

	msgs, err := h.messages.ListByConversationID(c.Request.Context(), conv.ID)
	if err != nil {
		h.logger.Error("list messages failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list messages"})
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}

	c.JSON(http.StatusOK, msgs)
}

// DeleteConversation maneja DELETE /conversations/:id con borrado lógico.
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	conv, ok := h.ownedConversation(c)
	if !ok {
		return
	}

	if err := h.conversations.SoftDelete(c.Request.Context(), conv.ID, time.Now().UTC()); err != nil {
		h.logger.Error("delete conversation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ownedConversation resuelve :id y verifica pertenencia; una conversación
// ajena o borrada se responde como inexistente.
func (h *ConversationHandler) ownedConversation(c *gin.Context) (domain.Conversation, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return domain.Conversation{}, false
	}

	conv, err := h.conversations.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, pgx.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return domain.Conversation{}, false
	}
	if err != nil {
		h.logger.Error("get conversation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load conversation"})
		return domain.Conversation{}, false
	}
	if conv.UserID != claims.UserID || conv.DeletedAt != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return domain.Conversation{}, false
	}

	return conv, true
}
