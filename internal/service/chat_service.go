package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"silvery-chat/internal/domain"
	"silvery-chat/internal/llm"
	"silvery-chat/internal/repository"
	"silvery-chat/internal/stream"
)

// DefaultSystemPrompt se usa cuando la tabla config no trae override.
const DefaultSystemPrompt = "You are Silvery's Sleep Guide, a friendly and knowledgeable sleep companion. Help users with sleep tips, bedding care, cooling solutions for hot sleepers, and anything to help them rest better."

const (
	configKeySystemPrompt = "system_prompt"

	titleMaxLength      = 60
	titleTruncateLength = 57
	titleEllipsis       = "…"

	// Solo se reenvían los últimos turnos al proveedor; el resto queda en el
	// store y no viaja en cada request.
	contextWindowMessages = 10

	readBufferSize = 4096
)

var (
	ErrQuotaExceeded         = errors.New("free message quota exceeded")
	ErrChatInvalidInput      = errors.New("chat invalid input")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrAssistantNotPersisted = errors.New("assistant message not persisted")
)

// ChatService orquesta un turno de chat: admisión, resolución de
// conversación, persistencia del mensaje del usuario, streaming del proveedor
// y persistencia de la respuesta completa.
type ChatService struct {
	llmClient     llm.StreamClient
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	configRepo    repository.ConfigRepository
	access        *AccessService
	freeLimit     int
	idleTimeout   time.Duration
	logger        *zap.Logger
}

func NewChatService(
	llmClient llm.StreamClient,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	configRepo repository.ConfigRepository,
	access *AccessService,
	freeLimit int,
	idleTimeout time.Duration,
	logger *zap.Logger,
) *ChatService {
	if freeLimit <= 0 {
		freeLimit = 1
	}
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		llmClient:     llmClient,
		conversations: conversations,
		messages:      messages,
		configRepo:    configRepo,
		access:        access,
		freeLimit:     freeLimit,
		idleTimeout:   idleTimeout,
		logger:        logger,
	}
}

// BuildChatTitle deriva el título de una conversación a partir del primer
// mensaje: verbatim hasta titleMaxLength, si no truncado más elipsis.
func BuildChatTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxLength {
		return content
	}
	return string(runes[:titleTruncateLength]) + titleEllipsis
}

// StreamTurn media un turno completo. onStart se invoca una sola vez con el
// id de conversación resuelto, antes del primer chunk, para que el llamador
// pueda emitir headers. Cada chunk SSE crudo del upstream se reenvía vía
// onChunk mientras se acumula el texto para persistirlo al final. Devuelve el
// id de conversación resuelto.
//
// Orden de efectos: el mensaje del usuario se guarda ANTES de abrir el
// stream, así un corte a mitad nunca pierde la entrada del usuario. Si el
// contexto se cancela (cliente desconectado) o el upstream queda mudo más de
// idleTimeout, lo acumulado se descarta: respuesta completa o ninguna.
func (s *ChatService) StreamTurn(
	ctx context.Context,
	userID string,
	conversationID string,
	history []llm.Message,
	onStart func(conversationID string),
	onChunk func([]byte) error,
) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrChatInvalidInput
	}

	userText := lastUserContent(history)
	if userText == "" {
		return "", ErrChatInvalidInput
	}

	// Admisión: sin entitlement efectivo, la cuota gratis decide antes de
	// tocar el proveedor.
	_, entitled, err := s.access.EffectiveEntitlement(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("admission check: %w", err)
	}
	freeTurn := !entitled
	if freeTurn {
		used, err := s.access.FreeUsage(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("free usage: %w", err)
		}
		if used >= s.freeLimit {
			return "", ErrQuotaExceeded
		}
	}

	conversationID, isFirst, err := s.resolveConversation(ctx, conversationID, userID)
	if err != nil {
		return "", err
	}

	// El turno del usuario se persiste antes de la llamada upstream.
	userMsg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           domain.RoleUser,
		Content:        userText,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return "", fmt.Errorf("persist user message: %w", err)
	}
	if isFirst {
		if err := s.conversations.SetTitle(ctx, conversationID, BuildChatTitle(userText)); err != nil {
			s.logger.Warn("set title failed", zap.Error(err), zap.String("conversation_id", conversationID))
		}
	}

	prompt := s.assemblePrompt(ctx, history)

	if onStart != nil {
		onStart(conversationID)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	body, err := s.llmClient.Stream(streamCtx, prompt)
	if err != nil {
		return conversationID, err
	}
	defer body.Close()

	text, err := s.consumeStream(ctx, cancel, body, onChunk)
	if err != nil {
		return conversationID, err
	}

	assistantMsg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Content:        text,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, assistantMsg); err != nil {
		// El texto ya llegó al cliente: no hay nada que revertir upstream.
		s.logger.Error("persist assistant message failed", zap.Error(err), zap.String("conversation_id", conversationID))
		return conversationID, fmt.Errorf("%w: %v", ErrAssistantNotPersisted, err)
	}
	if err := s.conversations.Touch(ctx, conversationID, assistantMsg.CreatedAt); err != nil {
		s.logger.Warn("touch conversation failed", zap.Error(err), zap.String("conversation_id", conversationID))
	}
	if freeTurn {
		if _, err := s.access.IncrementFreeUsage(ctx, userID); err != nil {
			s.logger.Warn("increment free usage failed", zap.Error(err), zap.String("user_id", userID))
		}
	}

	return conversationID, nil
}

// resolveConversation crea o valida la conversación del turno. Un id elegido
// por el cliente se materializa con un upsert idempotente para no dejar
// mensajes huérfanos.
func (s *ChatService) resolveConversation(ctx context.Context, conversationID, userID string) (string, bool, error) {
	if conversationID == "" {
		conv := domain.Conversation{
			ID:        uuid.NewString(),
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.conversations.Create(ctx, conv); err != nil {
			return "", false, fmt.Errorf("create conversation: %w", err)
		}
		return conv.ID, true, nil
	}

	if err := s.conversations.Ensure(ctx, conversationID, userID); err != nil {
		return "", false, fmt.Errorf("ensure conversation: %w", err)
	}
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return "", false, fmt.Errorf("get conversation: %w", err)
	}
	if conv.UserID != userID || conv.DeletedAt != nil {
		return "", false, ErrConversationNotFound
	}

	count, err := s.messages.CountByConversationID(ctx, conversationID)
	if err != nil {
		return "", false, fmt.Errorf("count messages: %w", err)
	}
	return conversationID, count == 0, nil
}

// assemblePrompt antepone el system prompt efectivo y recorta el historial a
// la ventana reciente.
func (s *ChatService) assemblePrompt(ctx context.Context, history []llm.Message) []llm.Message {
	systemPrompt := DefaultSystemPrompt
	value, err := s.configRepo.Get(ctx, configKeySystemPrompt)
	switch {
	case err == nil && strings.TrimSpace(value) != "":
		systemPrompt = value
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		s.logger.Warn("config lookup failed, using default prompt", zap.Error(err))
	}

	window := history
	if len(window) > contextWindowMessages {
		window = window[len(window)-contextWindowMessages:]
	}

	prompt := make([]llm.Message, 0, len(window)+1)
	prompt = append(prompt, llm.Message{Role: domain.RoleSystem, Content: systemPrompt})
	prompt = append(prompt, window...)
	return prompt
}

// consumeStream reenvía los bytes crudos del upstream y acumula los deltas
// parseados. El timer de inactividad cancela el stream si el proveedor queda
// mudo demasiado tiempo.
func (s *ChatService) consumeStream(
	ctx context.Context,
	cancel context.CancelFunc,
	body io.Reader,
	onChunk func([]byte) error,
) (string, error) {
	parser := stream.NewParser()
	var acc strings.Builder

	idle := time.AfterFunc(s.idleTimeout, cancel)
	defer idle.Stop()

	buf := make([]byte, readBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			idle.Reset(s.idleTimeout)
			chunk := buf[:n]
			if onChunk != nil {
				if err := onChunk(chunk); err != nil {
					return "", fmt.Errorf("forward chunk: %w", err)
				}
			}
			deltas, done := parser.Feed(chunk)
			for _, d := range deltas {
				acc.WriteString(d)
			}
			if done {
				break
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				// Cliente desconectado: abortar sin persistir lo parcial.
				return "", ctx.Err()
			}
			return "", fmt.Errorf("read stream: %w", readErr)
		}
	}

	if !parser.Done() {
		for _, d := range parser.Flush() {
			acc.WriteString(d)
		}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return acc.String(), nil
}

func lastUserContent(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleUser {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}
