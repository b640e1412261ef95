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

	"go.uber.org/zap"
)

// Errores del proveedor, distinguidos por status upstream. 429 y 402 se
// propagan con status propio hacia el cliente; el resto es genérico.
var (
	ErrRateLimited        = errors.New("llm rate limited")
	ErrServiceUnavailable = errors.New("llm service unavailable")
	ErrUpstream           = errors.New("llm upstream error")
)

// Message es un turno del historial enviado al proveedor.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamClient abre una respuesta incremental (SSE) del servicio de completions.
type StreamClient interface {
	Stream(ctx context.Context, messages []Message) (io.ReadCloser, error)
}

// HTTPClient implementa StreamClient contra una API OpenAI-compatible.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye un cliente apuntando a la API de chat completions.
// El http.Client no lleva timeout global: el stream puede durar minutos y el
// corte por inactividad lo maneja el consumidor.
func NewHTTPClient(baseURL, apiKey, model string, logger *zap.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
		logger:  logger,
	}
}

type streamRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type upstreamError struct {
	Error string `json:"error"`
}

// Stream abre la petición de completions con stream=true y devuelve el body
// crudo (eventos SSE) para que el llamador lo consuma incrementalmente.
func (c *HTTPClient) Stream(ctx context.Context, messages []Message) (io.ReadCloser, error) {
	reqBody := streamRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		var ue upstreamError
		_ = json.Unmarshal(respBody, &ue)
		c.logger.Warn("llm error response",
			zap.Int("status", resp.StatusCode),
			zap.String("error", ue.Error),
		)

		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return nil, ErrRateLimited
		case http.StatusPaymentRequired:
			return nil, ErrServiceUnavailable
		default:
			return nil, fmt.Errorf("%w: status=%d", ErrUpstream, resp.StatusCode)
		}
	}

	return resp.Body, nil
}
