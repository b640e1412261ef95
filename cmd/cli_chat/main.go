package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"silvery-chat/internal/stream"
)

// Cliente de terminal contra la API de chat. Requiere CHAT_API_URL y
// CHAT_API_TOKEN en el entorno; mantiene el id de conversación que devuelve
// el servidor en X-Chat-Id para continuar el hilo entre turnos.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
	ChatID   string        `json:"chatId,omitempty"`
}

func main() {
	_ = godotenv.Load()

	baseURL := strings.TrimRight(os.Getenv("CHAT_API_URL"), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := os.Getenv("CHAT_API_TOKEN")
	if token == "" {
		log.Fatal("CHAT_API_TOKEN is required")
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	reader := bufio.NewReader(os.Stdin)

	var (
		chatID  string
		history []chatMessage
	)

	fmt.Println("===== Silvery Chat =====")
	fmt.Println("Escribe tu mensaje, o 'salir' para terminar.")

	for {
		fmt.Print("\nTú: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "salir") {
			return
		}

		history = append(history, chatMessage{Role: "user", Content: input})

		reply, newChatID, err := sendTurn(client, baseURL, token, chatRequest{
			Messages: history,
			ChatID:   chatID,
		})
		if err != nil {
			fmt.Printf("\n[error] %v\n", err)
			// El turno falló: se descarta el mensaje para no reenviarlo
			// implícitamente en el próximo intento.
			history = history[:len(history)-1]
			continue
		}

		chatID = newChatID
		history = append(history, chatMessage{Role: "assistant", Content: reply})
	}
}

// sendTurn envía un turno y consume el stream SSE, imprimiendo los deltas a
// medida que llegan. Devuelve la respuesta completa y el id de conversación.
func sendTurn(client *http.Client, baseURL, token string, reqBody chatRequest) (string, string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", apiError(resp)
	}

	chatID := resp.Header.Get("X-Chat-Id")

	fmt.Print("\nSilvery: ")
	parser := stream.NewParser()
	var full strings.Builder
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			deltas, done := parser.Feed(buf[:n])
			for _, delta := range deltas {
				fmt.Print(delta)
				full.WriteString(delta)
			}
			if done {
				break
			}
		}
		if readErr == io.EOF {
			for _, delta := range parser.Flush() {
				fmt.Print(delta)
				full.WriteString(delta)
			}
			break
		}
		if readErr != nil {
			return "", "", readErr
		}
	}
	fmt.Println()

	return full.String(), chatID, nil
}

// apiError traduce respuestas no-200 a un error legible, usando el mensaje
// del servidor cuando viene en el cuerpo.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return fmt.Errorf("%s (HTTP %d)", parsed.Error, resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusForbidden:
		return fmt.Errorf("free message limit reached (HTTP 403)")
	case http.StatusTooManyRequests:
		return fmt.Errorf("too many requests, slow down (HTTP 429)")
	case http.StatusPaymentRequired:
		return fmt.Errorf("service temporarily unavailable (HTTP 402)")
	default:
		return fmt.Errorf("request failed (HTTP %d)", resp.StatusCode)
	}
}
