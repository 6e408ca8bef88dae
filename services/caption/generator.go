package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"slideflow/models"
)

const (
	// requestTimeout converts a hung caption backend into a reported
	// failure instead of a stuck loading state.
	requestTimeout = 10 * time.Second

	maxCaptionTokens = 120
)

// Generator calls the caption backend: a chat-style completion request
// built from the item's descriptive fields plus the configured system
// instruction.
type Generator struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// NewGenerator creates a caption generator against the given backend base
// URL and model identifier.
func NewGenerator(baseURL, model string) *Generator {
	return &Generator{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate produces one short caption for the item. Retries with backoff
// on rate limiting and server errors.
func (g *Generator) Generate(ctx context.Context, instruction string, item models.MediaItem, credential string) (string, error) {
	userMessage := fmt.Sprintf("Media post titled %q from the %s channel (%s).",
		item.Title, item.Channel, item.Kind)

	reqBody := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: userMessage},
		},
		Temperature: 0.7,
		MaxTokens:   maxCaptionTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal caption request: %w", err)
	}

	endpoint := g.baseURL + "/chat/completions"

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return "", fmt.Errorf("create caption request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+credential)

		resp, err := g.httpClient.Do(req)
		if err != nil {
			lastErr = err
			log.Printf("[caption] http error (attempt %d/3): %v", attempt+1, err)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("caption backend status %d", resp.StatusCode)
			log.Printf("[caption] rate limited or server error (attempt %d/3): status %d", attempt+1, resp.StatusCode)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		caption, err := decodeCaption(resp)
		resp.Body.Close()
		return caption, err
	}

	return "", fmt.Errorf("caption request failed after 3 attempts: %w", lastErr)
}

func decodeCaption(resp *http.Response) (string, error) {
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("caption backend error %d: %s", resp.StatusCode, string(body))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", errors.New("unexpected response from caption backend")
	}
	if chat.Error != nil {
		return "", fmt.Errorf("caption backend error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return "", errors.New("caption backend returned no choices")
	}

	caption := strings.TrimSpace(chat.Choices[0].Message.Content)
	if caption == "" {
		return "", errors.New("caption backend returned empty text")
	}
	return caption, nil
}
