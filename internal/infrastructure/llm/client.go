// Package llm implements the completion collaborator against
// OpenAI-compatible chat APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"PostsScanner/internal/config"
	"PostsScanner/internal/ports"
	"PostsScanner/internal/retry"
)

// Client implements ports.CompletionClient backed by OpenAI-compatible APIs.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ ports.CompletionClient = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.CompletionConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Temperature    float64        `json:"temperature"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete posts one chat completion request and returns the raw assistant
// content with any markdown code fences stripped. Client-side errors (4xx
// other than 429) come back terminal; transport failures and 5xx/429 are
// left retryable.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if c == nil {
		return "", retry.Terminal(fmt.Errorf("completion client is nil"))
	}
	if c.apiKey == "" || c.endpoint == "" || req.Model == "" {
		return "", retry.Terminal(fmt.Errorf("completion client misconfigured"))
	}

	payload := chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserContent},
		},
	}
	if req.ResponseSchema != nil {
		payload.ResponseFormat = map[string]any{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", retry.Terminal(fmt.Errorf("marshal completion payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", retry.Terminal(fmt.Errorf("new request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		apiErr := fmt.Errorf("completion api %s: %s", resp.Status, strings.TrimSpace(string(detail)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return "", apiErr
		}
		return "", retry.Terminal(apiErr)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}

	return stripCodeFences(parsed.Choices[0].Message.Content), nil
}

// stripCodeFences unwraps ```json ... ``` style answers some models emit
// even when a JSON response format is requested.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
