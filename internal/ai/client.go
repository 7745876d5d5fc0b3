package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no API key is set; no call is attempted.
var ErrNotConfigured = errors.New("openrouter api key not configured")

const maxResponseBytes = 1 << 20

// Client calls an OpenAI-compatible chat/completions endpoint. The HTTP
// timeout is the only deadline on the outbound call; there are no retries.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

func NewClient(baseURL, apiKey, model string, temperature float64, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Complete sends the conversation and returns the trimmed completion text
// plus the model name the provider reports.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", "", ErrNotConfigured
	}

	body := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": c.temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: request failed: %v", ErrBadUpstream, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return "", "", fmt.Errorf("%w: read response: %v", ErrBadUpstream, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		message := extractErrorMessage(raw)
		if message == "" {
			message = fmt.Sprintf("status %d", res.StatusCode)
		}
		return "", "", fmt.Errorf("%w: %s", ErrBadUpstream, message)
	}

	var completion struct {
		Model   string `json:"model"`
		Choices []struct {
			Message *struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", "", fmt.Errorf("%w: invalid response body", ErrBadUpstream)
	}
	if len(completion.Choices) == 0 {
		return "", "", fmt.Errorf("%w: response missing choices", ErrBadUpstream)
	}
	choice := completion.Choices[0]
	if choice.Message == nil || choice.Message.Content == nil {
		return "", "", fmt.Errorf("%w: response missing content", ErrBadUpstream)
	}
	return strings.TrimSpace(*choice.Message.Content), completion.Model, nil
}

func extractErrorMessage(body []byte) string {
	payload := struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}{}
	if err := json.Unmarshal(body, &payload); err == nil {
		return strings.TrimSpace(payload.Error.Message)
	}
	return ""
}
