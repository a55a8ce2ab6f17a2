// Package ai drafts review replies through an OpenAI-compatible chat
// completions endpoint. A static generator backs deployments that run
// without a model.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

type Client struct {
	baseURL string
	apiKey  string
	model   string
	hc      *http.Client
}

func New(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) Generate(ctx context.Context, in domain.GenerationInput) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(in)},
			{Role: "user", Content: userPrompt(in)},
		},
		Temperature: 0.7,
		MaxTokens:   300,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ai: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("ai: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("ai: %s: %s", out.Error.Type, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("ai: empty completion")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("ai: empty completion")
	}
	return text, nil
}

func systemPrompt(in domain.GenerationInput) string {
	var sb strings.Builder
	sb.WriteString("You write short owner replies to customer reviews for ")
	sb.WriteString(in.BusinessName)
	sb.WriteString(". Keep replies under 100 words, specific to the review, and in a ")
	if in.Tone == "" {
		sb.WriteString("professional")
	} else {
		sb.WriteString(in.Tone)
	}
	sb.WriteString(" tone. Never promise compensation, never include contact details, and never make absolute guarantees.")
	if in.BrandRules != "" {
		sb.WriteString(" Brand rules: ")
		sb.WriteString(in.BrandRules)
	}
	return sb.String()
}

func userPrompt(in domain.GenerationInput) string {
	return fmt.Sprintf("A customer left a %d-star review:\n\n%s\n\nWrite the owner's reply.", in.Stars, in.ReviewText)
}
