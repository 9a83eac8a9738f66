package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"microgrid/internal/config"
	"microgrid/internal/types"
)

// ChatMessage is one turn of a chat-completions conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// AdvisorClient asks an OpenAI-compatible chat-completions endpoint for a
// narrative about the current energy situation.
type AdvisorClient struct {
	base      *BaseClient
	url       string
	apiKey    types.SecretString
	model     string
	maxTokens int
}

// NewAdvisorClient creates a client for cfg. cfg.URL is the full
// chat-completions URL.
func NewAdvisorClient(cfg config.AdvisorConfig, version string, opts ...BaseClientOption) *AdvisorClient {
	base := NewBaseClient(
		&http.Client{Timeout: cfg.Timeout},
		"advisor",
		DefaultRetryPolicy(),
		"microgrid-dispatch/"+version,
		opts...,
	)
	return &AdvisorClient{
		base:      base,
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Complete sends the system and user prompts and returns the first choice's
// text.
func (c *AdvisorClient) Complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode advisor request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build advisor request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey.IsSet() {
		req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", types.NewAppError(
			types.ErrCodeUpstreamAdvisor,
			fmt.Sprintf("advisor returned %d", resp.StatusCode),
			fmt.Errorf("%s", strings.TrimSpace(string(snippet))),
		)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamAdvisor, "failed to decode advisor response", err)
	}
	if len(out.Choices) == 0 {
		return "", types.NewAppError(types.ErrCodeUpstreamAdvisor, "advisor returned no choices", nil)
	}
	return out.Choices[0].Message.Content, nil
}
