package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type Anthropic struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewAnthropic(apiKey, model string, httpClient *http.Client) *Anthropic {
	return NewAnthropicWithURL(apiKey, model, "https://api.anthropic.com/v1", httpClient)
}

func NewAnthropicWithURL(apiKey, model, baseURL string, httpClient *http.Client) *Anthropic {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Anthropic{
		apiKey:     apiKey,
		httpClient: httpClient,
		baseURL:    baseURL,
		model:      model,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Anthropic) Complete(ctx context.Context, system, user string) (string, error) {
	bodyBytes, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: 512,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("claude API error %d: %s", resp.StatusCode, string(respBody))
	}

	var result anthropicResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("empty response from claude")
	}
	return strings.TrimSpace(result.Content[0].Text), nil
}
