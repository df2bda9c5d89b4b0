package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"smart-mirror/internal/domain"
)

// HTTPClient submits transcribed text to the orchestrator's /voice/intent.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type intentRequest struct {
	Text string `json:"text"`
}

type intentResponse struct {
	domain.Payload
	Ignored bool `json:"ignored"`
}

// Submit posts text and decodes the turn's payload. 200 and 202 are both
// success; any other status is returned as an error with the body.
func (c *HTTPClient) Submit(ctx context.Context, text string) (domain.Payload, error) {
	body, err := json.Marshal(intentRequest{Text: text})
	if err != nil {
		return domain.Payload{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voice/intent", bytes.NewReader(body))
	if err != nil {
		return domain.Payload{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.Payload{}, fmt.Errorf("mirror API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.Payload{}, fmt.Errorf("decoding response: %w", err)
	}
	return result.Payload, nil
}
