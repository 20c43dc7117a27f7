package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPAIProvider is a generic JSON-over-HTTP AIProvider. The AI provider's
// own business logic is treated as an opaque remote capability (§6):
// this adapter only knows how to frame the request and hand back the raw
// response body for AIDetector.Review to decode.
type HTTPAIProvider struct {
	Endpoint string
	APIKey   string
	Model    string
	Client   *http.Client
}

type httpAIRequest struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
	Model    string `json:"model,omitempty"`
}

// Review implements AIProvider.
func (p *HTTPAIProvider) Review(ctx context.Context, fileName string, content []byte) (json.RawMessage, error) {
	body, err := json.Marshal(httpAIRequest{FileName: fileName, Content: string(content), Model: p.Model})
	if err != nil {
		return nil, fmt.Errorf("ai provider: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai provider: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai provider: request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ai provider: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ai provider: status %d: %s", resp.StatusCode, payload)
	}

	return payload, nil
}

var _ AIProvider = (*HTTPAIProvider)(nil)
