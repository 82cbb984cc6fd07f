package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// NewHTTPHandler builds a Handler that dispatches the tool call as a JSON POST
// to a provider endpoint. 5xx and 429 responses are recoverable; other 4xx
// responses mean the request itself is wrong and retrying won't help.
func NewHTTPHandler(client *http.Client, url string) Handler {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context, params map[string]any) (*Response, error) {
		body, err := json.Marshal(params)
		if err != nil {
			return nil, Fatal(fmt.Errorf("tools: failed to encode params: %w", err))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, Fatal(fmt.Errorf("tools: failed to build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, Recoverable(fmt.Errorf("tools: provider call failed: %w", err))
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, Recoverable(fmt.Errorf("tools: failed to read provider response: %w", err))
		}
		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return nil, Recoverable(fmt.Errorf("tools: provider returned %d", resp.StatusCode))
		case resp.StatusCode >= 400:
			return nil, Fatal(fmt.Errorf("tools: provider returned %d", resp.StatusCode))
		}
		return &Response{Payload: string(data)}, nil
	}
}
