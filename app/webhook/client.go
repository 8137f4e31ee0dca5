package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

type Result struct {
	Success    bool
	HTTPStatus int // 0 when no response was received
}

type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient returns a delivery client. The http client's timeout bounds each
// post; there is no retry.
func NewClient(httpClient *http.Client, userAgent string) *Client {
	return &Client{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

type payload struct {
	Content string `json:"content"`
}

// Post sends message to webhookURL as a single attempt. A status of 400 or
// above, or a transport failure, is reported as unsuccessful with a non-nil
// error describing it.
func (c *Client) Post(ctx context.Context, webhookURL string, message string) (Result, error) {
	body, err := json.Marshal(payload{Content: message})
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to post to webhook: %w", err)
	}
	defer resp.Body.Close()

	result := Result{HTTPStatus: resp.StatusCode}

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return result, fmt.Errorf("webhook responded with %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	result.Success = true
	slog.Debug("Webhook delivered", "status", resp.StatusCode)

	return result, nil
}
