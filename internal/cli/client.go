package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mailintel/pkg/trace"
	"mailintel/pkg/util"
)

// Client talks to a running mailintel server over HTTP.
type Client struct {
	base         string
	gmailToken   string
	sessionToken string
	requestKey   string
	http         *http.Client
}

func NewClient(base, gmailToken, sessionToken string) *Client {
	return &Client{
		base:         strings.TrimRight(base, "/"),
		gmailToken:   gmailToken,
		sessionToken: sessionToken,
		http:         &http.Client{Timeout: 2 * time.Minute},
	}
}

// APIError 非 2xx 响应
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// do 发送请求；in 为 nil 时不带请求体，out 为 nil 时返回原始响应体
func (c *Client) do(ctx context.Context, method, path string, in, out any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.gmailToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.gmailToken)
	}
	if c.sessionToken != "" {
		req.Header.Set(util.SessionHeader, c.sessionToken)
	}
	if c.requestKey != "" {
		req.Header.Set("X-Request-Key", c.requestKey)
	}
	req.Header.Set(trace.HeaderName(), trace.GenerateTraceID())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, fmt.Errorf("decode response: %w", err)
		}
	}
	return raw, nil
}
