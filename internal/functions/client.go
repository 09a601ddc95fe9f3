// Package functions calls the hosted backend functions (payment, order
// email, push) over HTTPS.
package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// StatusError is returned when a function answers with a non-2xx status.
type StatusError struct {
	Function string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("function %s returned status %d", e.Function, e.Status)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	logger     zerolog.Logger
}

func NewClient(baseURL, anonKey string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		logger:  logger.With().Str("component", "functions").Logger(),
	}
}

func (c *Client) URL(name string) string {
	return c.baseURL + "/functions/v1/" + name
}

// Invoke POSTs payload as JSON to function name and returns the raw response
// body. Extra headers are added to the request.
func (c *Client) Invoke(ctx context.Context, name string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(name), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do %s: %w", name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", name, err)
	}

	c.logger.Debug().
		Str("function", name).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("function invoked")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, &StatusError{Function: name, Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
