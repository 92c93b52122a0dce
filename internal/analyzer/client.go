package analyzer

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

	"github.com/sirupsen/logrus"
)

const (
	defaultEndpoint = "http://127.0.0.1:8000/analyze_cookies"
	defaultTimeout  = 300 * time.Second
	defaultBackoff  = 5 * time.Second
	maxBodyBytes    = 64 << 20
)

// Config drives analysis client behaviour.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	// Backoff is the pause before the single retry after an HTTP 429.
	Backoff time.Duration
}

// Result is the decoded analysis service response.
type Result struct {
	Document   map[string]any
	StatusCode int
	Headers    map[string]string
}

// StatusError reports a non-success HTTP status from the analysis service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("analysis service status %d", e.StatusCode)
	}
	return fmt.Sprintf("analysis service status %d: %s", e.StatusCode, e.Body)
}

// ErrEmptyURL is returned when Analyze is called without a site URL.
var ErrEmptyURL = errors.New("analyzer: url is empty")

// Analyzer produces an analysis document for a site.
type Analyzer interface {
	Analyze(ctx context.Context, url string) (Result, error)
}

// Client calls the external cookie analysis service.
type Client struct {
	httpClient *http.Client
	endpoint   string
	backoff    time.Duration
}

// NewClient constructs a client, filling defaults for unset fields.
func NewClient(cfg Config) *Client {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		backoff:    backoff,
	}
}

// Endpoint returns the configured analysis endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Analyze posts the site URL to the analysis service and decodes its response.
func (c *Client) Analyze(ctx context.Context, url string) (Result, error) {
	if c == nil {
		return Result{}, errors.New("analyzer client is nil")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return Result{}, ErrEmptyURL
	}

	payload, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	resp, err := c.post(ctx, payload)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		// back off and retry once
		resp.Body.Close()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(c.backoff):
		}
		resp, err = c.post(ctx, payload)
		if err != nil {
			return Result{}, err
		}
		defer resp.Body.Close()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read analysis response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	logrus.WithFields(logrus.Fields{
		"url":      url,
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"duration": time.Since(start),
	}).Info("analysis service responded")

	return Result{
		Document:   decodeBody(body, resp.StatusCode),
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
	}, nil
}

func (c *Client) post(ctx context.Context, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call analysis service: %w", err)
	}
	return resp, nil
}

// decodeBody parses a JSON object response; anything else is wrapped so callers still
// receive a document.
func decodeBody(body []byte, status int) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err == nil && doc != nil {
		return doc
	}
	return map[string]any{
		"text_response": string(body),
		"status_code":   status,
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
