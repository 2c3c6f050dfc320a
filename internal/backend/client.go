package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
)

// RequestIDHeader carries a per-call id the backend can log
const RequestIDHeader = "X-Request-ID"

// Config contains configuration for the backend client
type Config struct {
	BaseURL         string
	PrivateBaseURL  string // defaults to BaseURL
	PrivateUsername string
	PrivatePassword string
	Timeout         time.Duration
	UserAgent       string
	HTTPClient      *http.Client // optional, overrides Timeout
}

// Client is an HTTP client for the camera management backend.
// It holds no state besides its configuration and is safe for concurrent use.
type Client struct {
	baseURL         string
	privateBaseURL  string
	privateUsername string
	privatePassword string
	userAgent       string
	httpClient      *http.Client
	logger          *logger.Logger
}

// NewClient creates a new backend client
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PrivateBaseURL == "" {
		cfg.PrivateBaseURL = cfg.BaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		privateBaseURL:  strings.TrimRight(cfg.PrivateBaseURL, "/"),
		privateUsername: cfg.PrivateUsername,
		privatePassword: cfg.PrivatePassword,
		userAgent:       cfg.UserAgent,
		httpClient:      httpClient,
		logger:          log,
	}
}

// BaseURL returns the public API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    interface{}
	private bool
}

// do sends req and decodes a 2xx JSON body into out when out is not nil.
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	base := c.baseURL
	if req.private {
		base = c.privateBaseURL
	}
	target := base + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		jsonData, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if req.private && c.privateUsername != "" {
		httpReq.SetBasicAuth(c.privateUsername, c.privatePassword)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("Backend request failed",
			"method", req.method,
			"path", req.path,
			"request_id", requestID,
			"error", err,
		)
		return fmt.Errorf("backend %s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Backend request",
		"method", req.method,
		"path", req.path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method:     req.method,
			Path:       req.path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", req.path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}

// idsQuery returns key=a,b,c, or nil for an empty id set which means "all".
func idsQuery(key string, ids []string) url.Values {
	ids = compact(ids)
	if len(ids) == 0 {
		return nil
	}
	return url.Values{key: []string{strings.Join(ids, ",")}}
}

// compact drops empty ids and duplicates while keeping order
func compact(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// orEmpty turns a nil collection into an empty one
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// Ping checks that the backend answers. Any response below 500 counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	err := c.get(ctx, "/api/groups", nil, nil)
	if code := StatusCode(err); code > 0 && code < http.StatusInternalServerError {
		return nil
	}
	return err
}
