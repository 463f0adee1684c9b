package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/gridsync/internal/model"
)

// DefaultTimeout bounds a single HTTP call.
const DefaultTimeout = 15 * time.Second

// TokenFunc returns the bearer token for the next request.
type TokenFunc func() (string, error)

// HTTPClient talks to the listing store over HTTP/JSON.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
	Token   TokenFunc
	logger  *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.HTTP = hc
	}
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *slog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// NewHTTPClient creates a client for the store at baseURL.
func NewHTTPClient(baseURL string, token TokenFunc, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: DefaultTimeout},
		Token:   token,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

// Save posts a batch to /api/v1/{kind}/save.
func (c *HTTPClient) Save(ctx context.Context, req SaveRequest) (SaveResponse, error) {
	var resp SaveResponse
	path := fmt.Sprintf("/api/v1/%s/save", url.PathEscape(string(req.Kind)))
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return SaveResponse{}, err
	}
	if resp.Status != StatusOK {
		return SaveResponse{}, ApplicationError(http.StatusOK, resp.Message)
	}
	return resp, nil
}

// ChangeStatus posts a bucket move to /api/v1/{kind}/status.
func (c *HTTPClient) ChangeStatus(ctx context.Context, req StatusRequest) (StatusResponse, error) {
	var resp StatusResponse
	path := fmt.Sprintf("/api/v1/%s/status", url.PathEscape(string(req.Kind)))
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return StatusResponse{}, err
	}
	if resp.Status != StatusOK {
		return StatusResponse{}, ApplicationError(http.StatusOK, resp.Message)
	}
	return resp, nil
}

// Rows fetches the rows of one bucket.
func (c *HTTPClient) Rows(ctx context.Context, kind model.Kind, bucket string) ([]Row, error) {
	var resp RowsResponse
	path := fmt.Sprintf("/api/v1/%s/rows?bucket=%s", url.PathEscape(string(kind)), url.QueryEscape(bucket))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return TransportError("encode request", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return TransportError("build request", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.Token != nil {
		token, err := c.Token()
		if err != nil {
			return TransportError("get token", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return TransportError("request failed", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("remote call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return ApplicationError(resp.StatusCode, errorMessage(resp.StatusCode, data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return TransportError("decode response", err)
	}
	return nil
}

// errorMessage pulls the store's message out of an error body, falling back
// to the raw body.
func errorMessage(code int, body []byte) string {
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message != "" {
		return er.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Sprintf("server returned status %d", code)
	}
	return msg
}
