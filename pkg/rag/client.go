package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/ragtube/pkg/logger"
	"github.com/papercomputeco/ragtube/pkg/ndjson"
)

const (
	// DefaultBaseURL is where the backend listens by default.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout bounds a whole HTTP exchange, streamed body included.
	DefaultTimeout = 2 * time.Minute

	// ContentTypeNDJSON is the media type of streamed answers.
	ContentTypeNDJSON = "application/x-ndjson"

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 512
)

// Client talks to the RAG backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	username   string
	password   string
	readBuf    int
	timeout    *time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithBasicAuth sends HTTP Basic credentials on every request. An empty
// username disables authentication.
func WithBasicAuth(username, password string) Option {
	return func(cl *Client) {
		cl.username = username
		cl.password = password
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithTimeout sets the overall timeout of each request. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = &d
	}
}

// WithReadBufferSize sets the chunk size used when reading streamed bodies.
func WithReadBufferSize(n int) Option {
	return func(cl *Client) {
		cl.readBuf = n
	}
}

// NewClient creates a Client for the backend at baseURL. An empty baseURL
// falls back to DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		readBuf:    ndjson.DefaultReadBufferSize,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.timeout != nil {
		hc := *c.httpClient
		hc.Timeout = *c.timeout
		c.httpClient = &hc
	}
	return c
}

// BaseURL returns the backend address this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Readiness calls GET /readiness. Any non-2xx response is a TransportError.
func (c *Client) Readiness(ctx context.Context) (*ReadinessStatus, error) {
	status := &ReadinessStatus{}
	if err := c.getJSON(ctx, "readiness", "/readiness", status); err != nil {
		return nil, err
	}
	return status, nil
}

// Channels calls GET /channel and returns the indexed channels.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	if err := c.getJSON(ctx, "channels", "/channel", &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// Stream issues GET /rag for q and returns the open event stream. The
// channel_id parameter is omitted entirely when q has no channel. The caller
// must drain or Close the returned Stream.
func (c *Client) Stream(ctx context.Context, q Query) (*Stream, error) {
	params := url.Values{}
	params.Set("input", q.Text)
	if q.ChannelID != "" {
		params.Set("channel_id", q.ChannelID)
	}

	req, err := c.newRequest(ctx, "/rag?"+params.Encode())
	if err != nil {
		return nil, &TransportError{Op: "rag", Err: err}
	}
	req.Header.Set("Accept", ContentTypeNDJSON)

	c.logger.Debug("starting rag stream",
		"channel_id", q.ChannelID,
		"input_len", len(q.Text),
	)

	resp, err := c.do(req, "rag")
	if err != nil {
		return nil, err
	}

	return NewStream(resp.Body,
		WithStreamLogger(c.logger),
		WithStreamReadBufferSize(c.readBuf),
	), nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	req, err := c.newRequest(ctx, path)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decoding response: %w", err),
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

// do sends req and converts transport failures and non-2xx statuses into
// TransportErrors. On success the caller owns resp.Body.
func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("backend request failed", "op", op, "error", err)
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("backend returned error status",
			"op", op,
			"status", resp.StatusCode,
		)
		return nil, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return resp, nil
}
