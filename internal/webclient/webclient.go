package webclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sitegauge/sitegauge/internal/logging"
)

// ErrTimeout marks a fetch that exceeded its deadline. Callers distinguish it
// from other network failures with errors.Is.
var ErrTimeout = errors.New("webclient: fetch timed out")

// Response is the normalized result of a single GET. It is returned for any
// HTTP response, including non-2xx; callers decide how to treat status codes.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	FetchedAt  time.Time
	Duration   time.Duration
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs bounded-time GETs with a fixed identifying User-Agent.
// Every analyzer owns its own Get call; there is no caching across calls, so
// one failing fetch never poisons another analyzer's view of the target.
type Client struct {
	client *http.Client
	cfg    Config
	logger logging.Logger
}

// New creates a Client. If httpClient is nil a default client is constructed;
// per-call deadlines come from the Get timeout argument, not the http.Client.
func New(cfg Config, logger logging.Logger, httpClient *http.Client) (*Client, error) {
	if logger == nil {
		return nil, errors.New("webclient: nil logger")
	}
	cfg.applyDefaults()

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	componentLogger := logger.With(logging.Field{Key: "component", Value: "webclient"})

	return &Client{
		client: httpClient,
		cfg:    cfg,
		logger: componentLogger,
	}, nil
}

// Get fetches rawURL with the given timeout. On any HTTP response it returns
// status, headers and body. On deadline expiry the returned error wraps
// ErrTimeout; other network/DNS/TLS failures surface as plain errors.
func (c *Client) Get(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", c.cfg.Accept)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			c.logger.Warn("fetch timed out",
				logging.Field{Key: "url", Value: rawURL},
				logging.Field{Key: "timeout", Value: timeout.String()})
			return nil, fmt.Errorf("GET %s after %s: %w", rawURL, timeout, ErrTimeout)
		}
		c.logger.Warn("fetch failed",
			logging.Field{Key: "url", Value: rawURL},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("read body of %s after %s: %w", rawURL, timeout, ErrTimeout)
		}
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	duration := time.Since(start)
	c.logger.Debug("fetched page",
		logging.Field{Key: "url", Value: rawURL},
		logging.Field{Key: "status", Value: resp.StatusCode},
		logging.Field{Key: "bytes", Value: len(body)},
		logging.Field{Key: "duration_ms", Value: duration.Milliseconds()})

	return &Response{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		FetchedAt:  time.Now(),
		Duration:   duration,
	}, nil
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
