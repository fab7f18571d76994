package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/josuabad/TuGranjita/errors"
	"github.com/josuabad/TuGranjita/metric"
)

// Client is a thin JSON fetcher for one upstream catalog service. Any
// failure talking to the upstream, including timeouts, non-success status
// codes, and undecodable bodies, classifies as an upstream error so the
// resolver surfaces it as 502.
type Client struct {
	target  string
	base    string
	http    *http.Client
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewClient builds a client for the named upstream. The timeout bounds the
// whole exchange, connection setup through body read.
func NewClient(target, base string, timeout time.Duration,
	logger *slog.Logger, metrics *metric.Metrics) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		target:  target,
		base:    base,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("service", serviceName, "target", target),
		metrics: metrics,
	}
}

// GetJSON fetches path with the given query from the upstream and decodes
// the response body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.WrapUpstream(err, serviceName, "GetJSON",
			fmt.Sprintf("cannot reach %s service", c.target))
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(start, "error")
		c.logger.Warn("upstream request failed", "path", path, "error", err)
		cause := errors.ErrUpstreamUnreachable
		if ctx.Err() == context.DeadlineExceeded || isTimeout(err) {
			cause = errors.ErrUpstreamTimeout
		}
		return errors.WrapUpstream(fmt.Errorf("%w: %w", cause, err), serviceName, "GetJSON",
			fmt.Sprintf("%s service unavailable", c.target))
	}
	defer resp.Body.Close()
	c.observe(start, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return errors.WrapUpstream(
			fmt.Errorf("%w: %s returned %d for %s", errors.ErrUpstreamStatus, c.target, resp.StatusCode, path),
			serviceName, "GetJSON",
			fmt.Sprintf("%s service returned status %d", c.target, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapUpstream(
			fmt.Errorf("%w: %s body for %s: %w", errors.ErrUpstreamDecode, c.target, path, err),
			serviceName, "GetJSON",
			fmt.Sprintf("%s service returned an unreadable body", c.target))
	}
	return nil
}

func (c *Client) observe(start time.Time, status string) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamRequests.WithLabelValues(serviceName, c.target, status).Inc()
	c.metrics.UpstreamDuration.WithLabelValues(serviceName, c.target).
		Observe(time.Since(start).Seconds())
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	for e := err; e != nil; {
		if t, ok := e.(timeout); ok && t.Timeout() {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}
