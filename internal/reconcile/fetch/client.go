// Package fetch is the single outbound HTTP client for external result
// sources. All callers share one minimum request interval; requests are
// never retried.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/technerv/election-monitor/internal/platform/config"
	syncmetrics "github.com/technerv/election-monitor/internal/reconcile/metrics"
)

const (
	defaultMinInterval  = 2 * time.Second
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 5 << 20
	defaultUserAgent    = "Kenya Elections Tracker - Civic Tech Platform"
	acceptHeader        = "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8"
)

// Response is a fully read source response.
type Response struct {
	URL         string
	Status      int
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// Client performs rate-limited GET requests.
type Client struct {
	http         *http.Client
	limiter      *rate.Limiter
	timeout      time.Duration
	userAgent    string
	maxBodyBytes int64
	logger       *slog.Logger
	metrics      *syncmetrics.Metrics
	tracer       trace.Tracer
	now          func() time.Time
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithMinInterval sets the minimum spacing between request starts. Zero
// disables spacing.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *syncmetrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func New(opts ...Option) *Client {
	c := &Client{
		http:         &http.Client{},
		limiter:      rate.NewLimiter(rate.Every(defaultMinInterval), 1),
		timeout:      defaultTimeout,
		userAgent:    defaultUserAgent,
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       slog.Default(),
		tracer:       otel.Tracer("github.com/technerv/election-monitor/internal/reconcile/fetch"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the fetch config section.
func NewFromConfig(cfg config.FetchConfig, opts ...Option) *Client {
	base := []Option{
		WithMinInterval(cfg.MinInterval),
		WithTimeout(cfg.Timeout),
		WithUserAgent(cfg.UserAgent),
		WithMaxBodyBytes(cfg.MaxBodyBytes),
	}
	return New(append(base, opts...)...)
}

// Fetch waits for its turn, then performs one GET. The wait honors ctx and
// holds no lock while the request is in flight. Every error is a
// *FetchFailure.
func (c *Client) Fetch(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "fetch.Fetch")
	defer span.End()

	resp, err := c.fetch(ctx, rawURL, params)
	if err != nil {
		cause := CauseOf(err)
		span.SetStatus(codes.Error, string(cause))
		span.RecordError(err)
		c.metrics.IncFetch(string(cause))
		c.logger.WarnContext(ctx, "source fetch failed", "url", rawURL, "cause", cause, "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.Status))
	c.metrics.IncFetch("ok")
	return resp, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	target, err := buildURL(rawURL, params)
	if err != nil {
		return nil, &FetchFailure{Cause: CauseBadRequest, URL: rawURL, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, &FetchFailure{Cause: CauseCancelled, URL: target, Err: ctx.Err()}
		}
		// Wait fails early when the context deadline falls before the next slot.
		return nil, &FetchFailure{Cause: CauseCancelled, URL: target, Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchFailure{Cause: CauseBadRequest, URL: target, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	start := c.now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(ctx, target, err)
	}
	defer res.Body.Close()
	c.metrics.ObserveFetch(start)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return nil, &FetchFailure{Cause: CauseStatus, URL: target, Status: res.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, c.classify(ctx, target, err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, &FetchFailure{Cause: CauseConnection, URL: target, Status: res.StatusCode,
			Err: fmt.Errorf("body exceeds %d bytes", c.maxBodyBytes)}
	}

	return &Response{
		URL:         target,
		Status:      res.StatusCode,
		ContentType: res.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   c.now(),
	}, nil
}

// classify maps transport errors to a cause. The caller's context takes
// precedence over the per-request deadline.
func (c *Client) classify(ctx context.Context, target string, err error) *FetchFailure {
	if ctx.Err() != nil {
		return &FetchFailure{Cause: CauseCancelled, URL: target, Err: err}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchFailure{Cause: CauseTimeout, URL: target, Err: err}
	}
	return &FetchFailure{Cause: CauseConnection, URL: target, Err: err}
}

func buildURL(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
