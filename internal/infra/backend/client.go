package backend

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

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

var tracer = otel.Tracer("reseller-panel/backend")

// Client talks JSON to the platform backend. It implements the backend
// contracts of the continuous and products stories.
type Client struct {
	baseURL       *url.URL
	httpClient    *http.Client
	limiter       *rate.Limiter
	maxRetries    int
	retryInterval time.Duration
	logger        *slog.Logger
	creds         *credentials
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetries sets how many extra attempts idempotent reads get after a
// transport error or a 5xx response.
func WithRetries(maxRetries int, interval time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max(0, maxRetries)
		c.retryInterval = interval
	}
}

// WithRateLimit limits outgoing requests. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, burst))
	}
}

// WithCredentials enables the login/refresh token session.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		if username == "" {
			c.creds = nil
			return
		}
		c.creds = newCredentials(username, password)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ping checks that the backend answers at all, used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	status, _, err := c.send(ctx, http.MethodGet, "/products", url.Values{"limit": {"1"}}, nil, "")
	if err != nil {
		return err
	}
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("backend status %d", status)
	}
	return nil
}

// do runs one backend operation: rate limiting, auth, one token renewal on
// 401, retries for reads, tracing and metrics.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, reqBody, out any) (err error) {
	ctx, span := tracer.Start(ctx, "backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		),
	)
	start := time.Now()
	defer func() {
		observeRequest(op, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var payload []byte
	if reqBody != nil {
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("json marshal request: %w", err)
		}
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	renewed := false
	for attempt := 0; ; attempt++ {
		status, body, err := c.send(ctx, method, path, query, payload, token)

		switch {
		case err == nil && status == http.StatusUnauthorized && c.creds != nil && !renewed:
			renewed = true
			c.logger.Debug("Backend rejected token, renewing", "op", op)
			if token, err = c.creds.renew(ctx, c, token); err != nil {
				return err
			}
			continue

		case c.retryable(method, status, err) && attempt < c.maxRetries:
			c.logger.Warn("Backend request failed, retrying",
				"op", op,
				"attempt", attempt+1,
				"status", status,
				"error", err)
			if err := sleep(ctx, c.retryInterval); err != nil {
				return err
			}
			continue

		case err != nil:
			return err
		}

		span.SetAttributes(attribute.Int("http.status_code", status))

		if status < 200 || status >= 300 {
			return newAPIError(status, body)
		}
		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("json unmarshal response: %w", err)
		}
		return nil
	}
}

func (c *Client) retryable(method string, status int, err error) bool {
	if method != http.MethodGet {
		return false
	}
	return err != nil || status >= http.StatusInternalServerError
}

// send performs exactly one HTTP exchange.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, token string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limiting: %w", err)
		}
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(requestIDHeader, uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("http read: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.creds == nil {
		return "", nil
	}
	return c.creds.current(ctx, c)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
