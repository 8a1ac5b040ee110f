package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/mbaas-go/internal/core/domain"
	"github.com/yndnr/mbaas-go/internal/infra/buildinfo"
	"github.com/yndnr/mbaas-go/internal/telemetry/logger"
	"github.com/yndnr/mbaas-go/internal/telemetry/metric"
)

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL   string
	client    *http.Client
	apiKeyID  string
	apiKey    string
	userAgent string
	limiter   *rate.Limiter
	metrics   *metric.Registry
	logger    logger.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithRateLimit limits outgoing requests to rps per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics records request metrics on r.
func WithMetrics(r *metric.Registry) Option {
	return func(c *HTTPClient) {
		c.metrics = r
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *HTTPClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTLSConfig sets the TLS configuration used for https backends.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *HTTPClient) {
		if cfg == nil {
			return
		}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = cfg
		c.client.Transport = tr
	}
}

// NewHTTPClient creates a new HTTP client.
func NewHTTPClient(server, apiKeyID, apiKey string, opts ...Option) *HTTPClient {
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &HTTPClient{
		baseURL:   baseURL,
		apiKeyID:  apiKeyID,
		apiKey:    apiKey,
		userAgent: buildinfo.UserAgent(),
		logger:    logger.Default(),
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "http")

	return c
}

// Post sends body as JSON to path and returns the captured response.
//
// A non-nil Response is returned whenever the request was attempted. The
// error is non-nil for transport failures and non-2xx statuses; it matches
// domain.ErrRequestFailed, and additionally domain.ErrUnauthorized for 401
// and 403.
func (c *HTTPClient) Post(ctx context.Context, path string, body any, useAuth bool) (*domain.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, domain.ErrInvalidArgument.WithDetails("marshal body").WithCause(err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails("create request").WithCause(err)
	}

	c.addHeaders(ctx, req, useAuth)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, endpointName(path))
}

func (c *HTTPClient) do(req *http.Request, endpoint string) (*domain.Response, error) {
	ctx := req.Context()
	log := c.logger.With("endpoint", endpoint, "request_id", req.Header.Get("X-Request-ID"))

	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			c.record(endpoint, "error", 0)
			resp := &domain.Response{}
			return resp, domain.WrapResponse(resp, domain.ErrRequestFailed.WithDetails("rate limit").WithCause(err))
		}
		if c.metrics != nil {
			c.metrics.ObserveRateLimitWait(time.Since(waitStart).Seconds())
		}
	}

	start := time.Now()
	httpResp, err := c.client.Do(req)
	if err != nil {
		c.record(endpoint, "error", time.Since(start))
		log.Debug("request failed", "error", err)
		resp := &domain.Response{}
		return resp, domain.WrapResponse(resp, domain.ErrRequestFailed.WithCause(err))
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	elapsed := time.Since(start)
	resp := &domain.Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}
	c.record(endpoint, strconv.Itoa(httpResp.StatusCode), elapsed)

	if err != nil {
		return resp, domain.WrapResponse(resp, domain.ErrRequestFailed.WithDetails("read body").WithCause(err))
	}

	log.Debug("request completed", "status", httpResp.StatusCode, "elapsed", elapsed)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return resp, domain.WrapResponse(resp, statusError(resp))
	}
	return resp, nil
}

// statusError builds the error for a non-2xx response.
func statusError(resp *domain.Response) error {
	details := fmt.Sprintf("status %d: %s", resp.StatusCode, resp.ErrorMessage())
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrRequestFailed.WithDetails(details).WithCause(domain.ErrUnauthorized)
	default:
		return domain.ErrRequestFailed.WithDetails(details)
	}
}

func (c *HTTPClient) record(endpoint, status string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordRequest(endpoint, status)
	if elapsed > 0 {
		c.metrics.ObserveRequestDuration(endpoint, elapsed.Seconds())
	}
}

// addHeaders adds authentication and common headers.
func (c *HTTPClient) addHeaders(ctx context.Context, req *http.Request, useAuth bool) {
	if useAuth && c.apiKeyID != "" && c.apiKey != "" {
		req.Header.Set("X-API-Key-ID", c.apiKeyID)
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	requestID := logger.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = ulid.Make().String()
	}
	req.Header.Set("X-Request-ID", requestID)
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// endpointName is the metric label for a request path.
func endpointName(p string) string {
	if p == "" || p == "/" {
		return "root"
	}
	return path.Base(p)
}
