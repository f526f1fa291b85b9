package sensorist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL        = "https://api.sensorist.com/v1"
	DefaultRequestTimeout = 30 * time.Second
)

// Client is the single authenticated session against the Sensorist API.
type Client struct {
	baseURL string
	client  *http.Client
	limit   *rate.Limiter
	timeout time.Duration
	log     *zap.Logger

	mu       sync.Mutex
	username string
	password string
	data     json.RawMessage
}

type Option func(c *Client) error

func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		limit:   rate.NewLimiter(rate.Inf, 1),
		timeout: DefaultRequestTimeout,
		log:     zap.L(),
	}

	// apply the options
	for _, o := range opts {
		err := o(c)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("sensorist: invalid base url: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("sensorist: invalid base url %q", baseURL)
		}
		c.baseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

func WithCredentials(username, password string) Option {
	return func(c *Client) error {
		c.Authenticate(username, password)
		return nil
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.client = hc
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		c.log = l
		return nil
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout > 0 {
			c.timeout = timeout
		}
		return nil
	}
}

// WithMinRequestInterval spaces outgoing requests at least interval apart.
func WithMinRequestInterval(interval time.Duration) Option {
	return func(c *Client) error {
		if interval > 0 {
			c.limit = rate.NewLimiter(rate.Every(interval), 1)
		}
		return nil
	}
}

// Authenticate sets basic auth credentials. If either value is empty the
// client makes anonymous requests.
func (c *Client) Authenticate(username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if username == "" || password == "" {
		c.log.Debug("sensorist: no credentials, using anonymous requests")
		c.username, c.password = "", ""
		return
	}
	c.username, c.password = username, password
}

// Test checks that the configured credentials can access the API.
func (c *Client) Test(ctx context.Context) (json.RawMessage, error) {
	c.log.Debug("sensorist: test")
	resp, err := c.Users(ctx)
	if err != nil {
		if remoteErr, ok := IsRemoteError(err); ok {
			switch {
			case remoteErr.StatusCode == http.StatusUnauthorized || remoteErr.StatusCode == http.StatusForbidden:
				return nil, fmt.Errorf("%w: %w", ErrInvalidAuth, err)
			case remoteErr.StatusCode >= http.StatusInternalServerError:
				// outage, not a credential problem
				return nil, fmt.Errorf("%w: %w", ErrCannotConnect, err)
			}
		}
		return nil, err
	}
	if isFalsy(resp) {
		return nil, fmt.Errorf("%w: empty users response", ErrInvalidAuth)
	}
	return resp, nil
}

// Users returns the user information for the configured credentials.
func (c *Client) Users(ctx context.Context) (json.RawMessage, error) {
	var body json.RawMessage
	if err := c.request(ctx, c.endpoint("/users"), &body); err != nil {
		return nil, err
	}
	return body, nil
}

// ListGateways returns the gateway → device → sensor tree of the account.
func (c *Client) ListGateways(ctx context.Context) (*GatewayTree, error) {
	var tree GatewayTree
	if err := c.request(ctx, c.endpoint("/gateways"), &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// GetSensorData returns the latest measurement of one sensor.
func (c *Client) GetSensorData(ctx context.Context, sensorID string) (*MeasurementResponse, error) {
	query := url.Values{}
	query.Set("data_sources", sensorID)
	query.Set("type", "latest")

	var resp MeasurementResponse
	if err := c.request(ctx, c.endpoint("/measurements")+"?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LastResponse returns the last successfully parsed response body.
func (c *Client) LastResponse() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

func (c *Client) credentials() (string, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username, c.password, c.username != ""
}

func (c *Client) request(ctx context.Context, rawURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.Debug("sensorist: request", zap.String("url", rawURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("sensorist: cannot create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if username, password, ok := c.credentials(); ok {
		req.SetBasicAuth(username, password)
	}

	// apply the ratelimit
	if err := c.limit.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.log.Debug("sensorist: bad status", zap.String("url", rawURL), zap.Int("status", resp.StatusCode))
		return &RemoteError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        rawURL,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}
	if !json.Valid(body) {
		return fmt.Errorf("%w: body is not json", ErrMalformedResponse)
	}

	c.mu.Lock()
	c.data = body
	c.mu.Unlock()

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
	}
	return nil
}

func isFalsy(body json.RawMessage) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return true
	}
	switch value := v.(type) {
	case nil:
		return true
	case bool:
		return !value
	case float64:
		return value == 0
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	}
	return false
}
