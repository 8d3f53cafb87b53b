package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/statesync/internal/eventbus"
	"pkt.systems/statesync/internal/querycache"
)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second
	// DefaultStaleTime is how long a cached query result is served without refetching.
	DefaultStaleTime = 30 * time.Second
)

// Scope is the cache scope for HTTP-backed resources.
const Scope = "api"

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      *querycache.Cache
	Bus        *eventbus.Bus
	StaleTime  time.Duration
	Logger     pslog.Logger
}

// Client talks to the REST side of the server and keeps query results in
// the shared cache.
type Client struct {
	baseURL   string
	http      *http.Client
	cache     *querycache.Cache
	bus       *eventbus.Bus
	staleTime time.Duration
	log       pslog.Logger
}

// New constructs a Client. BaseURL must be absolute.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("apiclient: absolute http(s) base url required, got %q", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	cache := opts.Cache
	if cache == nil {
		cache = querycache.New()
	}
	staleTime := opts.StaleTime
	if staleTime <= 0 {
		staleTime = DefaultStaleTime
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Client{
		baseURL:   base,
		http:      httpClient,
		cache:     cache,
		bus:       opts.Bus,
		staleTime: staleTime,
		log:       logger.With("api", base),
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Cache returns the cache the client reads through.
func (c *Client) Cache() *querycache.Cache { return c.cache }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// APIError is a non-2xx or success=false response. Message is empty unless
// the server supplied one; Status carries the transport status line.
type APIError struct {
	StatusCode int
	Status     string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	detail := e.Message
	if detail == "" {
		detail = e.Status
	}
	if detail == "" {
		detail = "request was not successful"
	}
	if e.Code != "" {
		return fmt.Sprintf("api error (%d %s): %s", e.StatusCode, e.Code, detail)
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, detail)
}

// AsAPIError unwraps an *APIError from err.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	apiErr := AsAPIError(err)
	return apiErr != nil && apiErr.StatusCode == http.StatusNotFound
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("api request failed", "method", method, "path", path, "err", err)
		return err
	}
	defer resp.Body.Close()
	c.log.Trace("api request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if errors.Is(err, io.EOF) && out == nil {
			return nil
		}
		return fmt.Errorf("apiclient: decode %s %s: %w", method, path, err)
	}
	if !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = strings.TrimSpace(env.Error.Message)
		}
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s data: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}
	if env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = strings.TrimSpace(env.Error.Message)
	}
	return apiErr
}

// query serves key from the cache while fresh and otherwise fetches path,
// storing the result.
func query[T any](ctx context.Context, c *Client, key querycache.Key, path string) (T, error) {
	if c.cache.IsFresh(key, c.staleTime) {
		if value, ok := c.cache.Get(key); ok {
			if typed, ok := value.(T); ok {
				return typed, nil
			}
		}
	}
	var out T
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		var zero T
		return zero, err
	}
	c.cache.Set(key, out)
	return out, nil
}

// mutation describes the user-facing outcome of one write.
type mutation struct {
	success  string
	fallback string
}

// report publishes the mutation outcome and returns err unchanged.
func (c *Client) report(m mutation, err error) error {
	if err != nil {
		message := m.fallback
		if apiErr := AsAPIError(err); apiErr != nil && apiErr.Message != "" {
			message = apiErr.Message
		}
		c.log.Warn("api mutation failed", "op", m.fallback, "err", err)
		if c.bus != nil {
			c.bus.Error("Error", message)
		}
		return err
	}
	if c.bus != nil && m.success != "" {
		c.bus.Success("Success", m.success)
	}
	return nil
}

func key(kind string, id ...string) querycache.Key {
	return querycache.Key{Scope: Scope, Kind: kind, ID: strings.Join(id, "/")}
}

func escape(segment string) string {
	return url.PathEscape(strings.TrimSpace(segment))
}

func requireID(what, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id is required", what)
	}
	return nil
}
