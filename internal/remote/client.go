package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/wikimirror/internal/log"
	"github.com/ppiankov/wikimirror/internal/metrics"
	"github.com/ppiankov/wikimirror/internal/worker"
)

var (
	// ErrTransport marks network, HTTP and decoding failures. These are
	// transient and must not be cached as page-level facts.
	ErrTransport = errors.New("remote transport failure")
	// ErrMalformed marks a decoded response without the expected action key
	ErrMalformed = errors.New("malformed remote response")
	// ErrNotConfigured is returned without network I/O when the remote wiki
	// is unset or cannot be resolved through the interwiki table
	ErrNotConfigured = fmt.Errorf("%w: remote wiki not configured", ErrTransport)
)

// Caller is the subset of Client used by consumers that only issue calls
type Caller interface {
	Call(ctx context.Context, params map[string]string, caller string) (json.RawMessage, error)
	CallTopLevel(ctx context.Context, params map[string]string, caller string) (map[string]json.RawMessage, error)
}

// Client calls the API of the configured remote wiki
type Client struct {
	httpClient *http.Client
	interwiki  InterwikiLookup
	wiki       string
	userAgent  string
	maxBytes   int64
	limiter    *worker.Limiter
	logger     zerolog.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithLimiter throttles outbound requests per remote host
func WithLimiter(l *worker.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithProxy routes requests through the given proxy function
func WithProxy(proxy func(*http.Request) (*url.URL, error)) Option {
	return func(c *Client) {
		c.httpClient.Transport = &http.Transport{Proxy: proxy}
	}
}

// NewClient creates a client for the remote wiki identified by the
// interwiki prefix wiki.
func NewClient(wiki string, interwiki InterwikiLookup, timeout time.Duration, userAgent string, maxBytes int64, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		interwiki: interwiki,
		wiki:      wiki,
		userAgent: userAgent,
		maxBytes:  maxBytes,
		logger:    log.WithComponent("remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Interwiki resolves the configured remote wiki
func (c *Client) Interwiki() (*Interwiki, error) {
	if c.wiki == "" || c.interwiki == nil {
		return nil, ErrNotConfigured
	}
	iw, ok := c.interwiki.Fetch(c.wiki)
	if !ok || iw.API == "" {
		return nil, fmt.Errorf("%w: unknown interwiki prefix %q", ErrNotConfigured, c.wiki)
	}
	return iw, nil
}

// Call issues an API request and returns the value under the action key
func (c *Client) Call(ctx context.Context, params map[string]string, caller string) (json.RawMessage, error) {
	envelope, err := c.CallTopLevel(ctx, params, caller)
	if err != nil {
		return nil, err
	}
	return envelope[params["action"]], nil
}

// CallTopLevel issues an API request and returns the whole decoded envelope.
// The envelope is guaranteed to contain the action key.
func (c *Client) CallTopLevel(ctx context.Context, params map[string]string, caller string) (map[string]json.RawMessage, error) {
	action := params["action"]

	iw, err := c.Interwiki()
	if err != nil {
		c.logger.Warn().Err(err).Str("caller", caller).Str("action", action).Msg("remote call skipped")
		metrics.RemoteRequestsTotal.WithLabelValues(action, "config").Inc()
		return nil, err
	}

	timer := metrics.NewTimer()
	body, err := c.get(ctx, iw.API, params)
	timer.ObserveDuration(metrics.RemoteRequestDuration, action)
	if err != nil {
		c.logger.Warn().Err(err).Str("caller", caller).Str("action", action).Msg("remote call failed")
		metrics.RemoteRequestsTotal.WithLabelValues(action, "transport").Inc()
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		metrics.RemoteRequestsTotal.WithLabelValues(action, "transport").Inc()
		return nil, fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}

	if _, ok := envelope[action]; !ok {
		metrics.RemoteRequestsTotal.WithLabelValues(action, "malformed").Inc()
		return nil, fmt.Errorf("%w: missing %q key%s", ErrMalformed, action, apiErrorSuffix(envelope))
	}

	metrics.RemoteRequestsTotal.WithLabelValues(action, "ok").Inc()
	return envelope, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	reqURL := endpoint + "?" + Encode(params)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, reqURL); err != nil {
			return nil, fmt.Errorf("%w: rate limit: %v", ErrTransport, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrTransport, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status: %d %s", ErrTransport, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	return body, nil
}

// Encode serializes params with the formatting parameters every call carries.
// Keys are sorted so identical calls produce identical URLs.
func Encode(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("format", "json")
	values.Set("formatversion", "2")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(values.Get(k)))
	}
	return b.String()
}

func apiErrorSuffix(envelope map[string]json.RawMessage) string {
	raw, ok := envelope["error"]
	if !ok {
		return ""
	}
	var apiErr struct {
		Code string `json:"code"`
		Info string `json:"info"`
	}
	if err := json.Unmarshal(raw, &apiErr); err != nil {
		return ""
	}
	return fmt.Sprintf(" (api error %s: %s)", apiErr.Code, apiErr.Info)
}
