package shadow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/ppiankov/wikimirror/internal/worker"
)

// ErrDisallowed is returned when the dump host's robots.txt forbids the URL
var ErrDisallowed = errors.New("dump URL disallowed by robots.txt")

// robotsPolicy caches robots.txt per host
type robotsPolicy struct {
	mu         sync.RWMutex
	hosts      map[string]*robotstxt.RobotsData
	httpClient *http.Client
	userAgent  string
}

func newRobotsPolicy(client *http.Client, userAgent string) *robotsPolicy {
	return &robotsPolicy{
		hosts:      make(map[string]*robotstxt.RobotsData),
		httpClient: client,
		userAgent:  userAgent,
	}
}

// check reports whether u may be fetched and the crawl delay to honour.
// An unreachable robots.txt allows everything.
func (p *robotsPolicy) check(ctx context.Context, u *url.URL) (bool, time.Duration) {
	data, err := p.load(ctx, u)
	if err != nil {
		return true, 0
	}

	agent := productToken(p.userAgent)
	allowed := data.TestAgent(u.Path, agent)
	var delay time.Duration
	if group := data.FindGroup(agent); group != nil {
		delay = group.CrawlDelay
	}
	return allowed, delay
}

func (p *robotsPolicy) load(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	p.mu.RLock()
	data, ok := p.hosts[u.Host]
	p.mu.RUnlock()
	if ok {
		return data, nil
	}

	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	p.mu.Lock()
	p.hosts[u.Host] = data
	p.mu.Unlock()
	return data, nil
}

// productToken reduces "WikiMirror/0.1 (+url)" to "WikiMirror"
func productToken(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	return strings.Split(parts[0], "/")[0]
}

// Downloader fetches dump files over HTTP
type Downloader struct {
	httpClient *http.Client
	robots     *robotsPolicy
	limiter    *worker.Limiter
	userAgent  string
}

// NewDownloader creates a downloader. limiter may be nil.
func NewDownloader(client *http.Client, userAgent string, limiter *worker.Limiter) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Downloader{
		httpClient: client,
		robots:     newRobotsPolicy(client, userAgent),
		limiter:    limiter,
		userAgent:  userAgent,
	}
}

// Open starts downloading rawURL. The caller closes the body.
func (d *Downloader) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse dump URL: %w", err)
	}

	allowed, delay := d.robots.check(ctx, u)
	if !allowed {
		return nil, fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
	}
	if d.limiter != nil {
		if err := d.limiter.WaitWithDelay(ctx, rawURL, delay); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dump: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch dump: unexpected status: %d %s", resp.StatusCode, resp.Status)
	}
	return resp.Body, nil
}
