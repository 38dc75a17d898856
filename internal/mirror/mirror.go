// Package mirror decides which titles are served from the remote wiki and
// fetches, normalizes and caches their data.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/ppiankov/wikimirror/internal/cache"
	"github.com/ppiankov/wikimirror/internal/content"
	"github.com/ppiankov/wikimirror/internal/log"
	"github.com/ppiankov/wikimirror/internal/model"
	"github.com/ppiankov/wikimirror/internal/registry"
	"github.com/ppiankov/wikimirror/internal/remote"
	"github.com/ppiankov/wikimirror/internal/response"
	"github.com/ppiankov/wikimirror/internal/snapshot"
	"github.com/ppiankov/wikimirror/internal/worker"
)

var (
	// ErrUnavailable means the remote data could not be fetched and no stale
	// copy was available
	ErrUnavailable = errors.New("mirror unavailable")
	// ErrNotMirrored means the title was confirmed absent or ineligible
	// remotely. This result is cached.
	ErrNotMirrored = errors.New("title is not mirrored")
	// ErrThrottled means the acting user exceeded the live fetch limit
	ErrThrottled = errors.New("mirror rate limit exceeded")
)

const processGroup = "mirror"

// Host is the local wiki the mirror serves into. Implementations may call
// back into the mirror with the context they were given.
type Host interface {
	// PageExists reports whether t is stored locally
	PageExists(ctx context.Context, t model.Title) (bool, error)
	// RedirectTarget returns the target of a local redirect, or nil
	RedirectTarget(ctx context.Context, t model.Title) (*model.Title, error)
}

// Remote is the remote wiki API as used by the mirror
type Remote interface {
	remote.Caller
	Interwiki() (*remote.Interwiki, error)
}

// Deps are the collaborators of a Mirror
type Deps struct {
	Config    model.Config
	Remote    Remote
	Cache     *cache.WAN
	Registry  *registry.Store
	Host      Host
	Codec     *model.TitleCodec
	Snapshots *snapshot.Store
	// UserLimiter throttles live page fetches per user; nil disables it
	UserLimiter *worker.Limiter
}

// Mirror is the mirror resolution engine
type Mirror struct {
	cfg       model.MirrorConfig
	local     model.LocalConfig
	remote    Remote
	wan       *cache.WAN
	registry  *registry.Store
	host      Host
	codec     *model.TitleCodec
	snapshots *snapshot.Store
	limiter   *worker.Limiter
	links     response.LinkResolver
	handler   *content.Handler

	excluded map[int]bool
	memo     *gocache.Cache
	records  *gocache.Cache

	logger zerolog.Logger
}

// New creates a mirror
func New(d Deps) *Mirror {
	cfg := d.Config.Mirror

	excluded := map[int]bool{
		model.NSFile:        true,
		model.NSMediaWiki:   true,
		model.NSProject:     true,
		model.NSProjectTalk: true,
	}
	for _, ns := range cfg.ExcludeNamespaces {
		excluded[ns] = true
	}

	memoTTL := cfg.MemoTTL
	if memoTTL <= 0 {
		memoTTL = 5 * time.Minute
	}

	return &Mirror{
		cfg:       cfg,
		local:     d.Config.Local,
		remote:    d.Remote,
		wan:       d.Cache,
		registry:  d.Registry,
		host:      d.Host,
		codec:     d.Codec,
		snapshots: d.Snapshots,
		limiter:   d.UserLimiter,
		links:     response.NewLocalLinks(d.Codec, d.Config.Local.ArticlePath, d.Config.Local.ScriptPath),
		handler:   content.NewHandler(),
		excluded:  excluded,
		memo:      gocache.New(memoTTL, 2*memoTTL),
		records:   gocache.New(memoTTL, 2*memoTTL),
		logger:    log.WithComponent("mirror"),
	}
}

// Codec returns the title codec the mirror resolves titles with
func (m *Mirror) Codec() *model.TitleCodec {
	return m.codec
}

// Registry returns the fork registry
func (m *Mirror) Registry() *registry.Store {
	return m.registry
}

// Remote returns the remote API client
func (m *Mirror) Remote() Remote {
	return m.remote
}

// PageURL returns the article URL of t on the remote wiki
func (m *Mirror) PageURL(t model.Title) (string, error) {
	iw, err := m.remote.Interwiki()
	if err != nil {
		return "", err
	}
	return iw.ArticleURL(m.codec.PrefixedDBKey(t)), nil
}

// WikiID returns the remote wiki's id
func (m *Mirror) WikiID() (string, error) {
	iw, err := m.remote.Interwiki()
	if err != nil {
		return "", err
	}
	return iw.WikiID, nil
}

// Interwiki returns the interwiki prefix of the remote wiki
func (m *Mirror) Interwiki() (string, error) {
	iw, err := m.remote.Interwiki()
	if err != nil {
		return "", err
	}
	return iw.Prefix, nil
}

func (m *Mirror) cacheKey(kind string, parts ...string) string {
	return cache.MakeKey(m.cfg.CacheVersion, append([]string{"mirror", kind}, parts...)...)
}

func (m *Mirror) cacheOptions(kind string) cache.Options {
	return cache.Options{
		Kind:         kind,
		TTL:          m.cfg.CacheTTL,
		NegativeTTL:  m.cfg.NegativeTTL,
		StaleTTL:     m.cfg.StaleTTL,
		ProcessTTL:   m.cfg.ProcessTTL,
		ProcessGroup: processGroup,
		LockTimeout:  m.cfg.LockTimeout,
	}
}

// isLegal reports whether t may ever be mirrored, without checking whether
// it exists anywhere
func (m *Mirror) isLegal(t model.Title) bool {
	illegal := t.IsExternal() ||
		t.Namespace < 0 ||
		m.excluded[t.Namespace] ||
		t.IsUserConfigPage()
	return !illegal
}

func unavailable(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, name, err)
}
