package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/ppiankov/wikimirror/internal/cache"
	"github.com/ppiankov/wikimirror/internal/fork"
	"github.com/ppiankov/wikimirror/internal/localwiki"
	"github.com/ppiankov/wikimirror/internal/mirror"
	"github.com/ppiankov/wikimirror/internal/model"
	"github.com/ppiankov/wikimirror/internal/registry"
	"github.com/ppiankov/wikimirror/internal/remote"
	"github.com/ppiankov/wikimirror/internal/search"
	"github.com/ppiankov/wikimirror/internal/snapshot"
	"github.com/ppiankov/wikimirror/internal/worker"
)

// app holds the collaborators a command works with
type app struct {
	cfg      model.Config
	lookup   remote.StaticInterwiki
	codec    *model.TitleCodec
	client   *remote.Client
	limiter  *worker.Limiter
	registry *registry.Store
	local    *localwiki.Store
	mirrors  *mirror.Lazy
	closers  []io.Closer
}

// newApp opens the registry and local page store. The mirror and its cache
// backend are built on first use.
func newApp(cfg model.Config) (*app, error) {
	lookup := remote.NewStaticInterwiki(cfg.Remote.Interwiki)
	limiter := worker.NewLimiter(cfg.Remote.RequestsPerSecond, cfg.Remote.Burst)
	for _, hr := range cfg.Remote.HostRates {
		limiter.SetRate(hr.Host, hr.RequestsPerSecond, hr.Burst)
	}

	a := &app{
		cfg:     cfg,
		lookup:  lookup,
		codec:   model.NewTitleCodec(model.DefaultNamespaces(cfg.Local.ProjectNamespace), lookup.IsValidPrefix),
		limiter: limiter,
		client: remote.NewClient(cfg.Remote.Wiki, lookup, cfg.Remote.Timeout, cfg.Remote.UserAgent, cfg.Remote.MaxBytes,
			remote.WithLimiter(limiter),
			remote.WithProxy(remote.ProxyFunc(cfg.Remote.HTTPProxy, cfg.Remote.HTTPSProxy)),
		),
	}

	reg, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return nil, err
	}
	a.registry = reg
	a.closers = append(a.closers, reg)

	local, err := localwiki.New(reg.DB(), a.codec)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open local wiki: %w", err)
	}
	a.local = local

	a.mirrors = mirror.NewLazy(a.buildMirror)
	return a, nil
}

func (a *app) buildMirror() (*mirror.Mirror, error) {
	store, err := a.cacheBackend()
	if err != nil {
		return nil, err
	}

	var userLimiter *worker.Limiter
	if a.cfg.Mirror.UserRate > 0 {
		userLimiter = worker.NewLimiter(a.cfg.Mirror.UserRate, a.cfg.Mirror.UserBurst)
	}

	return mirror.New(mirror.Deps{
		Config:      a.cfg,
		Remote:      a.client,
		Cache:       cache.NewWAN(store, a.cfg.Mirror.ProcessCapacity),
		Registry:    a.registry,
		Host:        a.local,
		Codec:       a.codec,
		Snapshots:   snapshot.NewStore(afero.NewOsFs(), a.cfg.Mirror.SnapshotDir),
		UserLimiter: userLimiter,
	}), nil
}

// cacheBackend builds the shared store selected by cache.backend
func (a *app) cacheBackend() (cache.Cache, error) {
	ttl := a.cfg.Mirror.CacheTTL + a.cfg.Mirror.StaleTTL
	switch a.cfg.Cache.Backend {
	case "memory":
		return cache.NewMemoryCache(ttl, 10*time.Minute), nil
	case "disk":
		return cache.NewDiskCache(a.cfg.Cache.Dir, ttl), nil
	case "leveldb":
		store, err := cache.NewLevelCache(a.cfg.Cache.Dir, ttl)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)
		return store, nil
	case "layered", "":
		return cache.NewLayeredCache(a.cfg.Mirror.ProcessTTL, a.cfg.Cache.Dir, ttl), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", a.cfg.Cache.Backend)
	}
}

func (a *app) mirror() (*mirror.Mirror, error) {
	return a.mirrors.Get()
}

func (a *app) forks() (*fork.Service, error) {
	m, err := a.mirror()
	if err != nil {
		return nil, err
	}
	return fork.New(m, a.local, a.cfg.Mirror.ExternalUserPrefix), nil
}

func (a *app) searcher() *search.Searcher {
	return search.New(a.client, a.registry, a.cfg.Mirror.SearchMaxResults)
}

// Close releases the stores in reverse order of opening
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// withApp loads the configuration, opens the app and runs fn with a context
// marked as a command-line invocation
func withApp(timeout time.Duration, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := model.WithCLI(context.Background())
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx, a)
}
