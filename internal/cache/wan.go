package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/wikimirror/internal/log"
	"github.com/ppiankov/wikimirror/internal/metrics"
)

// PopulateFunc computes a value on a cache miss. A nil value with a nil error
// is a legitimate negative and is cached like any other value; an error is a
// transient failure and is never cached.
type PopulateFunc func(ctx context.Context) ([]byte, error)

// Options control a single GetOrPopulate call
type Options struct {
	// Kind labels the entry in logs and metrics
	Kind string
	// TTL is how long a positive value is fresh
	TTL time.Duration
	// NegativeTTL is how long a negative value is fresh; zero means TTL
	NegativeTTL time.Duration
	// StaleTTL is how long past freshness a value may still be served when
	// populating fails
	StaleTTL time.Duration
	// ProcessTTL enables the process-local tier when non-zero
	ProcessTTL time.Duration
	// ProcessGroup selects the bounded process-local LRU
	ProcessGroup string
	// LockTimeout bounds how long a caller waits for another caller's
	// in-flight populate before running its own
	LockTimeout time.Duration
}

type envelope struct {
	Value      json.RawMessage `json:"v"`
	FreshUntil time.Time       `json:"f"`
	StaleUntil time.Time       `json:"s"`
}

func (e *envelope) payload() []byte {
	if len(e.Value) == 0 || string(e.Value) == "null" {
		return nil
	}
	return e.Value
}

type processEntry struct {
	env     *envelope
	expires time.Time
}

// WAN is a get-or-populate cache over a shared store, with stampede
// protection, stale-on-error serving and a bounded process-local tier.
type WAN struct {
	store    Cache
	flights  singleflight.Group
	capacity int

	mu     sync.Mutex
	groups map[string]*lru.Cache

	now    func() time.Time
	logger zerolog.Logger
}

// NewWAN wraps a shared store. processCapacity bounds each process-local group.
func NewWAN(store Cache, processCapacity int) *WAN {
	if processCapacity <= 0 {
		processCapacity = 600
	}
	return &WAN{
		store:    store,
		capacity: processCapacity,
		groups:   make(map[string]*lru.Cache),
		now:      time.Now,
		logger:   log.WithComponent("cache"),
	}
}

// ErrInvalidValue is returned by Decode for entries that do not unmarshal
var ErrInvalidValue = errors.New("invalid cached value")

// GetOrPopulate returns the cached value for key, calling populate on a miss.
// A nil result with a nil error is a cached negative.
func (w *WAN) GetOrPopulate(ctx context.Context, key string, opts Options, populate PopulateFunc) ([]byte, error) {
	now := w.now()

	if opts.ProcessTTL > 0 {
		if env, ok := w.processGet(opts.ProcessGroup, key, now); ok {
			metrics.CacheLookupsTotal.WithLabelValues(opts.Kind, "process").Inc()
			return env.payload(), nil
		}
	}

	var stale *envelope
	if env, ok := w.storeGet(key); ok {
		if now.Before(env.FreshUntil) {
			w.hit(opts, key, env, now)
			return env.payload(), nil
		}
		if now.Before(env.StaleUntil) {
			stale = env
		}
	}
	metrics.CacheLookupsTotal.WithLabelValues(opts.Kind, "miss").Inc()

	env, err := w.populate(ctx, key, opts, populate)
	if err != nil {
		metrics.CachePopulateErrorsTotal.WithLabelValues(opts.Kind).Inc()
		if stale != nil {
			metrics.CacheLookupsTotal.WithLabelValues(opts.Kind, "stale").Inc()
			w.logger.Debug().Err(err).Str("key", key).Msg("serving stale value")
			return stale.payload(), nil
		}
		return nil, err
	}

	if opts.ProcessTTL > 0 {
		w.processSet(opts.ProcessGroup, key, env, opts.ProcessTTL)
	}
	return env.payload(), nil
}

// Delete drops key from every tier
func (w *WAN) Delete(key string) error {
	w.mu.Lock()
	for _, group := range w.groups {
		group.Remove(key)
	}
	w.mu.Unlock()
	return w.store.Delete(key)
}

func (w *WAN) hit(opts Options, key string, env *envelope, now time.Time) {
	result := "hit"
	if env.payload() == nil {
		result = "negative"
	}
	metrics.CacheLookupsTotal.WithLabelValues(opts.Kind, result).Inc()
	w.logger.Debug().Str("key", key).Str("result", result).Msg("cache lookup")

	if opts.ProcessTTL > 0 {
		ttl := opts.ProcessTTL
		if remaining := env.FreshUntil.Sub(now); remaining < ttl {
			ttl = remaining
		}
		w.processSet(opts.ProcessGroup, key, env, ttl)
	}
}

// populate collapses concurrent misses for the same key into one call. The
// shared call ignores the cancellation of whichever caller started it; each
// caller still stops waiting when its own ctx ends. A waiter that outlives
// LockTimeout runs its own populate.
func (w *WAN) populate(ctx context.Context, key string, opts Options, populate PopulateFunc) (*envelope, error) {
	fill := func(ctx context.Context) (*envelope, error) {
		value, err := populate(ctx)
		if err != nil {
			return nil, err
		}
		return w.write(key, opts, value), nil
	}

	shared := context.WithoutCancel(ctx)
	ch := w.flights.DoChan(key, func() (interface{}, error) {
		return fill(shared)
	})

	var timeout <-chan time.Time
	if opts.LockTimeout > 0 {
		timer := time.NewTimer(opts.LockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*envelope), nil
	case <-timeout:
		w.logger.Warn().Str("key", key).Dur("timeout", opts.LockTimeout).Msg("populate lock timed out, fetching independently")
		return fill(ctx)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *WAN) write(key string, opts Options, value []byte) *envelope {
	now := w.now()
	ttl := opts.TTL
	raw := json.RawMessage("null")
	if value != nil {
		raw = json.RawMessage(value)
	} else if opts.NegativeTTL > 0 {
		ttl = opts.NegativeTTL
	}

	env := &envelope{
		Value:      raw,
		FreshUntil: now.Add(ttl),
		StaleUntil: now.Add(ttl + opts.StaleTTL),
	}

	data, err := json.Marshal(env)
	if err != nil {
		w.logger.Warn().Err(err).Str("key", key).Msg("cannot encode cache entry")
		return env
	}
	if err := w.store.Set(key, data, ttl+opts.StaleTTL); err != nil {
		w.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return env
}

func (w *WAN) storeGet(key string) (*envelope, bool) {
	data, ok := w.store.Get(key)
	if !ok {
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		w.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		_ = w.store.Delete(key)
		return nil, false
	}
	return &env, true
}

func (w *WAN) group(name string) *lru.Cache {
	w.mu.Lock()
	defer w.mu.Unlock()

	g, ok := w.groups[name]
	if !ok {
		// lru.New only fails for a non-positive size
		g, _ = lru.New(w.capacity)
		w.groups[name] = g
	}
	return g
}

func (w *WAN) processGet(group, key string, now time.Time) (*envelope, bool) {
	v, ok := w.group(group).Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(processEntry)
	if now.After(entry.expires) {
		w.group(group).Remove(key)
		return nil, false
	}
	return entry.env, true
}

func (w *WAN) processSet(group, key string, env *envelope, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	w.group(group).Add(key, processEntry{env: env, expires: w.now().Add(ttl)})
}

// Decode unmarshals a cached payload into v
func Decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Join(ErrInvalidValue, err)
	}
	return nil
}
