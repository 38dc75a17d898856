package mirror

import (
	"context"
	"errors"

	"github.com/ppiankov/wikimirror/internal/metrics"
	"github.com/ppiankov/wikimirror/internal/model"
)

// Result is the outcome of evaluating whether a title can be mirrored
type Result int

const (
	Unevaluated Result = iota
	// RecursionGuard is seen by re-entrant evaluations of the same title
	RecursionGuard
	IllegalTitle
	LocallyForked
	ErroredFast
	ErroredSlow
	FastValid
	Valid
)

var resultNames = [...]string{
	Unevaluated:    "unevaluated",
	RecursionGuard: "recursion_guard",
	IllegalTitle:   "illegal_title",
	LocallyForked:  "forked",
	ErroredFast:    "fast_errored",
	ErroredSlow:    "errored",
	FastValid:      "fast_valid",
	Valid:          "valid",
}

func (r Result) String() string {
	if r < 0 || int(r) >= len(resultNames) {
		return "unknown"
	}
	return resultNames[r]
}

// Mirrorable reports whether the result allows mirroring
func (r Result) Mirrorable() bool {
	return r == Valid || r == FastValid
}

// IsFast reports whether the result came from a fast evaluation. Fast
// results never satisfy a slow lookup.
func (r Result) IsFast() bool {
	return r == FastValid || r == ErroredFast
}

// guard is an immutable chain of titles under evaluation on one call path
type guard struct {
	key    string
	parent *guard
}

type guardKey struct{}

func withGuard(ctx context.Context, key string) context.Context {
	parent, _ := ctx.Value(guardKey{}).(*guard)
	return context.WithValue(ctx, guardKey{}, &guard{key: key, parent: parent})
}

func guarded(ctx context.Context, key string) bool {
	for g, _ := ctx.Value(guardKey{}).(*guard); g != nil; g = g.parent {
		if g.key == key {
			return true
		}
	}
	return false
}

func (m *Mirror) memoKey(t model.Title) string {
	return m.codec.PrefixedDBKey(t)
}

// CanMirror reports whether t is served from the remote wiki. Fast mode
// consults only the remote page shadow table; slow mode fetches the page.
func (m *Mirror) CanMirror(ctx context.Context, t model.Title, fast bool) bool {
	return m.Resolve(ctx, t, fast).Mirrorable()
}

// Resolve evaluates t, reusing a memoized result when it is at least as
// authoritative as the requested mode
func (m *Mirror) Resolve(ctx context.Context, t model.Title, fast bool) Result {
	key := m.memoKey(t)
	if guarded(ctx, key) {
		return RecursionGuard
	}

	if v, ok := m.memo.Get(key); ok {
		cached := v.(Result)
		if fast || !cached.IsFast() {
			return cached
		}
	}

	result, stable := m.evaluate(withGuard(ctx, key), t, fast)
	if stable {
		m.memo.SetDefault(key, result)
	}
	metrics.CanMirrorTotal.WithLabelValues(result.String()).Inc()
	m.logger.Debug().Str("title", key).Bool("fast", fast).Stringer("result", result).Msg("evaluated title")
	return result
}

// evaluate reports whether the result is stable. Lookup failures and
// transient remote errors are not, and are evaluated again on the next call.
func (m *Mirror) evaluate(ctx context.Context, t model.Title, fast bool) (Result, bool) {
	errored := ErroredSlow
	if fast {
		errored = ErroredFast
	}

	if !m.isLegal(t) {
		return IllegalTitle, true
	}

	exists, err := m.host.PageExists(ctx, t)
	if err != nil {
		m.logger.Warn().Err(err).Str("title", t.Key()).Msg("local existence check failed")
		return errored, false
	}
	if exists {
		return LocallyForked, true
	}

	forked, err := m.registry.IsForked(t)
	if err != nil {
		m.logger.Warn().Err(err).Str("title", t.Key()).Msg("fork registry lookup failed")
		return errored, false
	}
	if forked {
		return LocallyForked, true
	}

	if fast {
		record, err := m.PageRecord(t)
		if err != nil {
			m.logger.Warn().Err(err).Str("title", t.Key()).Msg("remote page lookup failed")
			return ErroredFast, false
		}
		if record == nil {
			return ErroredFast, true
		}
		return FastValid, true
	}

	if _, err := m.GetCachedPage(ctx, t); err != nil {
		return ErroredSlow, errors.Is(err, ErrNotMirrored)
	}
	return Valid, true
}

// Status returns the memoized result for t without evaluating it
func (m *Mirror) Status(ctx context.Context, t model.Title) Result {
	key := m.memoKey(t)
	if guarded(ctx, key) {
		return RecursionGuard
	}
	if v, ok := m.memo.Get(key); ok {
		return v.(Result)
	}
	return Unevaluated
}

// IsForked reports whether t is stored locally or recorded as forked
func (m *Mirror) IsForked(ctx context.Context, t model.Title) bool {
	return m.Resolve(ctx, t, true) == LocallyForked
}

// MarkForImport records that t is about to be imported so concurrent
// readers stop mirroring it
func (m *Mirror) MarkForImport(t model.Title) {
	m.memo.SetDefault(m.memoKey(t), LocallyForked)
}

// Invalidate drops memoized state for t after its fork status changed
func (m *Mirror) Invalidate(t model.Title) {
	m.memo.Delete(m.memoKey(t))
	m.records.Delete(t.Key())
}
