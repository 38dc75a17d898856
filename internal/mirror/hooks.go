package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/wikimirror/internal/model"
)

// Actions permitted on mirrored pages
const (
	ActionRead = "read"
	ActionFork = "fork"
)

// TitleIsKnown reports whether the remote page shadow table lists t, so
// links to it render as existing
func (m *Mirror) TitleIsKnown(t model.Title) bool {
	record, err := m.PageRecord(t)
	if err != nil {
		m.logger.Warn().Err(err).Str("title", t.Key()).Msg("remote page lookup failed")
		return false
	}
	return record != nil
}

// UserCan reports whether action is permitted on t. Mirrored pages only
// allow reading and forking; other titles are left to the local wiki.
func (m *Mirror) UserCan(ctx context.Context, t model.Title, action string) bool {
	if !m.CanMirror(ctx, t, false) {
		return true
	}
	return action == ActionRead || action == ActionFork
}

// Warm resolves a title and primes the page and text caches
func (m *Mirror) Warm(ctx context.Context, text string) (bool, error) {
	t, err := m.codec.Parse(text)
	if err != nil {
		return false, err
	}

	if !m.CanMirror(ctx, t, false) {
		return false, nil
	}
	if _, err := m.GetCachedText(ctx, t); err != nil {
		if errors.Is(err, ErrNotMirrored) {
			return false, nil
		}
		return false, fmt.Errorf("warm %s: %w", t.Key(), err)
	}
	return true, nil
}
