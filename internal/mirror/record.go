package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/wikimirror/internal/content"
	"github.com/ppiankov/wikimirror/internal/model"
	"github.com/ppiankov/wikimirror/internal/registry"
)

// PageRecord is a mirrored page known from the remote page shadow table. It
// is returned for forked titles too; pair it with CanMirror.
type PageRecord struct {
	row    registry.PageRow
	mirror *Mirror

	mu   sync.Mutex
	info *model.PageInfo
}

// PageRecord returns the shadow record of t, or nil when the page does not
// exist remotely. Lookups, misses included, are memoized.
func (m *Mirror) PageRecord(t model.Title) (*PageRecord, error) {
	key := t.Key()
	if v, ok := m.records.Get(key); ok {
		return v.(*PageRecord), nil
	}

	row, err := m.registry.RemotePage(t)
	if errors.Is(err, registry.ErrNotFound) {
		m.records.SetDefault(key, (*PageRecord)(nil))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	record := &PageRecord{row: *row, mirror: m}
	m.records.SetDefault(key, record)
	return record, nil
}

// ID returns the remote page id
func (r *PageRecord) ID() int64 {
	return r.row.ID
}

// Title returns the page title
func (r *PageRecord) Title() model.Title {
	return r.row.TitleValue()
}

// Exists is always true; records are only built for existing remote pages
func (r *PageRecord) Exists() bool {
	return true
}

// IsRedirect reports whether the shadow table lists the page as a redirect
func (r *PageRecord) IsRedirect() bool {
	return r.row.Redirect != nil
}

// RedirectTarget returns the redirect target from the shadow table
func (r *PageRecord) RedirectTarget() *model.Title {
	if r.row.Redirect == nil {
		return nil
	}
	return &model.Title{Namespace: r.row.Redirect.Namespace, DBKey: r.row.Redirect.Title}
}

// PageInfo fetches the remote page info once
func (r *PageRecord) PageInfo(ctx context.Context) (*model.PageInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.info != nil {
		return r.info, nil
	}
	info, err := r.mirror.GetCachedPage(ctx, r.Title())
	if err != nil {
		return nil, fmt.Errorf("page record %s: %w", r.Title().Key(), err)
	}
	r.info = info
	return info, nil
}

// IsNew reports whether the latest revision has no parent
func (r *PageRecord) IsNew(ctx context.Context) (bool, error) {
	info, err := r.PageInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.Revision == nil || info.Revision.ParentID == 0, nil
}

// Latest returns the latest remote revision id
func (r *PageRecord) Latest(ctx context.Context) (int64, error) {
	info, err := r.PageInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.LastRevID, nil
}

// Touched returns when the remote page last changed
func (r *PageRecord) Touched(ctx context.Context) (time.Time, error) {
	info, err := r.PageInfo(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if info.Touched == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	return info.TouchedTime()
}

// Language returns the remote page language
func (r *PageRecord) Language(ctx context.Context) (model.Language, error) {
	info, err := r.PageInfo(ctx)
	if err != nil {
		return model.Language{}, err
	}
	return info.Language, nil
}

// Render builds the parser output of the page
func (r *PageRecord) Render(ctx context.Context) (*content.ParserOutput, error) {
	info, err := r.PageInfo(ctx)
	if err != nil {
		return nil, err
	}
	return r.mirror.render(ctx, r.Title(), info)
}

// Content returns the page body for t
func (m *Mirror) Content(ctx context.Context, t model.Title) (*content.Content, error) {
	info, err := m.GetCachedPage(ctx, t)
	if err != nil {
		return nil, err
	}
	return m.content(ctx, t, info)
}

// Render builds the parser output of a mirrored page
func (m *Mirror) Render(ctx context.Context, t model.Title) (*content.ParserOutput, error) {
	info, err := m.GetCachedPage(ctx, t)
	if err != nil {
		return nil, err
	}
	return m.render(ctx, t, info)
}

func (m *Mirror) content(ctx context.Context, t model.Title, info *model.PageInfo) (*content.Content, error) {
	text, err := m.GetCachedText(ctx, t)
	if err != nil {
		return nil, err
	}
	pageURL, err := m.PageURL(t)
	if err != nil {
		return nil, err
	}
	return content.New(info, text, pageURL), nil
}

func (m *Mirror) render(ctx context.Context, t model.Title, info *model.PageInfo) (*content.ParserOutput, error) {
	body, err := m.content(ctx, t, info)
	if err != nil {
		return nil, err
	}
	return m.handler.ParserOutput(body)
}

// Revision returns the latest remote revision of t
func (m *Mirror) Revision(ctx context.Context, t model.Title) (*content.Revision, error) {
	body, err := m.Content(ctx, t)
	if err != nil {
		return nil, err
	}
	return content.NewRevision(body.Page, body)
}

// HistoryURL returns the remote history URL that replaces local history
func (m *Mirror) HistoryURL(ctx context.Context, t model.Title) (string, error) {
	if _, err := m.GetCachedPage(ctx, t); err != nil {
		return "", err
	}
	pageURL, err := m.PageURL(t)
	if err != nil {
		return "", err
	}
	return content.HistoryURL(pageURL), nil
}
