package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ppiankov/wikimirror/internal/cache"
	"github.com/ppiankov/wikimirror/internal/metrics"
	"github.com/ppiankov/wikimirror/internal/model"
	"github.com/ppiankov/wikimirror/internal/remote"
	"github.com/ppiankov/wikimirror/internal/response"
	"github.com/ppiankov/wikimirror/internal/snapshot"
)

const revisionProps = "ids|timestamp|user|userid|size|slotsize|sha1|slotsha1|contentmodel" +
	"|flags|comment|parsedcomment|content|tags|roles"

// GetCachedPage returns remote page info for t. A confirmed absent or
// ineligible page yields ErrNotMirrored; a failed fetch with no stale value
// yields ErrUnavailable.
func (m *Mirror) GetCachedPage(ctx context.Context, t model.Title) (*model.PageInfo, error) {
	name := m.codec.PrefixedText(t)
	if t.IsExternal() || t.Namespace < 0 || t.DBKey == "" {
		return nil, fmt.Errorf("%w: %s cannot exist", ErrNotMirrored, name)
	}

	key := m.cacheKey("remote-info", cache.HashKey(name))
	data, err := m.wan.GetOrPopulate(ctx, key, m.cacheOptions("remote-info"), func(ctx context.Context) ([]byte, error) {
		raw, err := m.getLivePage(ctx, t)
		if err != nil || raw == nil {
			return nil, err
		}
		return json.Marshal(raw)
	})
	if err != nil {
		if errors.Is(err, ErrThrottled) {
			return nil, err
		}
		return nil, unavailable(name, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotMirrored, name)
	}

	var raw response.RawPage
	if err := cache.Decode(data, &raw); err != nil {
		m.logger.Warn().Err(err).Str("title", name).Msg("invalid cached page, fetching live")
		_ = m.wan.Delete(key)
		page, err := m.getLivePage(ctx, t)
		if err != nil {
			return nil, unavailable(name, err)
		}
		if page == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotMirrored, name)
		}
		raw = *page
	}

	info, err := response.NewPageInfo(&raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotMirrored, name, err)
	}
	return info, nil
}

// getLivePage fetches page info and the latest revision. It returns nil for
// titles that are confirmed absent or ineligible.
func (m *Mirror) getLivePage(ctx context.Context, t model.Title) (*response.RawPage, error) {
	name := m.codec.PrefixedText(t)
	logger := m.logger.With().Str("title", name).Logger()

	if !m.isLegal(t) {
		logger.Debug().Msg("external or sensitive page, not mirroring")
		return nil, nil
	}

	if article, ok := m.snapshotArticle(t, name); ok {
		logger.Debug().Msg("loaded page from snapshot")
		return response.PageFromSnapshot(article, m.logger), nil
	}

	if err := m.throttle(ctx, t); err != nil {
		return nil, err
	}

	data, err := m.remote.Call(ctx, map[string]string{
		"action":       "query",
		"prop":         "info|revisions",
		"indexpageids": "1",
		"inprop":       "displaytitle",
		"rvdir":        "older",
		"rvlimit":      "1",
		"rvprop":       revisionProps,
		"rvslots":      "*",
		"titles":       name,
	}, "mirror.getLivePage")
	if err != nil {
		logger.Debug().Err(err).Msg("page could not be fetched from remote")
		return nil, err
	}

	var query response.RawQuery
	if err := json.Unmarshal(data, &query); err != nil {
		return nil, fmt.Errorf("%w: query: %v", remote.ErrMalformed, err)
	}

	if len(query.Interwiki) > 0 {
		logger.Debug().Msg("title is an interwiki on the remote")
		return nil, nil
	}
	if len(query.PageIDs) == 0 || len(query.Pages) == 0 {
		return nil, fmt.Errorf("%w: query without pages", remote.ErrMalformed)
	}
	if id, err := query.PageIDs[0].Int64(); err != nil || id < 0 {
		logger.Debug().Msg("page does not exist on remote")
		return nil, nil
	}

	page := query.Pages[0]
	if page.Redirect {
		target, err := m.redirectTarget(ctx, name)
		if err != nil {
			logger.Debug().Err(err).Msg("unable to fetch redirect info")
			return nil, err
		}
		page.RedirectTarget = target
	}
	return &page, nil
}

// redirectTarget resolves the final target of a remote redirect
func (m *Mirror) redirectTarget(ctx context.Context, name string) (*response.RawRedirectTarget, error) {
	data, err := m.remote.Call(ctx, map[string]string{
		"action":    "query",
		"prop":      "info",
		"titles":    name,
		"redirects": "1",
	}, "mirror.getLivePage")
	if err != nil {
		return nil, err
	}

	var query response.RawQuery
	if err := json.Unmarshal(data, &query); err != nil {
		return nil, fmt.Errorf("%w: query: %v", remote.ErrMalformed, err)
	}
	if len(query.Pages) == 0 {
		return nil, fmt.Errorf("%w: redirect query without pages", remote.ErrMalformed)
	}
	return &response.RawRedirectTarget{NS: query.Pages[0].NS, Title: query.Pages[0].Title}, nil
}

// throttle applies the per-user live fetch limit. Templates and modules are
// exempt, as are command-line callers.
func (m *Mirror) throttle(ctx context.Context, t model.Title) error {
	if m.limiter == nil || model.IsCLI(ctx) {
		return nil
	}
	if t.Namespace == model.NSTemplate || t.Namespace == model.NSModule {
		return nil
	}

	user := model.UserFrom(ctx)
	if user == "" {
		user = "anonymous"
	}
	if !m.limiter.AllowKey(user) {
		metrics.ThrottledTotal.Inc()
		return fmt.Errorf("%w: %s", ErrThrottled, user)
	}
	return nil
}

// snapshotArticle loads the static snapshot of t, resolving its remote page
// id through the shadow table
func (m *Mirror) snapshotArticle(t model.Title, name string) (*snapshot.Article, bool) {
	if !m.snapshots.Enabled() {
		return nil, false
	}

	row, err := m.registry.RemotePage(t)
	if err != nil {
		m.logger.Debug().Err(err).Str("title", name).Msg("no remote_page entry for snapshot lookup")
		return nil, false
	}

	article, ok := m.snapshots.Load(t.Namespace, name, row.ID)
	if ok {
		metrics.SnapshotHitsTotal.Inc()
	}
	return article, ok
}

// GetCachedText returns the rendered text of t with links rewritten to the
// local wiki
func (m *Mirror) GetCachedText(ctx context.Context, t model.Title) (*model.ParsedText, error) {
	name := m.codec.PrefixedText(t)
	key := m.cacheKey("remote-text", cache.HashKey(name))

	data, err := m.wan.GetOrPopulate(ctx, key, m.cacheOptions("remote-text"), func(ctx context.Context) ([]byte, error) {
		raw, err := m.getLiveText(ctx, t)
		if err != nil {
			return nil, err
		}
		return json.Marshal(raw)
	})

	if _, perr := m.GetCachedPage(ctx, t); perr != nil {
		return nil, perr
	}
	if err != nil {
		return nil, unavailable(name, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotMirrored, name)
	}

	var raw response.RawParse
	if err := cache.Decode(data, &raw); err != nil {
		_ = m.wan.Delete(key)
		return nil, unavailable(name, err)
	}

	site, err := m.GetCachedSiteInfo(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Str("title", name).Msg("site info unavailable, links not rewritten")
		site = nil
	}
	return response.NewParsedText(&raw, site, m.links), nil
}

// getLiveText fetches the parse output of the page's latest revision
func (m *Mirror) getLiveText(ctx context.Context, t model.Title) (*response.RawParse, error) {
	page, err := m.GetCachedPage(ctx, t)
	if err != nil {
		return nil, err
	}

	name := m.codec.PrefixedText(t)
	if article, ok := m.snapshotArticle(t, name); ok {
		return response.ParseFromSnapshot(article), nil
	}

	data, err := m.remote.Call(ctx, map[string]string{
		"action":             "parse",
		"oldid":              strconv.FormatInt(page.LastRevID, 10),
		"prop":               "text|langlinks|categories|modules|jsconfigvars|indicators|wikitext|properties",
		"disablelimitreport": "1",
		"disableeditsection": "1",
	}, "mirror.getLiveText")
	if err != nil {
		return nil, err
	}

	var parse response.RawParse
	if err := json.Unmarshal(data, &parse); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", remote.ErrMalformed, err)
	}
	return &parse, nil
}

// GetCachedSiteInfo returns the remote wiki's URL layout and namespaces
func (m *Mirror) GetCachedSiteInfo(ctx context.Context) (*model.SiteInfo, error) {
	key := m.cacheKey("remote-site-info")
	data, err := m.wan.GetOrPopulate(ctx, key, m.cacheOptions("remote-site-info"), func(ctx context.Context) ([]byte, error) {
		return m.remote.Call(ctx, map[string]string{
			"action": "query",
			"meta":   "siteinfo",
			"siprop": "general|namespaces|namespacealiases",
		}, "mirror.getLiveSiteInfo")
	})
	if err != nil {
		return nil, unavailable("site info", err)
	}
	if data == nil {
		return nil, unavailable("site info", remote.ErrMalformed)
	}

	var raw response.RawSiteInfo
	if err := cache.Decode(data, &raw); err != nil {
		_ = m.wan.Delete(key)
		return nil, unavailable("site info", err)
	}
	return response.NewSiteInfo(&raw), nil
}
