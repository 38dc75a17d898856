// Package shadow rebuilds the local copy of the remote wiki's page and
// redirect lists, either from the remote API or from a dump file.
package shadow

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ppiankov/wikimirror/internal/log"
	"github.com/ppiankov/wikimirror/internal/registry"
	"github.com/ppiankov/wikimirror/internal/remote"
	"github.com/ppiankov/wikimirror/internal/response"
)

// redirectBatch is how many titles are resolved per redirects=1 query
const redirectBatch = 50

// Stats summarizes a refresh
type Stats struct {
	Pages     int `json:"pages"`
	Redirects int `json:"redirects"`
}

// Refresher replaces the shadow tables
type Refresher struct {
	remote   remote.Caller
	registry *registry.Store
	logger   zerolog.Logger
}

// NewRefresher creates a refresher
func NewRefresher(caller remote.Caller, reg *registry.Store) *Refresher {
	return &Refresher{
		remote:   caller,
		registry: reg,
		logger:   log.WithComponent("shadow"),
	}
}

type allPages struct {
	AllPages []struct {
		PageID int64  `json:"pageid"`
		NS     int    `json:"ns"`
		Title  string `json:"title"`
	} `json:"allpages"`
}

// FromAPI lists every page of the given namespaces through list=allpages and
// resolves redirect targets, then swaps the shadow tables
func (r *Refresher) FromAPI(ctx context.Context, namespaces []int) (*Stats, error) {
	var pages []registry.RemotePage
	var redirects []registry.RemoteRedirect

	for _, ns := range namespaces {
		nsPages, err := r.listPages(ctx, ns, "all")
		if err != nil {
			return nil, err
		}
		pages = append(pages, nsPages...)

		sources, err := r.listPages(ctx, ns, "redirects")
		if err != nil {
			return nil, err
		}
		nsRedirects, err := r.resolveRedirects(ctx, sources)
		if err != nil {
			return nil, err
		}
		redirects = append(redirects, nsRedirects...)

		r.logger.Info().Int("namespace", ns).Int("pages", len(nsPages)).Int("redirects", len(nsRedirects)).Msg("listed namespace")
	}

	if err := r.registry.ReplaceRemotePages(pages, redirects); err != nil {
		return nil, fmt.Errorf("replace remote pages: %w", err)
	}
	return &Stats{Pages: len(pages), Redirects: len(redirects)}, nil
}

func (r *Refresher) listPages(ctx context.Context, ns int, filter string) ([]registry.RemotePage, error) {
	params := map[string]string{
		"action":        "query",
		"list":          "allpages",
		"apnamespace":   strconv.Itoa(ns),
		"apfilterredir": filter,
		"aplimit":       "max",
	}

	var pages []registry.RemotePage
	for {
		envelope, err := r.remote.CallTopLevel(ctx, params, "shadow.listPages")
		if err != nil {
			return nil, err
		}

		var list allPages
		if err := json.Unmarshal(envelope["query"], &list); err != nil {
			return nil, fmt.Errorf("%w: allpages: %v", remote.ErrMalformed, err)
		}
		for _, p := range list.AllPages {
			pages = append(pages, registry.RemotePage{
				ID:        p.PageID,
				Namespace: p.NS,
				Title:     response.NewRedirectTarget(&response.RawRedirectTarget{NS: p.NS, Title: p.Title}).DBKey,
			})
		}

		var cont struct {
			APContinue string `json:"apcontinue"`
		}
		if raw, ok := envelope["continue"]; !ok || json.Unmarshal(raw, &cont) != nil || cont.APContinue == "" {
			return pages, nil
		}
		params["apcontinue"] = cont.APContinue
	}
}

func (r *Refresher) resolveRedirects(ctx context.Context, sources []registry.RemotePage) ([]registry.RemoteRedirect, error) {
	var redirects []registry.RemoteRedirect

	for start := 0; start < len(sources); start += redirectBatch {
		batch := sources[start:min(start+redirectBatch, len(sources))]
		pageIDs := make([]string, len(batch))
		for i, p := range batch {
			pageIDs[i] = strconv.FormatInt(p.ID, 10)
		}

		data, err := r.remote.Call(ctx, map[string]string{
			"action":    "query",
			"pageids":   strings.Join(pageIDs, "|"),
			"redirects": "1",
		}, "shadow.resolveRedirects")
		if err != nil {
			return nil, err
		}

		var query response.RawQuery
		if err := json.Unmarshal(data, &query); err != nil {
			return nil, fmt.Errorf("%w: redirects: %v", remote.ErrMalformed, err)
		}

		namespaces := make(map[string]int, len(query.Pages))
		for _, p := range query.Pages {
			namespaces[p.Title] = p.NS
		}
		for _, rd := range query.Redirects {
			from, ok := sourceID(batch, rd.From)
			if !ok {
				continue
			}
			target := response.NewRedirectTarget(&response.RawRedirectTarget{NS: namespaces[rd.To], Title: rd.To})
			redirects = append(redirects, registry.RemoteRedirect{
				From:      from,
				Namespace: target.Namespace,
				Title:     target.DBKey,
			})
		}
	}
	return redirects, nil
}

// sourceID matches a redirects[].from title back to the listed page. from is
// prefixed text, the listed title is a DB key.
func sourceID(batch []registry.RemotePage, from string) (int64, bool) {
	key := strings.ReplaceAll(from, " ", "_")
	for _, p := range batch {
		if p.Title == key || (p.Namespace != 0 && strings.HasSuffix(key, ":"+p.Title)) {
			return p.ID, true
		}
	}
	return 0, false
}

// FromDump reads a gzipped tab-separated dump and swaps the shadow tables.
// The first line is a header; each row is
// page_id, namespace, title and, for redirects, target namespace and title.
func (r *Refresher) FromDump(rd io.Reader) (*Stats, error) {
	gz, err := gzip.NewReader(rd)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	defer gz.Close()

	var pages []registry.RemotePage
	var redirects []registry.RemoteRedirect

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if line == 1 {
			continue
		}
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}

		page, redirect, err := parseRow(text)
		if err != nil {
			r.logger.Warn().Err(err).Int("line", line).Msg("skipping dump row")
			continue
		}
		pages = append(pages, page)
		if redirect != nil {
			redirects = append(redirects, *redirect)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}

	if err := r.registry.ReplaceRemotePages(pages, redirects); err != nil {
		return nil, fmt.Errorf("replace remote pages: %w", err)
	}
	r.logger.Info().Int("pages", len(pages)).Int("redirects", len(redirects)).Msg("loaded dump")
	return &Stats{Pages: len(pages), Redirects: len(redirects)}, nil
}

func parseRow(text string) (registry.RemotePage, *registry.RemoteRedirect, error) {
	fields := strings.Split(text, "\t")
	if len(fields) != 3 && len(fields) != 5 {
		return registry.RemotePage{}, nil, fmt.Errorf("expected 3 or 5 columns, got %d", len(fields))
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return registry.RemotePage{}, nil, fmt.Errorf("bad page id %q", fields[0])
	}
	ns, err := strconv.Atoi(fields[1])
	if err != nil {
		return registry.RemotePage{}, nil, fmt.Errorf("bad namespace %q", fields[1])
	}
	if fields[2] == "" {
		return registry.RemotePage{}, nil, fmt.Errorf("empty title")
	}
	page := registry.RemotePage{ID: id, Namespace: ns, Title: fields[2]}

	if len(fields) == 3 || fields[4] == "" {
		return page, nil, nil
	}
	targetNS, err := strconv.Atoi(fields[3])
	if err != nil {
		return registry.RemotePage{}, nil, fmt.Errorf("bad redirect namespace %q", fields[3])
	}
	return page, &registry.RemoteRedirect{From: id, Namespace: targetNS, Title: fields[4]}, nil
}
