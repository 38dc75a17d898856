// Package search runs full-text searches against the remote wiki and prefix
// searches against the local copy of its page list.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ppiankov/wikimirror/internal/log"
	"github.com/ppiankov/wikimirror/internal/model"
	"github.com/ppiankov/wikimirror/internal/registry"
	"github.com/ppiankov/wikimirror/internal/remote"
	"github.com/ppiankov/wikimirror/internal/response"
)

// Search kinds, passed as srwhat
const (
	WhatText  = "text"
	WhatTitle = "title"
)

// Query is one search request
type Query struct {
	Term       string
	What       string
	Namespaces []int
	Limit      int
	Offset     int
}

// Result is one remote search hit
type Result struct {
	Title     model.Title `json:"title"`
	PageID    int64       `json:"pageid"`
	Size      int64       `json:"size"`
	WordCount int64       `json:"wordcount"`
	Timestamp string      `json:"timestamp,omitempty"`
	// Snippet is highlighted HTML, matching the search kind
	Snippet string `json:"snippet"`
}

// ResultSet is a page of search results
type ResultSet struct {
	Results   []Result `json:"results"`
	TotalHits int      `json:"totalhits"`
	// More is set when results beyond this page exist
	More bool `json:"more"`
}

type rawSearch struct {
	SearchInfo struct {
		TotalHits int `json:"totalhits"`
	} `json:"searchinfo"`
	Search []struct {
		NS        int    `json:"ns"`
		Title     string `json:"title"`
		PageID    int64  `json:"pageid"`
		Size      int64  `json:"size"`
		WordCount int64  `json:"wordcount"`
		Snippet   string `json:"snippet"`
		Timestamp string `json:"timestamp"`
	} `json:"search"`
}

// Searcher searches the remote wiki
type Searcher struct {
	remote     remote.Caller
	registry   *registry.Store
	maxResults int
	logger     zerolog.Logger
}

// New creates a searcher. maxResults caps srlimit per request.
func New(caller remote.Caller, reg *registry.Store, maxResults int) *Searcher {
	if maxResults <= 0 {
		maxResults = 500
	}
	return &Searcher{
		remote:     caller,
		registry:   reg,
		maxResults: maxResults,
		logger:     log.WithComponent("search"),
	}
}

// Search runs a full-text or title search, following continuation until
// q.Limit results are collected
func (s *Searcher) Search(ctx context.Context, q Query) (*ResultSet, error) {
	if q.What == "" {
		q.What = WhatText
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if len(q.Namespaces) == 0 {
		q.Namespaces = []int{model.NSMain}
	}

	ns := make([]string, len(q.Namespaces))
	for i, id := range q.Namespaces {
		ns[i] = strconv.Itoa(id)
	}
	params := map[string]string{
		"action":      "query",
		"list":        "search",
		"srsearch":    q.Term,
		"srnamespace": strings.Join(ns, "|"),
		"srlimit":     strconv.Itoa(min(q.Limit, s.maxResults)),
		"sroffset":    strconv.Itoa(q.Offset),
		"srwhat":      q.What,
		"srprop":      "size|wordcount|timestamp|snippet",
	}

	set := &ResultSet{}
	for {
		envelope, err := s.remote.CallTopLevel(ctx, params, "search.Search")
		if err != nil {
			return nil, err
		}

		var page rawSearch
		if err := json.Unmarshal(envelope["query"], &page); err != nil {
			return nil, fmt.Errorf("%w: search: %v", remote.ErrMalformed, err)
		}
		set.TotalHits = page.SearchInfo.TotalHits
		for _, hit := range page.Search {
			set.Results = append(set.Results, Result{
				Title:     response.NewRedirectTarget(&response.RawRedirectTarget{NS: hit.NS, Title: hit.Title}).Title(),
				PageID:    hit.PageID,
				Size:      hit.Size,
				WordCount: hit.WordCount,
				Timestamp: hit.Timestamp,
				Snippet:   hit.Snippet,
			})
		}

		next, ok := continuation(envelope["continue"])
		set.More = ok
		if !ok || len(set.Results) >= q.Limit {
			break
		}
		for k, v := range next {
			params[k] = v
		}
	}

	if len(set.Results) > q.Limit {
		set.Results = set.Results[:q.Limit]
		set.More = true
	}
	s.logger.Debug().Str("term", q.Term).Int("results", len(set.Results)).Int("total", set.TotalHits).Msg("remote search")
	return set, nil
}

// continuation returns the parameters for the next page, if sroffset is set
func continuation(raw json.RawMessage) (map[string]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	if _, ok := fields["sroffset"]; !ok {
		return nil, false
	}

	params := make(map[string]string, len(fields))
	for k, v := range fields {
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			params[k] = str
			continue
		}
		params[k] = string(v)
	}
	return params, true
}

// PrefixSearch lists mirrored titles starting with prefix, ordered by title
// then namespace
func (s *Searcher) PrefixSearch(prefix string, namespaces []int, limit, offset int) ([]model.Title, error) {
	if len(namespaces) == 0 {
		namespaces = []int{model.NSMain}
	}
	if limit <= 0 {
		limit = 10
	}
	prefix = model.NormalizeDBKey(strings.Map(func(r rune) rune {
		if strings.ContainsRune("<>[]{}|#", r) {
			return -1
		}
		return r
	}, prefix))

	var titles []model.Title
	for _, ns := range namespaces {
		pages, err := s.registry.PrefixSearch(ns, prefix, offset+limit)
		if err != nil {
			return nil, fmt.Errorf("prefix search: %w", err)
		}
		for _, p := range pages {
			titles = append(titles, p.TitleValue())
		}
	}

	sort.SliceStable(titles, func(i, j int) bool {
		if titles[i].DBKey != titles[j].DBKey {
			return titles[i].DBKey < titles[j].DBKey
		}
		return titles[i].Namespace < titles[j].Namespace
	})

	if offset >= len(titles) {
		return nil, nil
	}
	titles = titles[offset:]
	if len(titles) > limit {
		titles = titles[:limit]
	}
	return titles, nil
}
