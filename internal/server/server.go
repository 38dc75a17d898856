// Package server exposes mirrored and local pages, search and the fork
// workflow over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/wikimirror/internal/content"
	"github.com/ppiankov/wikimirror/internal/fork"
	"github.com/ppiankov/wikimirror/internal/localwiki"
	"github.com/ppiankov/wikimirror/internal/log"
	"github.com/ppiankov/wikimirror/internal/metrics"
	"github.com/ppiankov/wikimirror/internal/mirror"
	"github.com/ppiankov/wikimirror/internal/model"
	"github.com/ppiankov/wikimirror/internal/registry"
	"github.com/ppiankov/wikimirror/internal/remote"
	"github.com/ppiankov/wikimirror/internal/search"
)

// UserHeader carries the acting user name, set by the fronting proxy
const UserHeader = "X-Wiki-User"

// Deps are the collaborators of a Server
type Deps struct {
	Config model.Config
	Mirror *mirror.Mirror
	Local  *localwiki.Store
	Forks  *fork.Service
	Search *search.Searcher
}

// Server serves the local wiki
type Server struct {
	cfg    model.Config
	mirror *mirror.Mirror
	local  *localwiki.Store
	forks  *fork.Service
	search *search.Searcher
	mux    *http.ServeMux
	logger zerolog.Logger
}

// New creates a server and registers its routes
func New(d Deps) *Server {
	s := &Server{
		cfg:    d.Config,
		mirror: d.Mirror,
		local:  d.Local,
		forks:  d.Forks,
		search: d.Search,
		mux:    http.NewServeMux(),
		logger: log.WithComponent("server"),
	}

	article := strings.Replace(s.cfg.Local.ArticlePath, "$1", "", 1)
	script := strings.TrimSuffix(s.cfg.Local.ScriptPath, "/")

	s.mux.HandleFunc("GET /health", s.healthHandler)
	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET "+article+"{title...}", s.articleHandler)
	s.mux.HandleFunc("GET "+script+"/index.php", s.indexHandler)
	s.mux.HandleFunc("GET /api/page/{title...}", s.pageHandler)
	s.mux.HandleFunc("GET /api/search", s.searchHandler)
	s.mux.HandleFunc("GET /api/prefixsearch", s.prefixSearchHandler)
	s.mux.HandleFunc("GET /api/visualeditor", s.visualEditorHandler)
	s.mux.HandleFunc("POST /api/fork/{title...}", s.forkHandler)
	s.mux.HandleFunc("POST /api/unfork/{title...}", s.unforkHandler)

	return s
}

// Handler returns the root handler, attaching the acting user to each request
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		user := r.Header.Get(UserHeader)
		s.mux.ServeHTTP(w, r.WithContext(model.WithUser(r.Context(), user)))
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("user", user).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.logger.Info().Str("addr", addr).Msg("server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// HealthResponse is the /health body
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
{{range .Indicators}}<div class="mw-indicator">{{.}}</div>{{end}}
<h1 class="firstHeading">{{.Title}}</h1>
{{if .RedirectedFrom}}<div class="mw-redirectedfrom">(Redirected from {{.RedirectedFrom}})</div>{{end}}
<div id="mw-content-text">{{.Body}}</div>
</body></html>
`))

type pageView struct {
	Title          string
	RedirectedFrom string
	Indicators     []template.HTML
	Body           template.HTML
}

func (s *Server) articleHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.parseTitle(w, r.PathValue("title"))
	if !ok {
		return
	}
	s.view(w, r, t)
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, ok := s.parseTitle(w, q.Get("title"))
	if !ok {
		return
	}

	switch q.Get("action") {
	case "", "view":
		s.view(w, r, t)
	case "history":
		s.history(w, r, t)
	case "raw":
		s.raw(w, r, t)
	default:
		http.Error(w, "unsupported action", http.StatusBadRequest)
	}
}

// view renders a mirrored page from the remote wiki or a local page from
// the store, following one redirect unless redirect=no
func (s *Server) view(w http.ResponseWriter, r *http.Request, t model.Title) {
	ctx := r.Context()
	codec := s.mirror.Codec()

	if r.URL.Query().Get("redirect") != "no" {
		target, err := s.mirror.GetRedirectTarget(ctx, t)
		if err != nil {
			s.fail(w, err)
			return
		}
		if target != nil && target.Key() != t.Key() {
			http.Redirect(w, r, s.articleURL(*target)+"?redirectedfrom="+model.URLEncodeTitle(codec.PrefixedDBKey(t)), http.StatusFound)
			return
		}
	}

	v := pageView{Title: codec.PrefixedText(t)}
	if from := r.URL.Query().Get("redirectedfrom"); from != "" {
		v.RedirectedFrom = strings.ReplaceAll(from, "_", " ")
	}

	if s.mirror.CanMirror(ctx, t, false) {
		out, err := s.mirror.Render(ctx, t)
		if err != nil {
			s.fail(w, err)
			return
		}
		if out.DisplayTitle != "" {
			v.Title = out.DisplayTitle
		}
		for _, html := range out.Indicators {
			v.Indicators = append(v.Indicators, template.HTML(html))
		}
		v.Body = template.HTML(out.HTML)
		s.writePage(w, http.StatusOK, v)
		return
	}

	rev, err := s.local.LatestRevision(t)
	if errors.Is(err, localwiki.ErrNotFound) {
		v.Body = template.HTML("<p>There is currently no text in this page.</p>")
		s.writePage(w, http.StatusNotFound, v)
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	v.Body = template.HTML("<pre>" + template.HTMLEscapeString(rev.Content) + "</pre>")
	s.writePage(w, http.StatusOK, v)
}

func (s *Server) writePage(w http.ResponseWriter, status int, v pageView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, v); err != nil {
		s.logger.Warn().Err(err).Str("title", v.Title).Msg("render failed")
	}
}

// history replaces local history of mirrored pages with a link to the
// remote history
func (s *Server) history(w http.ResponseWriter, r *http.Request, t model.Title) {
	ctx := r.Context()
	if !s.mirror.CanMirror(ctx, t, false) {
		http.Error(w, "local history is not available", http.StatusNotFound)
		return
	}
	if _, err := s.mirror.GetCachedPage(ctx, t); err != nil {
		s.fail(w, err)
		return
	}
	pageURL, err := s.mirror.PageURL(t)
	if err != nil {
		s.fail(w, err)
		return
	}

	var body strings.Builder
	if err := content.RenderHistory(&body, pageURL); err != nil {
		s.fail(w, err)
		return
	}
	s.writePage(w, http.StatusOK, pageView{
		Title: "Revision history of " + s.mirror.Codec().PrefixedText(t),
		Body:  template.HTML(body.String()),
	})
}

func (s *Server) raw(w http.ResponseWriter, r *http.Request, t model.Title) {
	ctx := r.Context()
	var text string
	if s.mirror.CanMirror(ctx, t, false) {
		body, err := s.mirror.Content(ctx, t)
		if err != nil {
			s.fail(w, err)
			return
		}
		text = body.Wikitext()
	} else {
		rev, err := s.local.LatestRevision(t)
		if err != nil {
			s.fail(w, err)
			return
		}
		text = rev.Content
	}
	w.Header().Set("Content-Type", "text/x-wiki; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

// PageResponse is the /api/page body
type PageResponse struct {
	Title     model.Title           `json:"title"`
	Status    string                `json:"status"`
	Mirrored  bool                  `json:"mirrored"`
	Known     bool                  `json:"known"`
	Forked    bool                  `json:"forked"`
	Redirects *mirror.RedirectChain `json:"redirects,omitempty"`
	Page      *model.PageInfo       `json:"page,omitempty"`
	Local     *localwiki.Page       `json:"local,omitempty"`
	Actions   map[string]bool       `json:"actions"`
}

func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.parseTitle(w, r.PathValue("title"))
	if !ok {
		return
	}
	ctx := r.Context()

	resp := PageResponse{
		Title:    t,
		Mirrored: s.mirror.CanMirror(ctx, t, false),
		Known:    s.mirror.TitleIsKnown(t),
		Forked:   s.mirror.IsForked(ctx, t),
		Actions: map[string]bool{
			mirror.ActionRead: s.mirror.UserCan(ctx, t, mirror.ActionRead),
			mirror.ActionFork: s.mirror.UserCan(ctx, t, mirror.ActionFork),
			"edit":            s.mirror.UserCan(ctx, t, "edit"),
		},
	}
	resp.Status = s.mirror.Status(ctx, t).String()

	chain, err := s.mirror.ResolveRedirects(ctx, t)
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(chain.Hops) > 0 {
		resp.Redirects = chain
	}

	if resp.Mirrored {
		info, err := s.mirror.GetCachedPage(ctx, t)
		if err != nil {
			s.fail(w, err)
			return
		}
		resp.Page = info
	} else if page, err := s.local.Page(t); err == nil {
		resp.Local = page
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := search.Query{
		Term:       q.Get("q"),
		What:       q.Get("what"),
		Namespaces: intList(q.Get("ns")),
		Limit:      intParam(q.Get("limit")),
		Offset:     intParam(q.Get("offset")),
	}
	if query.Term == "" {
		http.Error(w, "missing q", http.StatusBadRequest)
		return
	}

	results, err := s.search.Search(r.Context(), query)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) prefixSearchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	titles, err := s.search.PrefixSearch(q.Get("q"), intList(q.Get("ns")), intParam(q.Get("limit")), intParam(q.Get("offset")))
	if err != nil {
		s.fail(w, err)
		return
	}

	codec := s.mirror.Codec()
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		out = append(out, codec.PrefixedText(t))
	}
	writeJSON(w, http.StatusOK, map[string][]string{"titles": out})
}

func (s *Server) visualEditorHandler(w http.ResponseWriter, r *http.Request) {
	params := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	result, err := s.mirror.GetVisualEditorAPI(r.Context(), params)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visualeditor": result})
}

func (s *Server) forkHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.parseTitle(w, r.PathValue("title"))
	if !ok {
		return
	}
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	entry, err := s.forks.Fork(r.Context(), fork.Request{
		Title:   t,
		Import:  r.FormValue("import") == "1",
		Comment: r.FormValue("comment"),
		Watch:   r.FormValue("watch") == "1",
		User:    user,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) unforkHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.parseTitle(w, r.PathValue("title"))
	if !ok {
		return
	}
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	entry, err := s.forks.Unfork(r.Context(), t, user, r.FormValue("comment"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := model.UserFrom(r.Context())
	if user == "" {
		http.Error(w, "login required", http.StatusForbidden)
		return "", false
	}
	return user, true
}

func (s *Server) parseTitle(w http.ResponseWriter, text string) (model.Title, bool) {
	t, err := s.mirror.Codec().Parse(text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return model.Title{}, false
	}
	return t, true
}

func (s *Server) articleURL(t model.Title) string {
	return strings.Replace(s.cfg.Local.ArticlePath, "$1", model.URLEncodeTitle(s.mirror.Codec().PrefixedDBKey(t)), 1)
}

// fail maps domain errors to status codes
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidTitle):
		status = http.StatusBadRequest
	case errors.Is(err, mirror.ErrNotMirrored),
		errors.Is(err, localwiki.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, mirror.ErrThrottled):
		status = http.StatusTooManyRequests
	case errors.Is(err, fork.ErrNotMirrorable),
		errors.Is(err, fork.ErrNotForked),
		errors.Is(err, fork.ErrExistsLocally),
		errors.Is(err, registry.ErrAlreadyForked):
		status = http.StatusConflict
	case errors.Is(err, fork.ErrMultiSlot),
		errors.Is(err, fork.ErrImport):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, mirror.ErrUnavailable),
		errors.Is(err, remote.ErrTransport),
		errors.Is(err, remote.ErrMalformed):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func intParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func intList(s string) []int {
	if s == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(s, "|") {
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}
