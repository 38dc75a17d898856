package content

import (
	"io"
	"net/url"
	"html/template"

	"github.com/ppiankov/wikimirror/internal/model"
)

// PageRow is a mirrored page presented as a row of the local page table
type PageRow struct {
	PageID       int64
	Namespace    int
	DBKey        string
	IsRedirect   bool
	IsNew        bool
	Touched      string
	Latest       int64
	Length       int64
	ContentModel string
	Language     string
}

// NewPageRow builds a page row for title from remote page info. Latest is
// zero since the revision only exists remotely.
func NewPageRow(t model.Title, page *model.PageInfo) PageRow {
	return PageRow{
		PageID:       page.PageID,
		Namespace:    t.Namespace,
		DBKey:        t.DBKey,
		IsRedirect:   page.IsRedirect(),
		Touched:      page.Touched,
		Length:       page.Length,
		ContentModel: model.ContentModelMirror,
		Language:     page.Language.Code,
	}
}

// HistoryURL returns the remote page history URL for a remote article URL
func HistoryURL(articleURL string) string {
	u, err := url.Parse(articleURL)
	if err != nil {
		return articleURL
	}
	q := u.Query()
	q.Set("action", "history")
	u.RawQuery = q.Encode()
	return u.String()
}

var historyTemplate = template.Must(template.New("history").Parse(
	`<div class="mw-parser-output"><p>This page is mirrored from a remote wiki. ` +
		`See its <a href="{{.}}">revision history</a> on the remote wiki.</p></div>`,
))

// RenderHistory writes the view that replaces local history for mirrored pages
func RenderHistory(w io.Writer, articleURL string) error {
	return historyTemplate.Execute(w, HistoryURL(articleURL))
}
