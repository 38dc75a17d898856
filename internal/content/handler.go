package content

import (
	"bytes"
	"errors"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ppiankov/wikimirror/internal/model"
)

const (
	// IndicatorMirror names the indicator linking to the remote article
	IndicatorMirror = "ext-wm-indicator-mirror"

	moduleIcons    = "oojs-ui.styles.icons-content"
	moduleRedirect = "mediawiki.action.view.redirectPage"
)

// ActionHistory is the page action routed to the remote history view
const ActionHistory = "history"

// ErrNoText is returned when rendering content without parsed text
var ErrNoText = errors.New("mirrored content has no parsed text")

// Handler is the content handler for the mirror content model
type Handler struct {
	now func() time.Time
}

// NewHandler creates a content handler
func NewHandler() *Handler {
	return &Handler{now: time.Now}
}

// ModelID returns the content model this handler serves
func (h *Handler) ModelID() string {
	return model.ContentModelMirror
}

// SupportedFormats lists serialization formats
func (h *Handler) SupportedFormats() []string {
	return []string{FormatWikitext}
}

// SupportsRedirects reports that mirrored pages may be redirects
func (h *Handler) SupportsRedirects() bool {
	return true
}

// ActionOverrides maps page actions to the views that replace them
func (h *Handler) ActionOverrides() map[string]string {
	return map[string]string{ActionHistory: "remote-history"}
}

// ParserOutput renders mirrored content, adding the indicator that links to
// the remote article
func (h *Handler) ParserOutput(c *Content) (*ParserOutput, error) {
	if c.Text == nil {
		return nil, ErrNoText
	}

	out, err := NewParserOutput(c.Page, c.Text, h.now())
	if err != nil {
		return nil, err
	}

	out.EnableOOUI = true
	out.AddModuleStyles(moduleIcons)
	if c.IsRedirect() {
		out.AddModuleStyles(moduleRedirect)
	}
	out.SetIndicator(IndicatorMirror, indicatorHTML(c.URL))
	return out, nil
}

func indicatorHTML(href string) string {
	link := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.A,
		Data:     "a",
		Attr: []html.Attribute{
			{Key: "href", Val: href},
			{Key: "target", Val: "_blank"},
			{Key: "class", Val: "oo-ui-buttonElement-button oo-ui-icon-articles"},
			{Key: "title", Val: "This page is mirrored from a remote wiki"},
		},
	}
	link.AppendChild(&html.Node{Type: html.TextNode, Data: "Mirrored"})

	var buf bytes.Buffer
	// rendering a detached element into a buffer cannot fail
	_ = html.Render(&buf, link)
	return buf.String()
}
