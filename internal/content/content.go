// Package content adapts remote page data into page, revision and content
// objects shaped like the local wiki's own.
package content

import (
	"github.com/ppiankov/wikimirror/internal/model"
)

// FormatWikitext is the only serialization format of mirrored content
const FormatWikitext = "text/x-wiki"

// Content is the body of a mirrored page
type Content struct {
	Page *model.PageInfo
	Text *model.ParsedText
	// URL is the article URL on the remote wiki
	URL string
}

// New wraps remote page info and its parsed text
func New(page *model.PageInfo, text *model.ParsedText, remoteURL string) *Content {
	return &Content{Page: page, Text: text, URL: remoteURL}
}

// Model returns the content model id
func (c *Content) Model() string {
	return model.ContentModelMirror
}

// Format returns the serialization format
func (c *Content) Format() string {
	return FormatWikitext
}

// Wikitext returns the page source
func (c *Content) Wikitext() string {
	if c.Text == nil {
		return ""
	}
	return c.Text.Wikitext
}

// HTML returns the rendered page with local links
func (c *Content) HTML() string {
	if c.Text == nil {
		return ""
	}
	return c.Text.HTML
}

// Size returns the byte length of the remote page
func (c *Content) Size() int64 {
	return c.Page.Length
}

// RedirectTarget returns where the page redirects, or nil
func (c *Content) RedirectTarget() *model.RedirectTarget {
	return c.Page.Redirect
}

// IsRedirect reports whether the page is a remote redirect
func (c *Content) IsRedirect() bool {
	return c.Page.IsRedirect()
}
