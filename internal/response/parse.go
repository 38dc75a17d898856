package response

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/wikimirror/internal/model"
)

// NewParsedText converts a parse payload, rewriting links to the remote wiki
// into local links
func NewParsedText(raw *RawParse, site *model.SiteInfo, links LinkResolver) *model.ParsedText {
	text := &model.ParsedText{
		Title:         raw.Title,
		PageID:        raw.PageID,
		RevID:         raw.RevID,
		HTML:          raw.Text,
		Wikitext:      raw.Wikitext,
		LanguageLinks: make([]string, 0, len(raw.LangLinks)),
		Categories:    make(map[string]string, len(raw.Categories)),
		Modules:       nonNil(raw.Modules),
		ModuleScripts: nonNil(raw.ModuleScripts),
		ModuleStyles:  nonNil(raw.ModuleStyles),
		JSConfigVars:  raw.JSConfigVars,
		Indicators:    raw.Indicators,
		Properties:    raw.Properties,
	}

	for _, ll := range raw.LangLinks {
		text.LanguageLinks = append(text.LanguageLinks, ll.Lang+":"+ll.Title)
	}
	for _, c := range raw.Categories {
		text.Categories[c.Category] = c.SortKey
	}
	if text.JSConfigVars == nil {
		text.JSConfigVars = map[string]any{}
	}
	if text.Indicators == nil {
		text.Indicators = map[string]string{}
	}
	if text.Properties == nil {
		text.Properties = map[string]string{}
	}

	if site != nil && links != nil {
		text.HTML = RewriteLocalLinks(text.HTML, site, links)
	}
	return text
}

// RewriteLocalLinks rewrites <a href> targets that follow the remote
// article path so they point at the local wiki. Anchors that fail to parse
// or resolve are left untouched.
func RewriteLocalLinks(document string, site *model.SiteInfo, links LinkResolver) string {
	base, err := url.Parse(site.Server + site.ArticlePath)
	if err != nil {
		return document
	}

	inPath := strings.Contains(base.Path, "$1")
	queryKey := ""
	if !inPath {
		for key, values := range base.Query() {
			if len(values) > 0 && values[0] == "$1" {
				queryKey = key
				break
			}
		}
		if queryKey == "" {
			return document
		}
	}

	titleMatch := `([^"&#]*)`
	if inPath {
		titleMatch = `([^"?#]*)`
	}
	pattern := strings.Replace(regexp.QuoteMeta(site.ArticlePath), `\$1`, titleMatch, 1)
	re, err := regexp.Compile(`<a href="(` + pattern + `[^"]*?)"`)
	if err != nil {
		return document
	}

	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringSubmatchIndex(document, -1) {
		replacement, ok := rewriteAnchor(site.Server, document[m[2]:m[3]], document[m[4]:m[5]], queryKey, links)
		if !ok {
			continue
		}
		b.WriteString(document[last:m[0]])
		b.WriteString(replacement)
		last = m[1]
	}
	if last == 0 {
		return document
	}
	b.WriteString(document[last:])
	return b.String()
}

func rewriteAnchor(server, href, encodedTitle, queryKey string, links LinkResolver) (string, bool) {
	target, err := url.Parse(server + html.UnescapeString(href))
	if err != nil {
		return "", false
	}

	query := target.Query()
	if queryKey != "" {
		query.Del(queryKey)
	}

	title, err := url.QueryUnescape(encodedTitle)
	if err != nil {
		return "", false
	}
	if target.Fragment != "" {
		title += "#" + target.Fragment
	}

	local, ok := links.LinkURL(title, query)
	if !ok {
		return "", false
	}
	return `<a href="` + html.EscapeString(local) + `"`, true
}
