package response

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/wikimirror/internal/model"
	"github.com/ppiankov/wikimirror/internal/snapshot"
)

const livePageJSON = `{
	"pageid": 42, "ns": 0, "title": "Main Page", "contentmodel": "wikitext",
	"pagelanguage": "en", "pagelanguagehtmlcode": "en", "pagelanguagedir": "ltr",
	"touched": "2024-01-02T03:04:05Z", "lastrevid": 1001, "length": 2,
	"displaytitle": "Main Page",
	"revisions": [{
		"revid": 1001, "parentid": 0, "minor": false, "user": "Alice", "userid": 7,
		"timestamp": "2024-01-02T03:04:05Z", "size": 2,
		"sha1": "94dd9e08c129c785f7f256e82fbe0a30e6d1ae40",
		"roles": ["main"], "comment": "", "parsedcomment": "/* parsed comment not available */",
		"tags": [],
		"slots": {"main": {"size": 2, "sha1": "94dd9e08c129c785f7f256e82fbe0a30e6d1ae40",
			"contentmodel": "wikitext", "contentformat": "text/x-wiki", "content": "Hi"}}
	}]
}`

func decodePage(t *testing.T, data string) *RawPage {
	t.Helper()
	var raw RawPage
	require.NoError(t, json.Unmarshal([]byte(data), &raw))
	return &raw
}

func TestNewPageInfo(t *testing.T) {
	info, err := NewPageInfo(decodePage(t, livePageJSON))
	require.NoError(t, err)

	assert.Equal(t, int64(42), info.PageID)
	assert.Equal(t, "Main Page", info.Title)
	assert.Equal(t, "en", info.Language.Code)
	assert.Equal(t, int64(1001), info.LastRevID)
	assert.False(t, info.IsRedirect())
	require.NotNil(t, info.Revision)

	user, ok := info.Revision.User.Get()
	assert.True(t, ok)
	assert.Equal(t, "Alice", user)

	slot, err := info.Revision.Slot("main")
	require.NoError(t, err)
	content, _ := slot.Content.Get()
	assert.Equal(t, "Hi", content)

	_, err = info.Revision.Slot("aux")
	assert.ErrorIs(t, err, model.ErrSlotMissing)
}

func TestNewPageInfo_Missing(t *testing.T) {
	_, err := NewPageInfo(decodePage(t, `{"ns":0,"title":"Nope","missing":true}`))
	assert.ErrorIs(t, err, ErrNoPage)
	_, err = NewPageInfo(nil)
	assert.ErrorIs(t, err, ErrNoPage)
}

func TestNewPageInfo_Redirect(t *testing.T) {
	raw := decodePage(t, `{"pageid":5,"ns":0,"title":"Old name","redirect":true,
		"redirecttarget":{"ns":4,"title":"Wikipedia:New name here"}}`)

	info, err := NewPageInfo(raw)
	require.NoError(t, err)
	require.True(t, info.IsRedirect())
	assert.Equal(t, model.RedirectTarget{Namespace: 4, DBKey: "New_name_here"}, *info.Redirect)
}

func TestNewRedirectTarget_MainNamespaceKeepsColon(t *testing.T) {
	got := NewRedirectTarget(&RawRedirectTarget{NS: 0, Title: "Star Wars: A New Hope"})
	assert.Equal(t, "Star_Wars:_A_New_Hope", got.DBKey)
}

func TestNewRevisionInfo_Hidden(t *testing.T) {
	var raw RawRevision
	require.NoError(t, json.Unmarshal([]byte(`{
		"revid": 9, "parentid": 8, "userhidden": true, "sha1hidden": true,
		"commenthidden": true, "timestamp": "2024-01-01T00:00:00Z", "size": 10,
		"roles": ["main"],
		"slots": {"main": {"size": 10, "sha1hidden": true, "contentmodel": "wikitext", "texthidden": true}}
	}`), &raw))

	rev := NewRevisionInfo(&raw)

	assert.True(t, rev.User.IsHidden())
	assert.True(t, rev.UserID.IsHidden())
	assert.True(t, rev.SHA1.IsHidden())
	assert.True(t, rev.Comment.IsHidden())
	assert.True(t, rev.ParsedComment.IsHidden())

	slot := rev.Slots["main"]
	assert.True(t, slot.SHA1.IsHidden())
	assert.True(t, slot.Content.IsHidden())
	assert.True(t, slot.ContentFormat.IsHidden())
	_, ok := slot.Content.Get()
	assert.False(t, ok)
}

func TestNewRevisionInfo_SHA1RoundTrip(t *testing.T) {
	withSHA := NewRevisionInfo(&RawRevision{SHA1: strPtr("abc123")})
	sha, ok := withSHA.SHA1.Get()
	require.True(t, ok)
	assert.Equal(t, "abc123", sha)

	hidden := NewRevisionInfo(&RawRevision{SHA1Hidden: true})
	_, ok = hidden.SHA1.Get()
	assert.False(t, ok)
	assert.True(t, hidden.SHA1.IsHidden())

	notRequested := NewRevisionInfo(&RawRevision{})
	assert.False(t, notRequested.SHA1.Requested())
	assert.False(t, notRequested.SHA1.IsHidden())
}

func TestPageFromSnapshot_MatchesLive(t *testing.T) {
	article := &snapshot.Article{
		Identifier:   42,
		Name:         "Main Page",
		DateModified: "2024-01-02T03:04:05Z",
		Namespace:    snapshot.Namespace{Identifier: 0},
		InLanguage:   snapshot.Language{Identifier: "en"},
		ArticleBody:  snapshot.ArticleBody{HTML: "<html><body><p>Hi</p></body></html>", Wikitext: "Hi"},
		Version: snapshot.Version{
			Identifier: 1001,
			Editor:     snapshot.Editor{Identifier: 7, Name: "Alice"},
			Size:       snapshot.Size{Value: 2, UnitText: "B"},
		},
	}

	fromSnapshot, err := NewPageInfo(PageFromSnapshot(article, zerolog.Nop()))
	require.NoError(t, err)
	fromLive, err := NewPageInfo(decodePage(t, livePageJSON))
	require.NoError(t, err)

	assert.Equal(t, fromLive, fromSnapshot)
}

func TestSnapshotHTML(t *testing.T) {
	doc := "<!DOCTYPE html><html><head><title>x</title></head><body class=\"mw-body\" id=\"b\"><p>Hi</p></body></html>"
	assert.Equal(t, `<div class="mw-body" id="b"><p>Hi</p></div>`, SnapshotHTML(doc))
}

func TestParseFromSnapshot(t *testing.T) {
	raw := ParseFromSnapshot(&snapshot.Article{
		Identifier:  3,
		Name:        "X",
		ArticleBody: snapshot.ArticleBody{HTML: "<html><body lang=\"en\">t</body></html>", Wikitext: "t"},
		Version:     snapshot.Version{Identifier: 30},
	})
	text := NewParsedText(raw, nil, nil)
	assert.Equal(t, `<div lang="en">t</div>`, text.HTML)
	assert.Equal(t, int64(30), text.RevID)
	assert.Empty(t, text.Categories)
	assert.NotNil(t, text.Indicators)
}

type fakeLinks struct{}

func (fakeLinks) LinkURL(title string, query url.Values) (string, bool) {
	if title == "Bad" {
		return "", false
	}
	u := "/local/" + title
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u, true
}

func TestRewriteLocalLinks_PathForm(t *testing.T) {
	site := &model.SiteInfo{Server: "https://en.wikipedia.org", ArticlePath: "/wiki/$1"}
	doc := `<p><a href="/wiki/Foo_bar" title="Foo bar">x</a> ` +
		`<a href="/wiki/Caf%C3%A9#History">y</a> ` +
		`<a href="/wiki/Bad">z</a> ` +
		`<a href="https://example.org/wiki/Other">ext</a> ` +
		`<a href="/wiki/Foo?oldid=5&amp;diff=prev">old</a></p>`

	got := RewriteLocalLinks(doc, site, fakeLinks{})

	assert.Contains(t, got, `<a href="/local/Foo_bar" title="Foo bar">x</a>`)
	assert.Contains(t, got, `<a href="/local/Café#History">y</a>`)
	assert.Contains(t, got, `<a href="/wiki/Bad">z</a>`, "unresolvable anchors are left alone")
	assert.Contains(t, got, `<a href="https://example.org/wiki/Other">ext</a>`)
	assert.Contains(t, got, `<a href="/local/Foo?diff=prev&amp;oldid=5">old</a>`)
}

func TestRewriteLocalLinks_QueryForm(t *testing.T) {
	site := &model.SiteInfo{Server: "//wiki.example.org", ArticlePath: "/index.php?title=$1"}
	doc := `<a href="/index.php?title=Some+page&amp;action=history">h</a><a href="/index.php?title=Plain">p</a>`

	got := RewriteLocalLinks(doc, site, fakeLinks{})

	assert.Contains(t, got, `<a href="/local/Some page?action=history">h</a>`)
	assert.Contains(t, got, `<a href="/local/Plain">p</a>`)
}

func TestRewriteLocalLinks_NoPlaceholder(t *testing.T) {
	site := &model.SiteInfo{Server: "https://x.org", ArticlePath: "/static"}
	doc := `<a href="/static">s</a>`
	assert.Equal(t, doc, RewriteLocalLinks(doc, site, fakeLinks{}))
}

func TestLocalLinks(t *testing.T) {
	codec := model.NewTitleCodec(model.DefaultNamespaces(""), nil)
	links := NewLocalLinks(codec, "/wiki/$1", "/w/")

	u, ok := links.LinkURL("help:contents#Getting started", nil)
	require.True(t, ok)
	assert.Equal(t, "/wiki/Help:Contents#Getting_started", u)

	u, ok = links.LinkURL("Foo", url.Values{"action": {"history"}})
	require.True(t, ok)
	assert.Equal(t, "/w/index.php?title=Foo&action=history", u)

	u, ok = links.LinkURL("#Top", nil)
	require.True(t, ok)
	assert.Equal(t, "#Top", u)

	_, ok = links.LinkURL("Foo[bar]", nil)
	assert.False(t, ok)
}

func TestNewParsedText(t *testing.T) {
	var raw RawParse
	require.NoError(t, json.Unmarshal([]byte(`{
		"title": "Foo", "pageid": 1, "revid": 2,
		"text": "<a href=\"/wiki/Bar\">Bar</a>", "wikitext": "[[Bar]]",
		"langlinks": [{"lang": "de", "title": "Foo (de)"}],
		"categories": [{"category": "Things", "sortkey": "Foo"}],
		"modules": ["ext.x"], "modulestyles": ["ext.x.styles"],
		"jsconfigvars": {"wgFoo": 1},
		"indicators": {"protected": "<span>lock</span>"},
		"properties": {"displaytitle": "<i>Foo</i>"}
	}`), &raw))

	site := &model.SiteInfo{Server: "https://r.org", ArticlePath: "/wiki/$1"}
	text := NewParsedText(&raw, site, fakeLinks{})

	assert.Equal(t, `<a href="/local/Bar">Bar</a>`, text.HTML)
	assert.Equal(t, []string{"de:Foo (de)"}, text.LanguageLinks)
	assert.Equal(t, map[string]string{"Things": "Foo"}, text.Categories)
	assert.Equal(t, []string{}, text.ModuleScripts)
	dt, ok := text.DisplayTitle()
	assert.True(t, ok)
	assert.Equal(t, "<i>Foo</i>", dt)
}

func TestNewSiteInfo(t *testing.T) {
	var raw RawSiteInfo
	require.NoError(t, json.Unmarshal([]byte(`{
		"general": {"server": "//en.wikipedia.org", "articlepath": "/wiki/$1", "scriptpath": "/w",
			"variantarticlepath": false},
		"namespaces": {"0": {"id": 0, "name": ""}, "4": {"id": 4, "name": "Wikipedia", "canonical": "Project"}},
		"namespacealiases": [{"id": 4, "alias": "WP"}]
	}`), &raw))

	site := NewSiteInfo(&raw)
	assert.Equal(t, "//en.wikipedia.org", site.Server)
	assert.Equal(t, "", site.VariantArticlePath)
	assert.False(t, site.MainPageIsDomainRoot)
	assert.Equal(t, 4, site.NamespaceMap()["WP"])

	raw.General.VariantArticlePath = json.RawMessage(`"/$2/$1"`)
	assert.Equal(t, "/$2/$1", NewSiteInfo(&raw).VariantArticlePath)
}

func TestLanguageFor(t *testing.T) {
	assert.Equal(t, model.Language{Code: "en", HTMLCode: "en", Dir: "ltr"}, LanguageFor("en"))
	assert.Equal(t, "rtl", LanguageFor("he").Dir)
	assert.Equal(t, "zh-Hans", LanguageFor("zh-hans").HTMLCode)
}

func strPtr(s string) *string { return &s }
