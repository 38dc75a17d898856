package content

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/wikimirror/internal/model"
)

func testPage() *model.PageInfo {
	return &model.PageInfo{
		PageID:       42,
		Namespace:    0,
		Title:        "Foo",
		ContentModel: "wikitext",
		Language:     model.Language{Code: "en", HTMLCode: "en", Dir: "ltr"},
		Touched:      "2024-01-02T03:04:05Z",
		LastRevID:    100,
		Length:       11,
		Revision: &model.RevisionInfo{
			RevID:     100,
			ParentID:  99,
			User:      model.FieldOf("Alice"),
			UserID:    model.FieldOf(int64(7)),
			Timestamp: "2024-01-01T00:00:00Z",
			Size:      11,
			SHA1:      model.HiddenField[string](),
			Comment:   model.FieldOf("edit"),
			Slots: map[string]model.SlotInfo{
				"main": {Role: "main", Size: 11, ContentModel: "wikitext", SHA1: model.FieldOf("abc")},
				"aux":  {Role: "aux", Size: 2, ContentModel: "json"},
			},
		},
	}
}

func testText() *model.ParsedText {
	return &model.ParsedText{
		Title:         "Foo",
		HTML:          "<p>Hello</p>",
		Wikitext:      "Hello world",
		LanguageLinks: []string{"de:Foo"},
		Categories:    map[string]string{"Things": ""},
		Indicators:    map[string]string{"protected": "<span>lock</span>"},
		Properties:    map[string]string{"displaytitle": "<i>Foo</i>", "other": "1"},
		ModuleStyles:  []string{moduleIcons},
	}
}

func TestParserOutput(t *testing.T) {
	h := NewHandler()
	c := New(testPage(), testText(), "https://remote.example/wiki/Foo")

	out, err := h.ParserOutput(c)
	require.NoError(t, err)

	assert.Equal(t, "<p>Hello</p>", out.HTML)
	assert.Equal(t, "<i>Foo</i>", out.DisplayTitle)
	assert.NotContains(t, out.Properties, "displaytitle")
	assert.Equal(t, "1", out.Properties["other"])
	assert.Equal(t, "<span>lock</span>", out.Indicators["protected"])
	assert.Contains(t, out.Indicators[IndicatorMirror], `href="https://remote.example/wiki/Foo"`)
	assert.Equal(t, []string{moduleIcons}, out.ModuleStyles)
	assert.True(t, out.HideNewSection)
	assert.Equal(t, int64(100), out.CacheRevisionID)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), out.Timestamp)
	assert.True(t, strings.HasPrefix(out.RenderID, "100/"))

	// the source text is not mutated
	assert.Contains(t, c.Text.Properties, "displaytitle")
}

func TestParserOutput_Redirect(t *testing.T) {
	page := testPage()
	page.Redirect = &model.RedirectTarget{Namespace: 0, DBKey: "Bar"}

	out, err := NewHandler().ParserOutput(New(page, testText(), "u"))
	require.NoError(t, err)
	assert.Contains(t, out.ModuleStyles, moduleRedirect)
}

func TestParserOutput_UniqueRenderIDs(t *testing.T) {
	h := NewHandler()
	c := New(testPage(), testText(), "u")
	a, err := h.ParserOutput(c)
	require.NoError(t, err)
	b, err := h.ParserOutput(c)
	require.NoError(t, err)
	assert.NotEqual(t, a.RenderID, b.RenderID)
}

func TestParserOutput_NoText(t *testing.T) {
	_, err := NewHandler().ParserOutput(New(testPage(), nil, "u"))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestHandler(t *testing.T) {
	h := NewHandler()
	assert.Equal(t, model.ContentModelMirror, h.ModelID())
	assert.True(t, h.SupportsRedirects())
	assert.Contains(t, h.ActionOverrides(), ActionHistory)
}

func TestRevision(t *testing.T) {
	page := testPage()
	rev, err := NewRevision(page, New(page, testText(), "u"))
	require.NoError(t, err)

	assert.Equal(t, int64(100), rev.ID())
	_, ok := rev.SHA1()
	assert.False(t, ok)
	user, ok := rev.User()
	assert.True(t, ok)
	assert.Equal(t, "Alice", user)
	assert.Equal(t, int64(7), rev.UserID())
	assert.False(t, rev.IsMinor())

	slots := rev.Slots()
	require.Len(t, slots, 2)
	assert.Equal(t, "main", slots[0].Role)
	assert.Equal(t, "aux", slots[1].Role)
	assert.Equal(t, "Hello world", slots[0].Content().Wikitext())

	_, err = rev.Slot("missing")
	assert.ErrorIs(t, err, model.ErrSlotMissing)

	page.Revision = nil
	_, err = NewRevision(page, nil)
	assert.ErrorIs(t, err, ErrNoRevision)
}

func TestHistory(t *testing.T) {
	assert.Equal(t, "https://remote.example/wiki/Foo?action=history",
		HistoryURL("https://remote.example/wiki/Foo"))
	assert.Equal(t, "https://remote.example/w/index.php?action=history&title=Foo",
		HistoryURL("https://remote.example/w/index.php?title=Foo"))

	var buf bytes.Buffer
	require.NoError(t, RenderHistory(&buf, "https://remote.example/wiki/Foo"))
	assert.Contains(t, buf.String(), `href="https://remote.example/wiki/Foo?action=history"`)
}

func TestNewPageRow(t *testing.T) {
	row := NewPageRow(model.Title{Namespace: 0, DBKey: "Foo"}, testPage())
	assert.Equal(t, int64(42), row.PageID)
	assert.Equal(t, model.ContentModelMirror, row.ContentModel)
	assert.Equal(t, int64(0), row.Latest)
	assert.Equal(t, "en", row.Language)
}
