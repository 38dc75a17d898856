package response

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/ppiankov/wikimirror/internal/snapshot"
)

const (
	snapshotContentModel  = "wikitext"
	snapshotContentFormat = "text/x-wiki"
	// ParsedCommentUnavailable stands in for parsed comments snapshots lack
	ParsedCommentUnavailable = "/* parsed comment not available */"
)

var (
	documentHead = regexp.MustCompile(`(?s)^.*?<body `)
	documentTail = regexp.MustCompile(`</body></html>\s*$`)
)

// SnapshotHTML turns a full snapshot document into a fragment rooted at a div
func SnapshotHTML(document string) string {
	html := documentHead.ReplaceAllLiteralString(document, "<div ")
	return documentTail.ReplaceAllLiteralString(html, "</div>")
}

// PageFromSnapshot synthesizes the raw page+revision structure a live
// prop=info|revisions query would have produced for the snapshotted page
func PageFromSnapshot(a *snapshot.Article, logger zerolog.Logger) *RawPage {
	if a.Version.Size.UnitText != "" && a.Version.Size.UnitText != "B" {
		logger.Warn().
			Str("title", a.Name).
			Str("unit", a.Version.Size.UnitText).
			Msg("snapshot size is not in bytes")
	}

	sum := sha1.Sum([]byte(a.ArticleBody.Wikitext))
	sha := hex.EncodeToString(sum[:])
	lang := LanguageFor(a.InLanguage.Identifier)

	comment := ""
	if a.Version.Comment != nil {
		comment = *a.Version.Comment
	}
	parsedComment := ParsedCommentUnavailable
	user := a.Version.Editor.Name
	userID := a.Version.Editor.Identifier
	format := snapshotContentFormat
	content := a.ArticleBody.Wikitext
	slotSHA := sha

	return &RawPage{
		PageID:               a.Identifier,
		NS:                   a.Namespace.Identifier,
		Title:                a.Name,
		ContentModel:         snapshotContentModel,
		PageLanguage:         lang.Code,
		PageLanguageHTMLCode: lang.HTMLCode,
		PageLanguageDir:      lang.Dir,
		Touched:              a.DateModified,
		LastRevID:            a.Version.Identifier,
		Length:               a.Version.Size.Value,
		DisplayTitle:         a.Name,
		Revisions: []RawRevision{{
			RevID:         a.Version.Identifier,
			ParentID:      0,
			Minor:         a.Version.IsMinorEdit,
			User:          &user,
			UserID:        &userID,
			Timestamp:     a.DateModified,
			Size:          a.Version.Size.Value,
			SHA1:          &sha,
			Comment:       &comment,
			ParsedComment: &parsedComment,
			Tags:          nonNil(a.Version.Tags),
			Roles:         []string{"main"},
			Slots: map[string]RawSlot{
				"main": {
					Size:          a.Version.Size.Value,
					SHA1:          &slotSHA,
					ContentModel:  snapshotContentModel,
					ContentFormat: &format,
					Content:       &content,
				},
			},
		}},
	}
}

// ParseFromSnapshot synthesizes the action=parse payload for a snapshot
func ParseFromSnapshot(a *snapshot.Article) *RawParse {
	return &RawParse{
		Title:         a.Name,
		PageID:        a.Identifier,
		RevID:         a.Version.Identifier,
		Text:          SnapshotHTML(a.ArticleBody.HTML),
		Wikitext:      a.ArticleBody.Wikitext,
		LangLinks:     []RawLangLink{},
		Categories:    []RawCategory{},
		Modules:       []string{},
		ModuleScripts: []string{},
		ModuleStyles:  []string{},
		JSConfigVars:  map[string]any{},
		Indicators:    map[string]string{},
		Properties:    map[string]string{},
	}
}
