package response

import (
	"errors"
	"strings"

	"github.com/ppiankov/wikimirror/internal/model"
)

// ErrNoPage is returned when a raw page cannot describe an existing page
var ErrNoPage = errors.New("page does not exist")

// NewPageInfo converts a raw page into a PageInfo
func NewPageInfo(raw *RawPage) (*model.PageInfo, error) {
	if raw == nil || raw.Missing || raw.Invalid || raw.PageID <= 0 {
		return nil, ErrNoPage
	}

	info := &model.PageInfo{
		PageID:       raw.PageID,
		Namespace:    raw.NS,
		Title:        raw.Title,
		ContentModel: raw.ContentModel,
		Language: model.Language{
			Code:     raw.PageLanguage,
			HTMLCode: raw.PageLanguageHTMLCode,
			Dir:      raw.PageLanguageDir,
		},
		Touched:      raw.Touched,
		LastRevID:    raw.LastRevID,
		Length:       raw.Length,
		DisplayTitle: raw.DisplayTitle,
	}

	if raw.Redirect && raw.RedirectTarget != nil {
		target := NewRedirectTarget(raw.RedirectTarget)
		info.Redirect = &target
	}

	if len(raw.Revisions) > 0 {
		rev := NewRevisionInfo(&raw.Revisions[0])
		info.Revision = &rev
	}

	return info, nil
}

// NewRedirectTarget converts a remote redirect target into DB key form,
// stripping the namespace prefix from the title
func NewRedirectTarget(raw *RawRedirectTarget) model.RedirectTarget {
	title := raw.Title
	if raw.NS != model.NSMain {
		if i := strings.IndexByte(title, ':'); i >= 0 {
			title = title[i+1:]
		}
	}
	return model.RedirectTarget{
		Namespace: raw.NS,
		DBKey:     strings.ReplaceAll(title, " ", "_"),
	}
}
