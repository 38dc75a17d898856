package response

import (
	"net/url"
	"strings"

	"github.com/ppiankov/wikimirror/internal/model"
)

// LinkResolver maps a page title (with optional fragment) and extra query
// parameters to a local URL. It reports false for titles it cannot link.
type LinkResolver interface {
	LinkURL(title string, query url.Values) (string, bool)
}

// LocalLinks resolves links against the local wiki's URL layout
type LocalLinks struct {
	codec       *model.TitleCodec
	articlePath string
	scriptPath  string
}

// NewLocalLinks creates a resolver. articlePath contains $1.
func NewLocalLinks(codec *model.TitleCodec, articlePath, scriptPath string) *LocalLinks {
	return &LocalLinks{
		codec:       codec,
		articlePath: articlePath,
		scriptPath:  strings.TrimSuffix(scriptPath, "/"),
	}
}

// LinkURL implements LinkResolver
func (l *LocalLinks) LinkURL(text string, query url.Values) (string, bool) {
	t, err := l.codec.Parse(text)
	if err != nil || t.IsExternal() {
		return "", false
	}

	fragment := ""
	if t.Fragment != "" {
		fragment = "#" + strings.ReplaceAll(t.Fragment, " ", "_")
	}
	if t.DBKey == "" {
		return fragment, fragment != ""
	}

	return l.TitleURL(t, query) + fragment, true
}

// TitleURL returns the local URL of a title, using the script path when
// query parameters are present
func (l *LocalLinks) TitleURL(t model.Title, query url.Values) string {
	prefixed := l.codec.PrefixedDBKey(t)
	if len(query) == 0 {
		return strings.Replace(l.articlePath, "$1", model.URLEncodeTitle(prefixed), 1)
	}
	return l.scriptPath + "/index.php?title=" + model.URLEncodeTitle(prefixed) + "&" + query.Encode()
}
