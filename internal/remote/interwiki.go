package remote

import (
	"strings"

	"github.com/ppiankov/wikimirror/internal/model"
)

// Interwiki describes another wiki reachable by prefix
type Interwiki struct {
	Prefix string
	URL    string
	API    string
	WikiID string
}

// ArticleURL expands the interwiki URL template for a prefixed DB key
func (iw *Interwiki) ArticleURL(prefixedDBKey string) string {
	return strings.Replace(iw.URL, "$1", model.URLEncodeTitle(prefixedDBKey), 1)
}

// InterwikiLookup resolves interwiki prefixes
type InterwikiLookup interface {
	Fetch(prefix string) (*Interwiki, bool)
}

// StaticInterwiki is an interwiki table loaded from configuration
type StaticInterwiki map[string]*Interwiki

// NewStaticInterwiki builds a lookup from config entries
func NewStaticInterwiki(entries []model.InterwikiEntry) StaticInterwiki {
	table := make(StaticInterwiki, len(entries))
	for _, e := range entries {
		prefix := strings.ToLower(e.Prefix)
		table[prefix] = &Interwiki{
			Prefix: prefix,
			URL:    e.URL,
			API:    e.API,
			WikiID: e.WikiID,
		}
	}
	return table
}

// Fetch returns the entry for prefix
func (s StaticInterwiki) Fetch(prefix string) (*Interwiki, bool) {
	iw, ok := s[strings.ToLower(prefix)]
	return iw, ok
}

// IsValidPrefix reports whether prefix names a known interwiki
func (s StaticInterwiki) IsValidPrefix(prefix string) bool {
	_, ok := s[strings.ToLower(prefix)]
	return ok
}
