package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Canonical namespace ids
const (
	NSMedia         = -2
	NSSpecial       = -1
	NSMain          = 0
	NSTalk          = 1
	NSUser          = 2
	NSUserTalk      = 3
	NSProject       = 4
	NSProjectTalk   = 5
	NSFile          = 6
	NSFileTalk      = 7
	NSMediaWiki     = 8
	NSMediaWikiTalk = 9
	NSTemplate      = 10
	NSTemplateTalk  = 11
	NSHelp          = 12
	NSHelpTalk      = 13
	NSCategory      = 14
	NSCategoryTalk  = 15
	NSModule        = 828
	NSModuleTalk    = 829
)

// ErrInvalidTitle is returned when text cannot be parsed into a title
var ErrInvalidTitle = errors.New("invalid title")

// Title is the canonical page identity: namespace plus underscore-joined DB key
type Title struct {
	Namespace int    `json:"ns"`
	DBKey     string `json:"dbkey"`
	Fragment  string `json:"fragment,omitempty"`
	Interwiki string `json:"interwiki,omitempty"`
}

// NewTitle builds a title in the given namespace, normalizing the page name
func NewTitle(ns int, text string) Title {
	return Title{Namespace: ns, DBKey: NormalizeDBKey(text)}
}

// Key returns the "ns:dbkey" identity used for memo and registry lookups
func (t Title) Key() string {
	return strconv.Itoa(t.Namespace) + ":" + t.DBKey
}

// Text returns the page name with spaces
func (t Title) Text() string {
	return strings.ReplaceAll(t.DBKey, "_", " ")
}

// IsExternal reports whether the title points at another wiki
func (t Title) IsExternal() bool {
	return t.Interwiki != ""
}

// IsUserConfigPage reports whether the title is a user CSS/JS/JSON subpage
func (t Title) IsUserConfigPage() bool {
	if t.Namespace != NSUser || !strings.Contains(t.DBKey, "/") {
		return false
	}
	for _, ext := range []string{".css", ".js", ".json"} {
		if strings.HasSuffix(t.DBKey, ext) {
			return true
		}
	}
	return false
}

func (t Title) String() string {
	return t.Key()
}

// NormalizeDBKey converts page text to DB key form: trimmed, underscores for
// whitespace runs, first letter upper-cased.
func NormalizeDBKey(text string) string {
	text = strings.Join(strings.FieldsFunc(text, func(r rune) bool {
		return r == '_' || unicode.IsSpace(r)
	}), "_")
	if text == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(text)
	return string(unicode.ToUpper(r)) + text[size:]
}

// Namespaces maps namespace ids to local names and back
type Namespaces struct {
	names map[int]string
	ids   map[string]int
}

// DefaultNamespaces returns the standard namespace table with the given
// project namespace name.
func DefaultNamespaces(project string) *Namespaces {
	if project == "" {
		project = "Project"
	}
	project = NormalizeDBKey(project)

	n := &Namespaces{names: make(map[int]string), ids: make(map[string]int)}
	for id, name := range map[int]string{
		NSMedia:         "Media",
		NSSpecial:       "Special",
		NSMain:          "",
		NSTalk:          "Talk",
		NSUser:          "User",
		NSUserTalk:      "User_talk",
		NSProject:       project,
		NSProjectTalk:   project + "_talk",
		NSFile:          "File",
		NSFileTalk:      "File_talk",
		NSMediaWiki:     "MediaWiki",
		NSMediaWikiTalk: "MediaWiki_talk",
		NSTemplate:      "Template",
		NSTemplateTalk:  "Template_talk",
		NSHelp:          "Help",
		NSHelpTalk:      "Help_talk",
		NSCategory:      "Category",
		NSCategoryTalk:  "Category_talk",
		NSModule:        "Module",
		NSModuleTalk:    "Module_talk",
	} {
		n.Add(id, name)
	}
	// Canonical aliases
	n.Alias(NSProject, "Project")
	n.Alias(NSProjectTalk, "Project_talk")
	n.Alias(NSFile, "Image")
	n.Alias(NSFileTalk, "Image_talk")
	return n
}

// Add registers the display name of a namespace
func (n *Namespaces) Add(id int, name string) {
	name = NormalizeDBKey(name)
	n.names[id] = name
	n.ids[strings.ToLower(name)] = id
}

// Alias registers an additional name resolving to a namespace
func (n *Namespaces) Alias(id int, name string) {
	n.ids[strings.ToLower(NormalizeDBKey(name))] = id
}

// Name returns the local name of a namespace
func (n *Namespaces) Name(id int) (string, bool) {
	name, ok := n.names[id]
	return name, ok
}

// ID resolves a namespace name or alias
func (n *Namespaces) ID(name string) (int, bool) {
	id, ok := n.ids[strings.ToLower(NormalizeDBKey(name))]
	return id, ok
}

// TitleCodec parses and formats titles against a namespace table and a set
// of interwiki prefixes.
type TitleCodec struct {
	namespaces  *Namespaces
	isInterwiki func(prefix string) bool
}

// NewTitleCodec creates a codec. isInterwiki may be nil.
func NewTitleCodec(namespaces *Namespaces, isInterwiki func(prefix string) bool) *TitleCodec {
	if isInterwiki == nil {
		isInterwiki = func(string) bool { return false }
	}
	return &TitleCodec{namespaces: namespaces, isInterwiki: isInterwiki}
}

// Namespaces returns the namespace table used by the codec
func (c *TitleCodec) Namespaces() *Namespaces {
	return c.namespaces
}

const illegalTitleChars = "<>[]{}|"

// Parse parses prefixed page text such as "Talk:Foo bar#Section"
func (c *TitleCodec) Parse(text string) (Title, error) {
	var t Title

	if i := strings.IndexByte(text, '#'); i >= 0 {
		t.Fragment = strings.TrimSpace(text[i+1:])
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, ":")

	if strings.ContainsAny(text, illegalTitleChars) {
		return Title{}, fmt.Errorf("%w: %q", ErrInvalidTitle, text)
	}
	for _, r := range text {
		if unicode.IsControl(r) {
			return Title{}, fmt.Errorf("%w: control character", ErrInvalidTitle)
		}
	}

	if i := strings.IndexByte(text, ':'); i > 0 {
		prefix := strings.TrimSpace(text[:i])
		rest := strings.TrimSpace(text[i+1:])
		if id, ok := c.namespaces.ID(prefix); ok {
			t.Namespace = id
			text = rest
		} else if c.isInterwiki(strings.ToLower(prefix)) {
			t.Interwiki = strings.ToLower(prefix)
			text = rest
		}
	}

	t.DBKey = NormalizeDBKey(text)
	if t.DBKey == "" && t.Fragment == "" && t.Interwiki == "" {
		return Title{}, fmt.Errorf("%w: empty", ErrInvalidTitle)
	}
	if t.DBKey == "" && t.Namespace != NSMain {
		return Title{}, fmt.Errorf("%w: empty page name in namespace %d", ErrInvalidTitle, t.Namespace)
	}
	return t, nil
}

// MustParse parses text and panics on failure. Intended for tests and constants.
func (c *TitleCodec) MustParse(text string) Title {
	t, err := c.Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

// PrefixedDBKey returns "Ns:Db_key"
func (c *TitleCodec) PrefixedDBKey(t Title) string {
	prefix := ""
	if t.Interwiki != "" {
		prefix = t.Interwiki + ":"
	}
	if name, ok := c.namespaces.Name(t.Namespace); ok && name != "" {
		prefix += name + ":"
	} else if !ok && t.Namespace != NSMain {
		prefix += "Special:Badtitle/NS" + strconv.Itoa(t.Namespace) + ":"
	}
	return prefix + t.DBKey
}

// PrefixedText returns "Ns:Page text" with spaces
func (c *TitleCodec) PrefixedText(t Title) string {
	return strings.ReplaceAll(c.PrefixedDBKey(t), "_", " ")
}
