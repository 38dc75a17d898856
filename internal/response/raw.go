package response

import "encoding/json"

// RawQuery is the "query" member of an action=query response
type RawQuery struct {
	PageIDs   []json.Number  `json:"pageids"`
	Pages     []RawPage      `json:"pages"`
	Interwiki []RawInterwiki `json:"interwiki"`
	Redirects []RawRedirect  `json:"redirects"`
}

// RawInterwiki marks a title that resolved to another wiki
type RawInterwiki struct {
	Title string `json:"title"`
	IW    string `json:"iw"`
}

// RawRedirect is one hop reported by redirects=1
type RawRedirect struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RawPage is a page from prop=info|revisions. It is also the cached form of
// a remote page, so snapshot-sourced pages are converted into it.
type RawPage struct {
	PageID               int64              `json:"pageid"`
	NS                   int                `json:"ns"`
	Title                string             `json:"title"`
	Missing              bool               `json:"missing,omitempty"`
	Invalid              bool               `json:"invalid,omitempty"`
	ContentModel         string             `json:"contentmodel"`
	PageLanguage         string             `json:"pagelanguage"`
	PageLanguageHTMLCode string             `json:"pagelanguagehtmlcode"`
	PageLanguageDir      string             `json:"pagelanguagedir"`
	Touched              string             `json:"touched"`
	LastRevID            int64              `json:"lastrevid"`
	Length               int64              `json:"length"`
	Redirect             bool               `json:"redirect,omitempty"`
	DisplayTitle         string             `json:"displaytitle,omitempty"`
	Revisions            []RawRevision      `json:"revisions,omitempty"`
	RedirectTarget       *RawRedirectTarget `json:"redirecttarget,omitempty"`
}

// RawRedirectTarget is the final page a remote redirect resolves to
type RawRedirectTarget struct {
	NS    int    `json:"ns"`
	Title string `json:"title"`
}

// RawRevision is a revision from prop=revisions with rvslots=*
type RawRevision struct {
	RevID         int64              `json:"revid"`
	ParentID      int64              `json:"parentid"`
	Minor         bool               `json:"minor,omitempty"`
	User          *string            `json:"user,omitempty"`
	UserID        *int64             `json:"userid,omitempty"`
	UserHidden    bool               `json:"userhidden,omitempty"`
	Timestamp     string             `json:"timestamp"`
	Size          int64              `json:"size"`
	SHA1          *string            `json:"sha1,omitempty"`
	SHA1Hidden    bool               `json:"sha1hidden,omitempty"`
	Comment       *string            `json:"comment,omitempty"`
	ParsedComment *string            `json:"parsedcomment,omitempty"`
	CommentHidden bool               `json:"commenthidden,omitempty"`
	Tags          []string           `json:"tags"`
	Roles         []string           `json:"roles"`
	Slots         map[string]RawSlot `json:"slots"`
}

// RawSlot is one slot of a revision
type RawSlot struct {
	Size          int64   `json:"size"`
	SHA1          *string `json:"sha1,omitempty"`
	SHA1Hidden    bool    `json:"sha1hidden,omitempty"`
	ContentModel  string  `json:"contentmodel"`
	ContentFormat *string `json:"contentformat,omitempty"`
	Content       *string `json:"content,omitempty"`
	TextHidden    bool    `json:"texthidden,omitempty"`
}

// RawParse is the "parse" member of an action=parse response
type RawParse struct {
	Title         string            `json:"title"`
	PageID        int64             `json:"pageid"`
	RevID         int64             `json:"revid"`
	Text          string            `json:"text"`
	Wikitext      string            `json:"wikitext"`
	LangLinks     []RawLangLink     `json:"langlinks"`
	Categories    []RawCategory     `json:"categories"`
	Modules       []string          `json:"modules"`
	ModuleScripts []string          `json:"modulescripts"`
	ModuleStyles  []string          `json:"modulestyles"`
	JSConfigVars  map[string]any    `json:"jsconfigvars"`
	Indicators    map[string]string `json:"indicators"`
	Properties    map[string]string `json:"properties"`
}

// RawLangLink is an interlanguage link
type RawLangLink struct {
	Lang  string `json:"lang"`
	Title string `json:"title"`
}

// RawCategory is a category membership with its sort key
type RawCategory struct {
	Category string `json:"category"`
	SortKey  string `json:"sortkey"`
}

// RawSiteInfo is the "query" member of a meta=siteinfo response
type RawSiteInfo struct {
	General          RawGeneral              `json:"general"`
	Namespaces       map[string]RawNamespace `json:"namespaces"`
	NamespaceAliases []RawNamespaceAlias     `json:"namespacealiases"`
}

// RawGeneral is siprop=general
type RawGeneral struct {
	Server               string          `json:"server"`
	ArticlePath          string          `json:"articlepath"`
	ScriptPath           string          `json:"scriptpath"`
	MainPageIsDomainRoot bool            `json:"mainpageisdomainroot"`
	VariantArticlePath   json.RawMessage `json:"variantarticlepath"`
}

// RawNamespace is one entry of siprop=namespaces
type RawNamespace struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Canonical string `json:"canonical"`
}

// RawNamespaceAlias is one entry of siprop=namespacealiases
type RawNamespaceAlias struct {
	ID    int    `json:"id"`
	Alias string `json:"alias"`
}
