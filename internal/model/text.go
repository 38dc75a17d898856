package model

// ParsedText is rendered remote page output with links rewritten to the local wiki
type ParsedText struct {
	Title         string            `json:"title"`
	PageID        int64             `json:"pageid"`
	RevID         int64             `json:"revid"`
	HTML          string            `json:"html"`
	Wikitext      string            `json:"wikitext"`
	LanguageLinks []string          `json:"langlinks"`
	Categories    map[string]string `json:"categories"`
	Modules       []string          `json:"modules"`
	ModuleScripts []string          `json:"modulescripts"`
	ModuleStyles  []string          `json:"modulestyles"`
	JSConfigVars  map[string]any    `json:"jsconfigvars"`
	Indicators    map[string]string `json:"indicators"`
	Properties    map[string]string `json:"properties"`
}

// DisplayTitle returns the display title page property
func (p *ParsedText) DisplayTitle() (string, bool) {
	v, ok := p.Properties["displaytitle"]
	return v, ok
}
