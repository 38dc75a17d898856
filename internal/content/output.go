package content

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/wikimirror/internal/model"
)

// ParserOutput is the renderable result of a mirrored page
type ParserOutput struct {
	HTML            string            `json:"html"`
	LanguageLinks   []string          `json:"langlinks"`
	Categories      map[string]string `json:"categories"`
	DisplayTitle    string            `json:"displaytitle,omitempty"`
	Indicators      map[string]string `json:"indicators"`
	Modules         []string          `json:"modules"`
	ModuleScripts   []string          `json:"modulescripts"`
	ModuleStyles    []string          `json:"modulestyles"`
	JSConfigVars    map[string]any    `json:"jsconfigvars"`
	Properties      map[string]string `json:"properties"`
	Language        model.Language    `json:"language"`
	Timestamp       time.Time         `json:"timestamp"`
	CacheRevisionID int64             `json:"cacherevisionid"`
	CacheTime       string            `json:"cachetime"`
	RenderID        string            `json:"renderid"`
	HideNewSection  bool              `json:"hidenewsection"`
	EnableOOUI      bool              `json:"enableooui"`
}

// NewParserOutput builds parser output from the parsed text of a remote page.
// The displaytitle property moves to DisplayTitle.
func NewParserOutput(page *model.PageInfo, text *model.ParsedText, now time.Time) (*ParserOutput, error) {
	out := &ParserOutput{
		HTML:            text.HTML,
		LanguageLinks:   append([]string(nil), text.LanguageLinks...),
		Categories:      copyStrings(text.Categories),
		Indicators:      copyStrings(text.Indicators),
		Modules:         append([]string(nil), text.Modules...),
		ModuleScripts:   append([]string(nil), text.ModuleScripts...),
		ModuleStyles:    append([]string(nil), text.ModuleStyles...),
		JSConfigVars:    text.JSConfigVars,
		Properties:      copyStrings(text.Properties),
		Language:        page.Language,
		CacheRevisionID: page.LastRevID,
		CacheTime:       page.Touched,
		HideNewSection:  true,
		Timestamp:       now.UTC(),
	}

	if title, ok := out.Properties["displaytitle"]; ok {
		out.DisplayTitle = title
		delete(out.Properties, "displaytitle")
	}

	if page.LastRevID != 0 && page.Revision != nil {
		if ts, err := page.Revision.TimestampTime(); err == nil {
			out.Timestamp = ts
		}
	}

	id, err := uuid.NewUUID()
	if err != nil {
		return nil, fmt.Errorf("generate render id: %w", err)
	}
	out.RenderID = fmt.Sprintf("%d/%s", page.LastRevID, id)

	return out, nil
}

// AddModuleStyles appends style modules not already present
func (o *ParserOutput) AddModuleStyles(modules ...string) {
	for _, m := range modules {
		found := false
		for _, existing := range o.ModuleStyles {
			if existing == m {
				found = true
				break
			}
		}
		if !found {
			o.ModuleStyles = append(o.ModuleStyles, m)
		}
	}
}

// SetIndicator sets a page status indicator
func (o *ParserOutput) SetIndicator(name, html string) {
	if o.Indicators == nil {
		o.Indicators = map[string]string{}
	}
	o.Indicators[name] = html
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
