package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/wikimirror/internal/remote"
)

var (
	baseHref   = regexp.MustCompile(`<base href=".*?"`)
	loadScript = regexp.MustCompile(`="[^"]*?/load\.php`)
)

// GetVisualEditorAPI passes params through to the remote visual editor API.
// The returned document's base URL and load.php references point at the
// local wiki. Results are not cached.
func (m *Mirror) GetVisualEditorAPI(ctx context.Context, params map[string]string) (map[string]any, error) {
	call := make(map[string]string, len(params)+1)
	for k, v := range params {
		call[k] = v
	}
	call["action"] = "visualeditor"

	data, err := m.remote.Call(ctx, call, "mirror.getVisualEditorApi")
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: visualeditor: %v", remote.ErrMalformed, err)
	}

	if doc, ok := result["content"].(string); ok {
		base := strings.TrimSuffix(m.local.Server, "/") + strings.Replace(m.local.ArticlePath, "$1", "", 1)
		doc = baseHref.ReplaceAllLiteralString(doc, `<base href="`+base+`"`)
		doc = loadScript.ReplaceAllLiteralString(doc, `="`+strings.TrimSuffix(m.local.ScriptPath, "/")+"/load.php")
		result["content"] = doc
	}
	return result, nil
}
