package response

import (
	"encoding/json"
	"strconv"

	"github.com/ppiankov/wikimirror/internal/model"
)

// NewSiteInfo converts a siteinfo payload
func NewSiteInfo(raw *RawSiteInfo) *model.SiteInfo {
	site := &model.SiteInfo{
		Server:               raw.General.Server,
		ArticlePath:          raw.General.ArticlePath,
		ScriptPath:           raw.General.ScriptPath,
		MainPageIsDomainRoot: raw.General.MainPageIsDomainRoot,
		Namespaces:           make(map[int]model.NamespaceInfo, len(raw.Namespaces)),
		NamespaceAliases:     make([]model.NamespaceAlias, 0, len(raw.NamespaceAliases)),
	}

	// variantarticlepath is false when unset
	var variant string
	if err := json.Unmarshal(raw.General.VariantArticlePath, &variant); err == nil {
		site.VariantArticlePath = variant
	}

	for key, ns := range raw.Namespaces {
		id := ns.ID
		if parsed, err := strconv.Atoi(key); err == nil {
			id = parsed
		}
		site.Namespaces[id] = model.NamespaceInfo{
			ID:        id,
			Name:      ns.Name,
			Canonical: ns.Canonical,
		}
	}
	for _, alias := range raw.NamespaceAliases {
		site.NamespaceAliases = append(site.NamespaceAliases, model.NamespaceAlias{
			ID:    alias.ID,
			Alias: alias.Alias,
		})
	}
	return site
}
