package model

import "strings"

// NamespaceInfo is one remote namespace
type NamespaceInfo struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Canonical string `json:"canonical"`
}

// NamespaceAlias is an extra name for a remote namespace
type NamespaceAlias struct {
	ID    int    `json:"id"`
	Alias string `json:"alias"`
}

// SiteInfo is the remote wiki's general configuration
type SiteInfo struct {
	Server               string                `json:"server"`
	ArticlePath          string                `json:"articlepath"`
	ScriptPath           string                `json:"scriptpath"`
	MainPageIsDomainRoot bool                  `json:"mainpageisdomainroot"`
	VariantArticlePath   string                `json:"variantarticlepath"`
	Namespaces           map[int]NamespaceInfo `json:"namespaces"`
	NamespaceAliases     []NamespaceAlias      `json:"namespacealiases"`
}

// NamespaceMap maps every namespace name, canonical name and alias, in DB key
// form, to its id.
func (s *SiteInfo) NamespaceMap() map[string]int {
	m := make(map[string]int, len(s.Namespaces)+len(s.NamespaceAliases))
	for id, ns := range s.Namespaces {
		m[strings.ReplaceAll(ns.Name, " ", "_")] = id
		if ns.Canonical != "" {
			m[strings.ReplaceAll(ns.Canonical, " ", "_")] = id
		}
	}
	for _, alias := range s.NamespaceAliases {
		m[strings.ReplaceAll(alias.Alias, " ", "_")] = alias.ID
	}
	return m
}
