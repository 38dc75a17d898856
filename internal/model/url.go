package model

import (
	"net/url"
	"strings"
)

var titleURLKeep = strings.NewReplacer(
	"%3A", ":", "%2F", "/", "%40", "@", "%21", "!", "%24", "$",
	"%28", "(", "%29", ")", "%2C", ",", "%3B", ";", "%2A", "*", "%7E", "~",
)

// URLEncodeTitle percent-encodes a prefixed DB key for use in an article URL,
// leaving the punctuation wiki URLs keep readable
func URLEncodeTitle(dbKey string) string {
	return titleURLKeep.Replace(url.QueryEscape(dbKey))
}
