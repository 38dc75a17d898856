package response

import (
	"golang.org/x/text/language"

	"github.com/ppiankov/wikimirror/internal/model"
)

var rtlLanguages = map[string]bool{
	"ar": true, "arc": true, "arz": true, "azb": true, "bcc": true, "bqi": true,
	"ckb": true, "dv": true, "fa": true, "glk": true, "he": true, "khw": true,
	"ks": true, "lrc": true, "mzn": true, "nqo": true, "pnb": true, "ps": true,
	"sd": true, "ug": true, "ur": true, "yi": true,
}

// LanguageFor describes a wiki language code. The HTML code is the BCP 47
// form of the code when it parses as one.
func LanguageFor(code string) model.Language {
	lang := model.Language{Code: code, HTMLCode: code, Dir: "ltr"}
	if tag, err := language.Parse(code); err == nil {
		lang.HTMLCode = tag.String()
	}
	if rtlLanguages[code] {
		lang.Dir = "rtl"
	}
	return lang
}
