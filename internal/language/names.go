// Package language maps subtitle language codes to display names for
// UI labeling. Translation logic never depends on these names, only on
// the codes themselves.
package language

import "golang.org/x/text/language"

// DefaultName is returned for codes the table does not know.
const DefaultName = "Unknown"

var displayNames = map[string]string{
	"ar": "Arabic",
	"bg": "Bulgarian",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"es": "Spanish",
	"fa": "Persian",
	"fi": "Finnish",
	"fr": "French",
	"he": "Hebrew",
	"hi": "Hindi",
	"hr": "Croatian",
	"hu": "Hungarian",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"ms": "Malay",
	"nl": "Dutch",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sr": "Serbian",
	"sv": "Swedish",
	"th": "Thai",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// Name resolves a language code to its human-readable display name.
// Region or script subtags are ignored ("pt-BR" resolves like "pt").
func Name(code string) string {
	if name, ok := displayNames[code]; ok {
		return name
	}
	tag, err := language.Parse(code)
	if err != nil {
		return DefaultName
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return DefaultName
	}
	if name, ok := displayNames[base.String()]; ok {
		return name
	}
	return DefaultName
}

// Known reports whether the code resolves to a display name.
func Known(code string) bool {
	return Name(code) != DefaultName
}
