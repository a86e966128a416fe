package analysis

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const DefaultLanguage = "English"

// LanguageName resolves a BCP 47 code such as "hi" or "ta-IN" to the English
// name of the language. Values that are not codes are treated as names.
func LanguageName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(value)
	if err != nil {
		return value
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return value
	}
	name := display.English.Languages().Name(base)
	if name == "" {
		return value
	}
	return name
}
