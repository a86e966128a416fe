package util

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strings"
	"unicode"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// SafeFileName reduces an uploaded file name to its base name with only
// letters, digits, dots, dashes and underscores, for use in object keys and
// download headers.
func SafeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return "document"
	}
	if len(cleaned) > 120 {
		ext := filepath.Ext(cleaned)
		if len(ext) > 10 {
			ext = ""
		}
		cleaned = cleaned[:120-len(ext)] + ext
	}
	return cleaned
}
