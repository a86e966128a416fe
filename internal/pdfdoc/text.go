package pdfdoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText returns the plain text of the first maxPages pages of an
// unencrypted PDF, truncated to maxChars runes. Scanned documents yield an
// empty string.
func ExtractText(data []byte, maxPages, maxChars int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("extract text: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if err == pdf.ErrInvalidPassword {
			return "", ErrInvalidPassword
		}
		return "", fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	if maxPages > 0 && total > maxPages {
		total = maxPages
	}

	var builder strings.Builder
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(content)
	}
	return truncateRunes(builder.String(), maxChars), nil
}

func truncateRunes(value string, max int) string {
	if max <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
