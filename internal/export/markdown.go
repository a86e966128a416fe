package export

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Raw HTML in chat content is not rendered; goldmark omits it unless
// html.WithUnsafe is set.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// markdownToHTML renders a chat message. Model answers are Markdown; user
// questions render as plain paragraphs.
func markdownToHTML(source string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "<p>" + html.EscapeString(source) + "</p>"
	}
	return buf.String()
}
