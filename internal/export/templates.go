package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("Jan 2, 2006 15:04 MST")
	},
	"deref": func(b *bool) bool { return b != nil && *b },
	"dict": func(pairs ...any) map[string]any {
		out := make(map[string]any, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			key, _ := pairs[i].(string)
			out[key] = pairs[i+1]
		}
		return out
	},
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}).ParseFS(templateFS, "templates/report.html"))

// TemplateData holds data for report rendering
type TemplateData struct {
	FileName            string
	Language            string
	Summary             string
	Pros                []string
	Cons                []string
	PotentialLoopholes  []string
	PotentialChallenges []string
	IsLegal             *bool
	Authenticity        *string
	Protected           bool
	AnalyzedAt          time.Time
	GeneratedAt         time.Time
	Model               string
	Chats               []TemplateChat
}

type TemplateChat struct {
	Title    string
	Messages []TemplateMessage
}

type TemplateMessage struct {
	Role     string
	BodyHTML template.HTML
	At       time.Time
}

func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
