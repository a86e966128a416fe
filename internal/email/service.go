// Package email sends account and analysis notifications over SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
)

var ErrNotConfigured = errors.New("email not configured")

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	// BaseURL prefixes the links placed in messages.
	BaseURL string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   SendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// WithSender replaces the SMTP transport; tests capture messages with it.
func (s *Service) WithSender(send SendFunc) *Service {
	s.send = send
	return s
}

func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) fromHeader() string {
	if s.config.FromName == "" {
		return s.config.From
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)
}

func (s *Service) link(path string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + path
}

// SendHTMLEmail sends a multipart/alternative message with a plain text
// fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	msg := buildMessage(s.fromHeader(), to, subject, textBody, htmlBody)
	if err := s.send(s.server, s.auth, s.config.From, to, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

const boundary = "visionx-alternative"

func buildMessage(from string, to []string, subject, textBody, htmlBody string) []byte {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", textBody)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.Bytes()
}

type messageData struct {
	UserName     string
	URL          string
	DocumentName string
	Summary      string
}

func (s *Service) SendVerificationEmail(to, userName, token string) error {
	data := messageData{UserName: userName, URL: s.link("/verify-email?token=" + token)}
	return s.sendTemplate(to, "Verify your VisionX account", "verification", data)
}

func (s *Service) SendPasswordResetEmail(to, userName, token string) error {
	data := messageData{UserName: userName, URL: s.link("/reset-password?token=" + token)}
	return s.sendTemplate(to, "Reset your VisionX password", "reset", data)
}

// SendAnalysisReadyEmail tells the owner a document analysis finished.
func (s *Service) SendAnalysisReadyEmail(to, userName, documentID, documentName, summary string) error {
	data := messageData{
		UserName:     userName,
		URL:          s.link("/documents/" + documentID),
		DocumentName: documentName,
		Summary:      truncate(summary, 400),
	}
	return s.sendTemplate(to, "Your analysis of "+documentName+" is ready", "analysis", data)
}

func (s *Service) sendTemplate(to, subject, name string, data messageData) error {
	var html, text bytes.Buffer
	if err := templates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return fmt.Errorf("render %s template: %w", name, err)
	}
	if err := templates.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return fmt.Errorf("render %s template: %w", name, err)
	}
	return s.SendHTMLEmail([]string{to}, subject, text.String(), html.String())
}

func truncate(value string, limit int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "…"
}

const layoutStyle = `<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
.header { border-bottom: 2px solid #1f3a5f; padding-bottom: 10px; margin-bottom: 20px; }
.button { display: inline-block; padding: 12px 24px; background: #1f3a5f; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
.footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
.summary { background: #f5f7fa; padding: 12px; border-radius: 4px; }
</style>`

var templates = template.Must(template.New("email").Parse(`
{{define "style"}}` + layoutStyle + `{{end}}

{{define "verification.html"}}<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>Verify your VisionX account</title>{{template "style"}}</head>
<body>
<div class="header"><h1>VisionX</h1></div>
<h2>Welcome, {{.UserName}}!</h2>
<p>Please verify your email address to start analyzing documents.</p>
<p><a href="{{.URL}}" class="button">Verify Email Address</a></p>
<p>This link expires in 24 hours.</p>
<div class="footer"><p>If you didn't create a VisionX account, you can ignore this email.</p></div>
</body></html>{{end}}

{{define "verification.txt"}}Welcome, {{.UserName}}!

Verify your email address: {{.URL}}
This link expires in 24 hours.{{end}}

{{define "reset.html"}}<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>Reset your VisionX password</title>{{template "style"}}</head>
<body>
<div class="header"><h1>VisionX</h1></div>
<p>Hi {{.UserName}},</p>
<p>We received a request to reset your password.</p>
<p><a href="{{.URL}}" class="button">Reset Password</a></p>
<p>This link expires in 1 hour.</p>
<div class="footer"><p>If you didn't request a reset, your password stays unchanged.</p></div>
</body></html>{{end}}

{{define "reset.txt"}}Hi {{.UserName}},

Reset your password: {{.URL}}
This link expires in 1 hour.{{end}}

{{define "analysis.html"}}<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>Analysis ready</title>{{template "style"}}</head>
<body>
<div class="header"><h1>VisionX</h1></div>
<p>Hi {{.UserName}},</p>
<p>The analysis of <strong>{{.DocumentName}}</strong> is ready.</p>
<div class="summary">{{.Summary}}</div>
<p><a href="{{.URL}}" class="button">Open analysis</a></p>
<div class="footer"><p>VisionX analyses are informational and are not legal advice.</p></div>
</body></html>{{end}}

{{define "analysis.txt"}}Hi {{.UserName}},

The analysis of {{.DocumentName}} is ready.

{{.Summary}}

Open it at {{.URL}}{{end}}
`))
