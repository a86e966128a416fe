// Package pipeline runs an upload through protection detection,
// rasterization and analysis.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ragavi-632007/visionx/internal/analysis"
	"github.com/ragavi-632007/visionx/internal/classify"
	"github.com/ragavi-632007/visionx/internal/document"
	"github.com/ragavi-632007/visionx/internal/logging"
	"github.com/ragavi-632007/visionx/internal/pdfdoc"
)

// ErrPasswordRequired means the PDF is protected and no password was given.
// The caller prompts and runs again with one.
var ErrPasswordRequired = errors.New("pipeline: password required")

type Analyzer interface {
	AnalyzeDocument(ctx context.Context, files []document.File, language string) (analysis.Result, error)
}

// imageAnalyzer is implemented by analyzers whose provider takes page images
// but not PDFs.
type imageAnalyzer interface {
	ImagesOnly() bool
}

// Rasterizer renders PDF pages. An empty password means data is not
// encrypted.
type Rasterizer interface {
	Render(ctx context.Context, data []byte, password string) (pdfdoc.Rendering, error)
}

// Outcome is the analysis of one upload. File is the original upload, still
// encrypted when it was protected.
type Outcome struct {
	File          document.File
	Result        analysis.Result
	Insights      classify.Insights
	Protected     bool
	RenderedPages int
	// DocumentText is left empty for protected PDFs so decrypted content
	// never outlives the request.
	DocumentText string
}

type Pipeline struct {
	analyzer   Analyzer
	rasterizer Rasterizer
	classifier classify.Classifier
	detect     func([]byte) bool
	imagesOnly bool
	logger     logrus.FieldLogger
	// text extraction bounds for chat context
	textPages int
	textChars int
}

type Option func(*Pipeline)

func WithClassifier(c classify.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

func WithDetector(detect func([]byte) bool) Option {
	return func(p *Pipeline) { p.detect = detect }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func New(analyzer Analyzer, rasterizer Rasterizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		analyzer:   analyzer,
		rasterizer: rasterizer,
		classifier: classify.DefaultKeywords,
		detect:     pdfdoc.IsPasswordProtected,
		logger:     logging.Discard(),
		textPages:  pdfdoc.MaxRasterPages,
		textChars:  20000,
	}
	if images, ok := analyzer.(imageAnalyzer); ok {
		p.imagesOnly = images.ImagesOnly()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run analyzes file. Protected PDFs are decrypted with password and sent as
// page images, as are all PDFs when the analyzer takes images only.
// Everything else is sent as uploaded. Protection is detected once per call
// and a protected PDF without a password fails with ErrPasswordRequired
// before any rendering or remote call. The password is used for this call
// only.
func (p *Pipeline) Run(ctx context.Context, file document.File, password, language string) (Outcome, error) {
	logger := p.logger.WithFields(logrus.Fields{
		"file": file.Name,
		"kind": file.Kind,
		"size": file.Size(),
	})

	outcome := Outcome{File: file}
	parts := []document.File{file}
	var text string

	if file.IsPDF() {
		outcome.Protected = p.detect(file.Data)
		if outcome.Protected && password == "" {
			return Outcome{}, ErrPasswordRequired
		}
		if !outcome.Protected {
			password = ""
		}
		plain := file.Data
		if outcome.Protected || p.imagesOnly {
			rendering, err := p.rasterizer.Render(ctx, file.Data, password)
			if err != nil {
				if !errors.Is(err, pdfdoc.ErrInvalidPassword) {
					logger.WithError(err).Warn("Rasterizing PDF failed")
				}
				return Outcome{}, err
			}
			parts = pageFiles(file.Name, rendering.Pages)
			outcome.RenderedPages = len(rendering.Pages)
			plain = rendering.Plain
			logger.WithField("pages", len(rendering.Pages)).Debug("Sending rasterized pages")
		}
		text = p.extractText(plain)
		if !outcome.Protected {
			outcome.DocumentText = text
		}
	}

	result, err := p.analyzer.AnalyzeDocument(ctx, parts, language)
	if err != nil {
		return Outcome{}, err
	}
	outcome.Insights = classify.Resolve(p.classifier, result, text)
	outcome.Result = classify.Fill(p.classifier, result, text)
	return outcome, nil
}

// extractText reads text of an unencrypted PDF for chat context; failures
// only cost context.
func (p *Pipeline) extractText(plain []byte) string {
	text, err := pdfdoc.ExtractText(plain, p.textPages, p.textChars)
	if err != nil {
		p.logger.WithError(err).Debug("No extractable text")
		return ""
	}
	return text
}

func pageFiles(name string, pages []pdfdoc.RasterPage) []document.File {
	files := make([]document.File, 0, len(pages))
	for _, page := range pages {
		files = append(files, document.New(fmt.Sprintf("%s-page-%02d.png", name, page.Index), document.MIMEPNG, document.KindImage, page.Data))
	}
	return files
}
