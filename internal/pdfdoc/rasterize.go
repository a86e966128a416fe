package pdfdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/sirupsen/logrus"

	"github.com/ragavi-632007/visionx/internal/logging"
)

const (
	// MaxRasterPages caps the pages sent for analysis.
	MaxRasterPages = 10
	// RenderDPI renders at twice the 72 DPI PDF user space.
	RenderDPI = 144
)

var (
	ErrNoPagesRendered = errors.New("pdfdoc: no pages could be rendered")
	ErrUnreadable      = errors.New("pdfdoc: document could not be opened")
)

// RasterPage is one rendered page encoded as PNG. Index is 1-based.
type RasterPage struct {
	Index  int
	Data   []byte
	Width  int
	Height int
}

// Renderer opens an unencrypted PDF for page rendering.
type Renderer interface {
	Open(data []byte) (RenderedDocument, error)
}

// RenderedDocument renders pages by 0-based index.
type RenderedDocument interface {
	NumPage() int
	RenderPage(index int, dpi float64) (image.Image, error)
	Close() error
}

type Rasterizer struct {
	renderer Renderer
	logger   logrus.FieldLogger
	maxPages int
	dpi      float64
}

func NewRasterizer(renderer Renderer, logger logrus.FieldLogger) *Rasterizer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Rasterizer{
		renderer: renderer,
		logger:   logger,
		maxPages: MaxRasterPages,
		dpi:      RenderDPI,
	}
}

// Rendering is a rasterized document. Plain is the unencrypted document the
// pages were rendered from, so callers need not decrypt a second time.
type Rendering struct {
	Pages []RasterPage
	Plain []byte
}

// ConvertToImages decrypts data with password when needed and renders at most
// MaxRasterPages pages in order. Pages that fail to render are skipped; the
// call fails only when none survive. No partial result is returned on error.
func (r *Rasterizer) ConvertToImages(ctx context.Context, data []byte, password string) ([]RasterPage, error) {
	rendering, err := r.render(ctx, data, password, password != "" || IsPasswordProtected(data))
	if err != nil {
		return nil, err
	}
	return rendering.Pages, nil
}

// Render is ConvertToImages for callers that already ran detection: data is
// decrypted only when password is set and is otherwise rendered as is.
func (r *Rasterizer) Render(ctx context.Context, data []byte, password string) (Rendering, error) {
	return r.render(ctx, data, password, password != "")
}

func (r *Rasterizer) render(ctx context.Context, data []byte, password string, decrypt bool) (Rendering, error) {
	plain := data
	if decrypt {
		decrypted, err := Decrypt(data, password)
		if err != nil {
			return Rendering{}, err
		}
		plain = decrypted
	}

	doc, err := r.renderer.Open(plain)
	if err != nil {
		return Rendering{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer doc.Close()

	total := doc.NumPage()
	limit := total
	if limit > r.maxPages {
		limit = r.maxPages
	}

	pages := make([]RasterPage, 0, limit)
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return Rendering{}, err
		}
		logger := r.logger.WithField("page", i+1)
		img, err := doc.RenderPage(i, r.dpi)
		if err != nil {
			logger.WithError(err).Warn("Skipping page that failed to render")
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			logger.WithError(err).Warn("Skipping page that failed to encode")
			continue
		}
		if buf.Len() == 0 {
			logger.Warn("Skipping page that encoded to no data")
			continue
		}
		bounds := img.Bounds()
		pages = append(pages, RasterPage{
			Index:  i + 1,
			Data:   buf.Bytes(),
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		})
	}

	if len(pages) == 0 {
		return Rendering{}, ErrNoPagesRendered
	}
	r.logger.WithFields(logrus.Fields{
		"total_pages":    total,
		"rendered_pages": len(pages),
	}).Debug("Rasterized PDF")
	return Rendering{Pages: pages, Plain: plain}, nil
}
