package pdfdoc

import (
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer renders pages with MuPDF.
type FitzRenderer struct{}

func (FitzRenderer) Open(data []byte) (RenderedDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPage() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(index int, dpi float64) (image.Image, error) {
	return d.doc.ImageDPI(index, dpi)
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
