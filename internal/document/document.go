// Package document loads user uploads into immutable in-memory files and
// decides how each one reaches the analysis pipeline.
package document

import "errors"

type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
	KindWord  Kind = "word"
)

var (
	ErrEmptyFile       = errors.New("document: file is empty")
	ErrUnsupportedType = errors.New("document: unsupported file type")
	ErrTooLarge        = errors.New("document: file exceeds upload limit")
)

// File is an uploaded document held in memory. Data is never modified after
// Load returns; normalization produces a new File.
type File struct {
	Name     string
	MIMEType string
	Kind     Kind
	Data     []byte
}

func (f File) Size() int64 {
	return int64(len(f.Data))
}

func (f File) IsPDF() bool {
	return f.Kind == KindPDF
}

// New wraps already validated bytes, used for rasterized pages.
func New(name, mimeType string, kind Kind, data []byte) File {
	return File{Name: name, MIMEType: mimeType, Kind: kind, Data: data}
}
