package document

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEWEBP = "image/webp"
	MIMEDOC  = "application/msword"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMERTF  = "application/rtf"
	MIMEODT  = "application/vnd.oasis.opendocument.text"
)

// model-native image types; anything else decodable is converted to PNG
var nativeImageTypes = map[string]bool{
	MIMEPNG:      true,
	MIMEJPEG:     true,
	MIMEWEBP:     true,
	"image/heic": true,
	"image/heif": true,
}

var convertibleImageTypes = map[string]bool{
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
}

var wordTypes = map[string]bool{
	MIMEDOC:      true,
	MIMEDOCX:     true,
	MIMERTF:      true,
	"text/rtf":   true,
	MIMEODT:      true,
	"text/plain": true,
}

var extensionTypes = map[string]string{
	".pdf":  MIMEPDF,
	".doc":  MIMEDOC,
	".docx": MIMEDOCX,
	".rtf":  MIMERTF,
	".odt":  MIMEODT,
	".txt":  "text/plain",
	".heic": "image/heic",
	".heif": "image/heif",
}

// Loader validates uploads. The zero value applies no size limit and keeps
// images at their original dimensions.
type Loader struct {
	MaxBytes     int64
	MaxImageSide int
}

// Load validates and classifies an upload with the default Loader.
func Load(name, declaredMIME string, data []byte) (File, error) {
	return Loader{MaxImageSide: DefaultMaxImageSide}.Load(name, declaredMIME, data)
}

// Load detects the media type from content first, then from the declared
// type, then from the file extension.
func (l Loader) Load(name, declaredMIME string, data []byte) (File, error) {
	if len(data) == 0 {
		return File{}, ErrEmptyFile
	}
	if l.MaxBytes > 0 && int64(len(data)) > l.MaxBytes {
		return File{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	mimeType := DetectMIME(name, declaredMIME, data)
	kind, ok := kindOf(mimeType)
	if !ok {
		return File{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	file := File{
		Name:     filepath.Base(strings.TrimSpace(name)),
		MIMEType: mimeType,
		Kind:     kind,
		Data:     data,
	}
	if kind == KindImage {
		return normalizeImage(file, l.MaxImageSide)
	}
	return file, nil
}

// DetectMIME sniffs the leading bytes and falls back to the declared type and
// the extension when the content is not recognised.
func DetectMIME(name, declaredMIME string, data []byte) string {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if declared := normalizeMIME(declaredMIME); declared != "" && declared != "application/octet-stream" {
		return declared
	}
	ext := strings.ToLower(filepath.Ext(name))
	if value, ok := extensionTypes[ext]; ok {
		return value
	}
	if value := normalizeMIME(mime.TypeByExtension(ext)); value != "" {
		return value
	}
	return "application/octet-stream"
}

func kindOf(mimeType string) (Kind, bool) {
	switch {
	case mimeType == MIMEPDF:
		return KindPDF, true
	case nativeImageTypes[mimeType] || convertibleImageTypes[mimeType]:
		return KindImage, true
	case wordTypes[mimeType]:
		return KindWord, true
	default:
		return "", false
	}
}

func normalizeMIME(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(value)
	if err != nil {
		return value
	}
	if parsed == "image/jpg" {
		return MIMEJPEG
	}
	return parsed
}
