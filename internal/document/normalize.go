package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxImageSide bounds the longest edge of images sent for analysis.
const DefaultMaxImageSide = 3072

// normalizeImage converts formats the model does not accept to PNG and
// downsizes images whose longest edge exceeds maxSide. HEIC/HEIF pass through
// untouched since no decoder is registered for them.
func normalizeImage(file File, maxSide int) (File, error) {
	if file.MIMEType == "image/heic" || file.MIMEType == "image/heif" {
		return file, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		return File{}, fmt.Errorf("%w: undecodable image: %v", ErrUnsupportedType, err)
	}
	oversized := maxSide > 0 && (cfg.Width > maxSide || cfg.Height > maxSide)
	if nativeImageTypes[file.MIMEType] && !oversized {
		return file, nil
	}

	img, _, err := image.Decode(bytes.NewReader(file.Data))
	if err != nil {
		return File{}, fmt.Errorf("%w: undecodable image: %v", ErrUnsupportedType, err)
	}
	if oversized {
		img = scaleToFit(img, maxSide)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return File{}, fmt.Errorf("encode png: %w", err)
	}
	return File{
		Name:     pngName(file.Name),
		MIMEType: MIMEPNG,
		Kind:     KindImage,
		Data:     buf.Bytes(),
	}, nil
}

func scaleToFit(src image.Image, maxSide int) image.Image {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width >= height {
		height = height * maxSide / width
		width = maxSide
	} else {
		width = width * maxSide / height
		height = maxSide
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

func pngName(name string) string {
	ext := filepath.Ext(name)
	if strings.EqualFold(ext, ".png") {
		return name
	}
	return strings.TrimSuffix(name, ext) + ".png"
}
