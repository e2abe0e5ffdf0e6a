package objectstore

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

// ErrUnsupportedImage is returned when a payload cannot be decoded as an image.
var ErrUnsupportedImage = errors.New("unsupported image")

// ResizeMode selects how a Transform changes image geometry.
type ResizeMode int

const (
	// ResizeNone stores the original bytes untouched.
	ResizeNone ResizeMode = iota
	// ResizeFill scales and center-crops to exactly Width x Height.
	ResizeFill
	// ResizeFit scales down to fit within Width x Height, keeping aspect ratio.
	ResizeFit
)

// Transform is the per-category processing applied before upload.
type Transform struct {
	Mode    ResizeMode
	Width   int
	Height  int
	Quality int
	// KeepPNG re-encodes PNG input as PNG; everything else becomes JPEG.
	KeepPNG bool
}

// TransformFor returns the processing for a category. Verification images
// are evidence and are never re-encoded.
func TransformFor(c models.Category) Transform {
	switch c {
	case models.CategoryAvatar:
		return Transform{Mode: ResizeFill, Width: 400, Height: 400, Quality: 90}
	case models.CategoryGallery:
		return Transform{Mode: ResizeFit, Width: 1600, Height: 1600, Quality: 85, KeepPNG: true}
	default:
		return Transform{Mode: ResizeNone}
	}
}

// prepared is a payload ready for the backend.
type prepared struct {
	data        []byte
	width       int
	height      int
	format      string
	contentType string
}

func prepare(payload []byte, t Transform) (*prepared, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	if t.Mode == ResizeNone {
		return &prepared{
			data:        payload,
			width:       cfg.Width,
			height:      cfg.Height,
			format:      format,
			contentType: contentTypeFor(format),
		}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(payload), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	switch t.Mode {
	case ResizeFill:
		img = imaging.Fill(img, t.Width, t.Height, imaging.Center, imaging.Lanczos)
	case ResizeFit:
		img = imaging.Fit(img, t.Width, t.Height, imaging.Lanczos)
	}

	outFormat, outName := imaging.JPEG, "jpeg"
	if t.KeepPNG && format == "png" {
		outFormat, outName = imaging.PNG, "png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, outFormat, imaging.JPEGQuality(t.Quality)); err != nil {
		return nil, fmt.Errorf("encode %s: %w", outName, err)
	}

	b := img.Bounds()
	return &prepared{
		data:        buf.Bytes(),
		width:       b.Dx(),
		height:      b.Dy(),
		format:      outName,
		contentType: contentTypeFor(outName),
	}, nil
}

func contentTypeFor(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

func extensionFor(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
