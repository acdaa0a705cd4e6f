package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"beacon.app/feedback/internal/model"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

// Source produces a screen capture on demand.
type Source interface {
	Capture(ctx context.Context) (*model.ScreenCapture, error)
}

// Decode validates data as a PNG or JPEG image and records its format and
// dimensions.
func Decode(data []byte) (*model.ScreenCapture, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decoding capture: empty image")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding capture: %w", err)
	}

	var f model.ImageFormat
	switch format {
	case "png":
		f = model.ImageFormatPNG
	case "jpeg":
		f = model.ImageFormatJPEG
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return &model.ScreenCapture{
		Data:   data,
		Format: f,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// FileSource reads the capture from an image file, for hosts that take
// screenshots with an external tool.
type FileSource struct {
	Path string
}

func (s FileSource) Capture(ctx context.Context) (*model.ScreenCapture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading capture %s: %w", s.Path, err)
	}
	return Decode(data)
}
