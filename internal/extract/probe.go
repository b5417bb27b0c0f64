package extract

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Color space names follow the vocabulary used by libvips.
const (
	SpaceSRGB   = "srgb"
	SpaceRGB16  = "rgb16"
	SpaceCMYK   = "cmyk"
	SpaceBW     = "b-w"
	SpaceGrey16 = "grey16"
)

// DefaultMaxPixels is the largest width*height the pixel pass will decode.
const DefaultMaxPixels int64 = 268402689

// ErrUnsupportedPixelModel is returned when a decoded image has no known classification.
var ErrUnsupportedPixelModel = errors.New("unsupported pixel model")

// ErrTooManyPixels is returned when the header claims more pixels than the decode limit.
var ErrTooManyPixels = errors.New("image exceeds pixel limit")

// ProbeDimensions reads only the image header. SVG documents are sized from
// their root element.
func ProbeDimensions(path string) (int, int, error) {
	if isSVG(path) {
		doc, err := parseSVGFile(path)
		if err != nil {
			return 0, 0, err
		}
		return doc.size()
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("%s header reports %dx%d", format, cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}

// ProbePixelFormat fully decodes the image and classifies its pixel model.
// Images whose header claims more than DefaultMaxPixels are not decoded.
// Vector SVG documents rasterise to RGBA, so a well-formed SVG reports srgb/4.
func ProbePixelFormat(path string) (string, int, error) {
	return probePixelFormat(path, DefaultMaxPixels)
}

// PixelProbeWithLimit returns ProbePixelFormat with maxPixels as the decode
// limit. A non-positive maxPixels selects DefaultMaxPixels.
func PixelProbeWithLimit(maxPixels int64) PixelProbe {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return func(path string) (string, int, error) {
		return probePixelFormat(path, maxPixels)
	}
}

func probePixelFormat(path string, maxPixels int64) (string, int, error) {
	if isSVG(path) {
		if _, err := parseSVGFile(path); err != nil {
			return "", 0, err
		}
		return SpaceSRGB, 4, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	// Decoders size their pixel buffer from the header before reading any data.
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return "", 0, fmt.Errorf("decode header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", 0, fmt.Errorf("decode header: %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width) > maxPixels/int64(cfg.Height) {
		return "", 0, fmt.Errorf("%w: %dx%d > %d", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", 0, err
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return "", 0, fmt.Errorf("decode pixels: %w", err)
	}
	return Classify(img)
}

// Classify maps a decoded image to a color space name and channel count.
// Channel counts include alpha when the source format carries it.
func Classify(img image.Image) (string, int, error) {
	switch m := img.(type) {
	case *image.YCbCr:
		return SpaceSRGB, 3, nil
	case *image.NYCbCrA:
		return SpaceSRGB, 4, nil
	case *image.RGBA:
		// The PNG and BMP decoders only produce RGBA for alpha-less sources.
		if m.Opaque() {
			return SpaceSRGB, 3, nil
		}
		return SpaceSRGB, 4, nil
	case *image.NRGBA:
		return SpaceSRGB, 4, nil
	case *image.RGBA64:
		if m.Opaque() {
			return SpaceRGB16, 3, nil
		}
		return SpaceRGB16, 4, nil
	case *image.NRGBA64:
		return SpaceRGB16, 4, nil
	case *image.Gray:
		return SpaceBW, 1, nil
	case *image.Gray16:
		return SpaceGrey16, 1, nil
	case *image.CMYK:
		return SpaceCMYK, 4, nil
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return SpaceSRGB, 4, nil
			}
		}
		return SpaceSRGB, 3, nil
	default:
		return "", 0, fmt.Errorf("%w: %T", ErrUnsupportedPixelModel, img)
	}
}

func isSVG(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".svg")
}
