// Package extract derives structural metadata from a fully written upload.
//
// Size and MIME type come from the file system and the extension. Images get
// two further best-effort passes: a header-only dimension probe and a full
// pixel-format probe. Either pass may fail on its own; a failure only clears
// the fields that pass would have filled.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"filemeta/internal/model"
)

var imageExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {}, "webp": {}, "svg": {},
}

var mimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"pdf":  "application/pdf",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"json": "application/json",
	"xml":  "application/xml",
	"zip":  "application/zip",
	"gz":   "application/gzip",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"mp4":  "video/mp4",
	"webm": "video/webm",
}

// Attributes is the FileRecord-shaped result of an extraction, without
// identity and timestamps which the caller owns.
type Attributes struct {
	Size       int64
	MimeType   string
	IsImage    bool
	Width      *int
	Height     *int
	ColorSpace *string
	Channels   *int
}

// DimensionsKnown reports whether the dimension pass filled width and height.
func (a *Attributes) DimensionsKnown() bool { return a.Width != nil && a.Height != nil }

// PixelFormatKnown reports whether the pixel-format pass filled color space and channels.
func (a *Attributes) PixelFormatKnown() bool { return a.ColorSpace != nil && a.Channels != nil }

// IOError means the upload could not be read at all. It aborts finalization.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read upload %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrNotRegular is wrapped in an IOError when the path is not a regular file.
var ErrNotRegular = errors.New("not a regular file")

// DimensionProbe reads width and height from an image header.
type DimensionProbe func(path string) (width, height int, err error)

// PixelProbe inspects decoded pixels and classifies their color model.
type PixelProbe func(path string) (colorSpace string, channels int, err error)

// Extractor computes Attributes for uploaded files. It is safe for concurrent use.
type Extractor struct {
	dimensions DimensionProbe
	pixels     PixelProbe
	logger     *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDimensionProbe replaces the header-only dimension probe.
func WithDimensionProbe(p DimensionProbe) Option {
	return func(e *Extractor) { e.dimensions = p }
}

// WithPixelProbe replaces the pixel-format probe.
func WithPixelProbe(p PixelProbe) Option {
	return func(e *Extractor) { e.pixels = p }
}

// WithMaxPixels sets the decode limit of the built-in pixel-format probe.
func WithMaxPixels(n int64) Option {
	return func(e *Extractor) { e.pixels = PixelProbeWithLimit(n) }
}

// WithLogger sets the logger used to report failed probes.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New returns an Extractor using the built-in probes unless overridden.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		dimensions: ProbeDimensions,
		pixels:     ProbePixelFormat,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "extractor"))
	return e
}

// Extract stats path and derives its attributes. filename is the name the
// client declared and is only used for logging; the extension is taken from
// path, whose last element is the upload identity.
//
// The only error returned is *IOError.
func (e *Extractor) Extract(path, filename string) (*Attributes, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	if !fi.Mode().IsRegular() {
		return nil, &IOError{Path: path, Err: ErrNotRegular}
	}

	ext := extensionOf(path)
	attrs := &Attributes{
		Size:     fi.Size(),
		MimeType: MimeType(ext),
		IsImage:  IsImageExtension(ext),
	}
	if !attrs.IsImage {
		return attrs, nil
	}

	if w, h, err := runDimensions(e.dimensions, path); err != nil {
		e.logger.Warn("image dimensions unavailable",
			slog.String("path", filepath.Base(path)),
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
	} else {
		attrs.Width, attrs.Height = &w, &h
	}

	if space, ch, err := runPixels(e.pixels, path); err != nil {
		e.logger.Warn("image pixel format unavailable",
			slog.String("path", filepath.Base(path)),
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
	} else {
		attrs.ColorSpace, attrs.Channels = &space, &ch
	}

	return attrs, nil
}

// MimeType maps a lowercase extension (without dot) to its MIME type.
func MimeType(ext string) string {
	if m, ok := mimeTypes[ext]; ok {
		return m
	}
	return model.MimeOctetStream
}

// IsImageExtension reports whether ext belongs to the fixed image set.
func IsImageExtension(ext string) bool {
	_, ok := imageExtensions[ext]
	return ok
}

func extensionOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// Decoders for corrupt input are not guaranteed panic-free; a panic is a failed pass.
func runDimensions(p DimensionProbe, path string) (w, h int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dimension probe panic: %v", r)
		}
	}()
	w, h, err = p(path)
	if err == nil && (w <= 0 || h <= 0) {
		err = fmt.Errorf("non-positive dimensions %dx%d", w, h)
	}
	return w, h, err
}

func runPixels(p PixelProbe, path string) (space string, ch int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pixel probe panic: %v", r)
		}
	}()
	space, ch, err = p(path)
	if err == nil && (space == "" || ch <= 0) {
		err = fmt.Errorf("incomplete pixel format %q/%d", space, ch)
	}
	return space, ch, err
}
