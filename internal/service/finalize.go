package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"filemeta/internal/extract"
	"filemeta/internal/identity"
	"filemeta/internal/model"
	"filemeta/internal/repository"
	"filemeta/internal/storage"
)

var tracer = otel.Tracer("filemeta/internal/service")

// State is a step of the finalization of one upload.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateExtracting State = "EXTRACTING"
	StatePersisting State = "PERSISTING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Response headers relayed to the uploading client once finalization is done.
const (
	HeaderFileID         = "File-ID"
	HeaderFileIsImage    = "File-Is-Image"
	HeaderFileWidth      = "File-Width"
	HeaderFileHeight     = "File-Height"
	HeaderFileColorSpace = "File-Color-Space"
	HeaderExposeHeaders  = "Access-Control-Expose-Headers"
)

// ExposeHeaders lists the response headers a browser client may read.
// It covers the tus protocol headers and the File-* headers.
var ExposeHeaders = strings.Join([]string{
	"Upload-Offset",
	"Location",
	"Upload-Length",
	"Tus-Version",
	"Tus-Resumable",
	"Tus-Max-Size",
	"Tus-Extension",
	"Upload-Metadata",
	"Upload-Defer-Length",
	"Upload-Concat",
	HeaderFileID,
	HeaderFileIsImage,
	HeaderFileWidth,
	HeaderFileHeight,
	HeaderFileColorSpace,
}, ", ")

// Completion is the upload engine's notice that every byte of an upload is on disk.
type Completion struct {
	ID       string
	Metadata map[string]string
}

// ResponseContract carries the finalization result back to the uploading client.
type ResponseContract struct {
	ID         string
	IsImage    bool
	Width      *int
	Height     *int
	ColorSpace *string
}

// Headers renders the contract. Image headers are present only for images
// whose value is known; an unknown value is omitted, never sent empty.
func (r *ResponseContract) Headers() map[string]string {
	h := map[string]string{
		HeaderFileID:        r.ID,
		HeaderFileIsImage:   strconv.FormatBool(r.IsImage),
		HeaderExposeHeaders: ExposeHeaders,
	}
	if !r.IsImage {
		return h
	}
	if r.Width != nil {
		h[HeaderFileWidth] = strconv.Itoa(*r.Width)
	}
	if r.Height != nil {
		h[HeaderFileHeight] = strconv.Itoa(*r.Height)
	}
	if r.ColorSpace != nil && *r.ColorSpace != "" {
		h[HeaderFileColorSpace] = *r.ColorSpace
	}
	return h
}

// Extractor derives attributes from a finished upload.
type Extractor interface {
	Extract(path, filename string) (*extract.Attributes, error)
}

// Observer is notified of every state transition of a finalization.
type Observer func(id string, from, to State)

// FinalizeMetrics counts finalization outcomes and failed introspection passes.
type FinalizeMetrics struct {
	finalizations         *prometheus.CounterVec
	introspectionFailures *prometheus.CounterVec
}

// NewFinalizeMetrics creates the finalization counters and registers them on reg.
func NewFinalizeMetrics(reg prometheus.Registerer) (*FinalizeMetrics, error) {
	m := &FinalizeMetrics{
		finalizations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filemeta_finalizations_total",
				Help: "Total number of finalized uploads by outcome.",
			},
			[]string{"outcome"},
		),
		introspectionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filemeta_introspection_failures_total",
				Help: "Total number of failed image introspection passes.",
			},
			[]string{"pass"},
		),
	}
	for _, c := range []prometheus.Collector{m.finalizations, m.introspectionFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *FinalizeMetrics) outcome(o string) {
	if m != nil {
		m.finalizations.WithLabelValues(o).Inc()
	}
}

func (m *FinalizeMetrics) introspectionFailed(pass string) {
	if m != nil {
		m.introspectionFailures.WithLabelValues(pass).Inc()
	}
}

// Finalizer turns a completed upload into a persisted FileRecord.
type Finalizer struct {
	store     storage.Storage
	repo      repository.FileRepository
	extractor Extractor
	logger    *slog.Logger
	metrics   *FinalizeMetrics
	now       func() time.Time
	observe   Observer
}

// FinalizerOption configures a Finalizer.
type FinalizerOption func(*Finalizer)

// WithFinalizerLogger sets the logger for transitions and outcomes.
func WithFinalizerLogger(l *slog.Logger) FinalizerOption {
	return func(f *Finalizer) { f.logger = l }
}

// WithFinalizeMetrics enables outcome counters.
func WithFinalizeMetrics(m *FinalizeMetrics) FinalizerOption {
	return func(f *Finalizer) { f.metrics = m }
}

// WithClock replaces time.Now for the created_at stamp.
func WithClock(now func() time.Time) FinalizerOption {
	return func(f *Finalizer) { f.now = now }
}

// WithObserver registers a callback for state transitions.
func WithObserver(o Observer) FinalizerOption {
	return func(f *Finalizer) { f.observe = o }
}

// NewFinalizer constructs a Finalizer.
func NewFinalizer(store storage.Storage, repo repository.FileRepository, ex Extractor, opts ...FinalizerOption) *Finalizer {
	f := &Finalizer{
		store:     store,
		repo:      repo,
		extractor: ex,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(slog.String("component", "finalizer"))
	return f
}

// Finalize extracts metadata from the upload c.ID and upserts its record.
//
// Once started it runs to DONE or FAILED regardless of ctx cancellation.
// An extraction I/O error is returned as is and nothing is persisted; a
// store failure is wrapped with ErrPersistence. Partial image metadata is
// not an error.
func (f *Finalizer) Finalize(ctx context.Context, c Completion) (*ResponseContract, error) {
	ctx, span := tracer.Start(context.WithoutCancel(ctx), "upload.finalize")
	defer span.End()
	span.SetAttributes(attribute.String("file.id", c.ID))

	log := f.logger.With(slog.String("file_id", c.ID))
	start := f.now()

	f.transition(log, c.ID, "", StateReceived)
	if !identity.Valid(c.ID) {
		f.transition(log, c.ID, StateReceived, StateFailed)
		f.metrics.outcome("invalid_id")
		log.Error("upload_finalize_failed",
			slog.String("state", string(StateReceived)),
			slog.String("error", ErrInvalidID.Error()),
		)
		span.SetStatus(codes.Error, "invalid id")
		return nil, fmt.Errorf("finalize %q: %w", c.ID, ErrInvalidID)
	}
	filename := declaredFilename(c)

	f.transition(log, c.ID, StateReceived, StateExtracting)
	attrs, err := f.extractor.Extract(f.store.Path(c.ID), filename)
	if err != nil {
		f.transition(log, c.ID, StateExtracting, StateFailed)
		f.metrics.outcome("extract_failed")
		log.Error("upload_finalize_failed",
			slog.String("state", string(StateExtracting)),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "extract failed")
		return nil, err
	}
	if attrs.IsImage {
		if !attrs.DimensionsKnown() {
			f.metrics.introspectionFailed("dimensions")
		}
		if !attrs.PixelFormatKnown() {
			f.metrics.introspectionFailed("pixels")
		}
	}

	f.transition(log, c.ID, StateExtracting, StatePersisting)
	rec := &model.FileRecord{
		ID:         c.ID,
		Filename:   filename,
		Size:       attrs.Size,
		CreatedAt:  f.now().UTC(),
		MimeType:   attrs.MimeType,
		IsImage:    attrs.IsImage,
		Width:      attrs.Width,
		Height:     attrs.Height,
		ColorSpace: attrs.ColorSpace,
		Channels:   attrs.Channels,
	}
	if err := f.repo.Upsert(ctx, rec); err != nil {
		f.transition(log, c.ID, StatePersisting, StateFailed)
		f.metrics.outcome("persist_failed")
		log.Error("upload_finalize_failed",
			slog.String("state", string(StatePersisting)),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, fmt.Errorf("%w: upsert file record: %w", ErrPersistence, err)
	}

	f.transition(log, c.ID, StatePersisting, StateDone)
	f.metrics.outcome("done")
	span.SetAttributes(
		attribute.String("file.mime_type", rec.MimeType),
		attribute.Bool("file.is_image", rec.IsImage),
		attribute.Int64("file.size", rec.Size),
	)
	log.Info("upload_finalized",
		slog.String("filename", filename),
		slog.Int64("size", rec.Size),
		slog.String("mime_type", rec.MimeType),
		slog.Bool("is_image", rec.IsImage),
		slog.Int64("duration_ms", f.now().Sub(start).Milliseconds()),
	)

	return &ResponseContract{
		ID:         rec.ID,
		IsImage:    rec.IsImage,
		Width:      rec.Width,
		Height:     rec.Height,
		ColorSpace: rec.ColorSpace,
	}, nil
}

func (f *Finalizer) transition(log *slog.Logger, id string, from, to State) {
	log.Debug("finalize_transition", slog.String("from", string(from)), slog.String("to", string(to)))
	if f.observe != nil {
		f.observe(id, from, to)
	}
}

// declaredFilename prefers the "filename" metadata key, then "name", then the id.
func declaredFilename(c Completion) string {
	for _, k := range []string{"filename", "name"} {
		if v := strings.TrimSpace(c.Metadata[k]); v != "" {
			return v
		}
	}
	return c.ID
}
