// Package upload mounts the tus resumable-upload protocol on the storage root
// and hands every completed upload to the finalizer.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/tus/tusd/v2/pkg/filelocker"
	"github.com/tus/tusd/v2/pkg/filestore"
	tusd "github.com/tus/tusd/v2/pkg/handler"
	expslog "golang.org/x/exp/slog"

	"filemeta/internal/config"
	"filemeta/internal/identity"
	"filemeta/internal/service"
)

// Finalizer is the part of service.Finalizer the upload glue depends on.
type Finalizer interface {
	Finalize(ctx context.Context, c service.Completion) (*service.ResponseContract, error)
}

// newID is replaced in tests.
var newID = identity.New

// callbacks holds the tus hook implementations.
type callbacks struct {
	fin    Finalizer
	logger *slog.Logger
}

// Option configures NewHandler.
type Option func(*tusd.Config)

// WithProtocolLogger sets the logger the tus engine uses for its own
// request and chunk log. Without it the engine logs to the x/exp/slog default.
func WithProtocolLogger(l *expslog.Logger) Option {
	return func(c *tusd.Config) { c.Logger = l }
}

// NewHandler builds the tus handler for cfg. The returned handler expects
// the full request path, including cfg.BasePath.
func NewHandler(cfg config.UploadConfig, storeDir string, fin Finalizer, logger *slog.Logger, opts ...Option) (http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "upload"))

	origin, err := regexp.Compile(cfg.AllowOrigin)
	if err != nil {
		return nil, fmt.Errorf("invalid upload allow origin: %w", err)
	}

	composer := tusd.NewStoreComposer()
	filestore.New(storeDir).UseIn(composer)
	filelocker.New(storeDir).UseIn(composer)
	// Records are removed through the files API only.
	composer.UsesTerminater = false

	cb := &callbacks{fin: fin, logger: logger}

	cors := tusd.DefaultCorsConfig
	cors.AllowOrigin = origin
	cors.ExposeHeaders = service.ExposeHeaders

	tcfg := tusd.Config{
		BasePath:                  cfg.BasePath,
		StoreComposer:             composer,
		MaxSize:                   cfg.MaxSize,
		RespectForwardedHeaders:   cfg.BehindProxy,
		DisableDownload:           true,
		Cors:                      &cors,
		PreUploadCreateCallback:   cb.preCreate,
		PreFinishResponseCallback: cb.preFinish,
	}
	for _, opt := range opts {
		opt(&tcfg)
	}

	h, err := tusd.NewHandler(tcfg)
	if err != nil {
		return nil, fmt.Errorf("create tus handler: %w", err)
	}

	return mount(cfg.BasePath, h), nil
}

// mount strips basePath before the request reaches tusd. A request for the
// base path without its trailing slash is treated as the base path.
func mount(basePath string, h http.Handler) http.Handler {
	bare := strings.TrimSuffix(basePath, "/")
	stripped := http.StripPrefix(basePath, h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == bare {
			r.URL.Path = basePath
			r.URL.RawPath = ""
		}
		stripped.ServeHTTP(w, r)
	})
}

// preCreate assigns the upload identity from the declared filename.
func (cb *callbacks) preCreate(hook tusd.HookEvent) (tusd.HTTPResponse, tusd.FileInfoChanges, error) {
	filename := hook.Upload.MetaData["filename"]
	id, err := newID(filename)
	if err != nil {
		cb.logger.Error("upload_id_failed", slog.String("error", err.Error()))
		return tusd.HTTPResponse{}, tusd.FileInfoChanges{}, err
	}
	cb.logger.Info("upload_created",
		slog.String("file_id", id),
		slog.String("filename", filename),
		slog.Int64("size", hook.Upload.Size),
	)
	return tusd.HTTPResponse{}, tusd.FileInfoChanges{ID: id}, nil
}

// ErrFinalize is the protocol error sent when a completed upload could not be finalized.
var ErrFinalize = tusd.NewError("ERR_FINALIZE_FAILED", "upload could not be finalized", http.StatusInternalServerError)

// preFinish runs finalization before tusd answers the last request of an upload
// and relays the finalization headers on that response.
func (cb *callbacks) preFinish(hook tusd.HookEvent) (tusd.HTTPResponse, error) {
	ctx := hook.Context
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := cb.fin.Finalize(ctx, service.Completion{
		ID:       hook.Upload.ID,
		Metadata: hook.Upload.MetaData,
	})
	if err != nil {
		// The finalizer has already logged the failure with its state.
		cb.logger.Debug("upload_finish_rejected",
			slog.String("file_id", hook.Upload.ID),
			slog.Bool("persistence", errors.Is(err, service.ErrPersistence)),
		)
		return tusd.HTTPResponse{}, ErrFinalize
	}
	return tusd.HTTPResponse{Header: tusd.HTTPHeader(res.Headers())}, nil
}
