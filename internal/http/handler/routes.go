package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"filemeta/internal/service"
)

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DeleteResponse is the body of a successful DELETE /files/:id.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// uploads, when non-nil, is mounted under uploadBasePath for every method.
// A root uploadBasePath is not mounted.
func RegisterRoutes(app *fiber.App, db Pinger, fileSvc service.FileService, uploads http.Handler, uploadBasePath string) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/files", ListFiles(fileSvc))
	app.Get("/files/:id", GetFile(fileSvc))
	app.Delete("/files/:id", DeleteFile(fileSvc))

	prefix := strings.TrimSuffix(uploadBasePath, "/")
	if uploads != nil && prefix != "" {
		tus := adaptor.HTTPHandler(uploads)
		app.Use(prefix, func(c *fiber.Ctx) error {
			if !IsUploadPath(uploadBasePath, c.Path()) {
				return c.Next()
			}
			return tus(c)
		})
	}
}

// IsUploadPath reports whether path is the upload mount basePath or lies below it.
// A root basePath never matches.
func IsUploadPath(basePath, path string) bool {
	prefix := strings.TrimSuffix(basePath, "/")
	if prefix == "" {
		return false
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// HealthCheck checks DB connectivity only.
//
//	@Summary	Readiness check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	503	{object}	errorPayload
//	@Router		/health [get]
func HealthCheck(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe answers 200 while the process is serving.
//
//	@Summary	Liveness probe
//	@Tags		health
//	@Success	200
//	@Router		/healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListFiles returns one page of file records, most recent first.
//
//	@Summary	List file records
//	@Tags		files
//	@Produce	json
//	@Param		page		query		int	false	"1-based page number"	default(1)
//	@Param		page_size	query		int	false	"records per page"		default(20)	maximum(100)
//	@Success	200			{object}	service.FileListResult
//	@Failure	400			{object}	errorPayload
//	@Failure	500			{object}	errorPayload
//	@Router		/files [get]
func ListFiles(fileSvc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := queryInt(c, "page")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid page")
		}
		pageSize, err := queryInt(c, "page_size")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE_SIZE", "invalid page_size")
		}

		res, err := fileSvc.List(c.UserContext(), page, pageSize)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// GetFile returns the record of one upload.
//
//	@Summary	Get a file record
//	@Tags		files
//	@Produce	json
//	@Param		id	path		string	true	"upload id"
//	@Success	200	{object}	model.FileRecord
//	@Failure	400	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Failure	500	{object}	errorPayload
//	@Router		/files/{id} [get]
func GetFile(fileSvc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := fileSvc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(rec)
	}
}

// DeleteFile removes the record and the stored bytes of one upload.
//
//	@Summary	Delete a file
//	@Tags		files
//	@Produce	json
//	@Param		id	path		string	true	"upload id"
//	@Success	200	{object}	DeleteResponse
//	@Failure	400	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Failure	500	{object}	errorPayload
//	@Router		/files/{id} [delete]
func DeleteFile(fileSvc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if err := fileSvc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(DeleteResponse{ID: id, Deleted: true})
	}
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c *fiber.Ctx, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// writeServiceError translates service errors without leaking internals.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
