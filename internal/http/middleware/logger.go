package middleware

import (
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is a middleware that logs each HTTP request through logger.
// Fields:
// - request_id (taken from context locals set by RequestID middleware)
// - method
// - path
// - status
// - latency (in milliseconds, as float)
func Logger(logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "http"))

	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		// Collect fields after handler executed to capture final status
		rid, _ := c.Locals(RequestIDLocalKey).(string)
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}

		level := slog.LevelInfo
		switch {
		case status >= fiber.StatusInternalServerError:
			level = slog.LevelError
		case status >= fiber.StatusBadRequest:
			level = slog.LevelWarn
		}

		logger.LogAttrs(c.UserContext(), level, "http_request",
			slog.String("request_id", rid),
			slog.String("method", c.Method()),
			// Use only the path segment (no query string)
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Float64("latency", float64(time.Since(start).Microseconds())/1000),
		)

		return err
	}
}

// LoggerWithWriter is Logger writing one JSON object per line to w, with the
// timestamp under "ts" rendered in loc.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	if loc == nil {
		loc = time.UTC
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String("ts", a.Value.Time().In(loc).Format(time.RFC3339Nano))
			}
			return a
		},
	})
	return Logger(slog.New(h))
}
