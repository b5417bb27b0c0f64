package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	expslog "golang.org/x/exp/slog"
)

// Init builds the process logger and installs it as the slog default.
// Development: Text format with Debug level
// Production: JSON format with Info level
// When sentryDSN is set, records at Error level are also sent to Sentry.
func Init(isDev bool, sentryDSN string) *slog.Logger {
	log := New(os.Stdout, isDev, sentryDSN)
	slog.SetDefault(log)
	return log
}

// New builds a logger writing to w. It does not touch the slog default.
func New(w io.Writer, isDev bool, sentryDSN string) *slog.Logger {
	var handlers []slog.Handler

	// Base handler (always enabled)
	if isDev {
		handlers = append(handlers, slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	// Optional Sentry handler (sends errors only)
	if sentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              sentryDSN,
			TracesSampleRate: 1.0,
		})
		if err == nil {
			handlers = append(handlers, slogsentry.Option{
				Level: slog.LevelError,
			}.NewSentryHandler())
		}
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = slogmulti.Fanout(handlers...)
	} else {
		handler = handlers[0]
	}

	return slog.New(handler).With(slog.String("service", "filemeta"))
}

// NewProtocol builds the logger handed to the tus engine, which logs through
// golang.org/x/exp/slog. The engine logs every request at Info, so production
// keeps Warn and above only.
func NewProtocol(w io.Writer, isDev bool) *expslog.Logger {
	var handler expslog.Handler
	if isDev {
		handler = expslog.NewTextHandler(w, &expslog.HandlerOptions{Level: expslog.LevelDebug})
	} else {
		handler = expslog.NewJSONHandler(w, &expslog.HandlerOptions{Level: expslog.LevelWarn})
	}
	return expslog.New(handler).With("service", "filemeta", "component", "tusd")
}

// Flush waits up to timeout for buffered Sentry events to be delivered.
// It is a no-op when Sentry was never initialized.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
