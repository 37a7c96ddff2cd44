package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nimbleresolve/leadgate/core/handler"
	"github.com/nimbleresolve/leadgate/core/logger"
)

// LoggingConfig configures the request logging middleware.
type LoggingConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx handler.Context) bool

	// Logger is the slog logger to use (default: slog.Default())
	Logger *slog.Logger

	// LogLevel for request logging (default: slog.LevelInfo)
	LogLevel slog.Level

	// SlowRequestThreshold logs a warning for requests taking longer than
	// this duration. Zero disables slow-request detection.
	SlowRequestThreshold time.Duration
}

// Logging creates a request logging middleware with default configuration.
func Logging[C handler.Context]() handler.Middleware[C] {
	return LoggingWithConfig[C](LoggingConfig{})
}

// LoggingWithConfig creates a request logging middleware with custom
// configuration. One record is emitted per request after the response has
// been rendered, carrying method, path, request ID, and elapsed time.
func LoggingWithConfig[C handler.Context](cfg LoggingConfig) handler.Middleware[C] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			start := time.Now()
			req := ctx.Request()

			response := next(ctx)

			return func(w http.ResponseWriter, r *http.Request) error {
				err := response(w, r)

				elapsed := time.Since(start)
				requestID, _ := GetRequestID(ctx)

				attrs := []any{
					logger.Method(req.Method),
					logger.Path(req.URL.Path),
					logger.RequestID(requestID),
					logger.Duration(elapsed),
					logger.Error(err),
				}

				level := cfg.LogLevel
				if cfg.SlowRequestThreshold > 0 && elapsed > cfg.SlowRequestThreshold {
					level = slog.LevelWarn
				}
				cfg.Logger.LogAttrs(ctx, level, "request completed", toAttrs(attrs)...)

				return err
			}
		}
	}
}

func toAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args))
	for _, a := range args {
		if attr, ok := a.(slog.Attr); ok && attr.Key != "" {
			attrs = append(attrs, attr)
		}
	}
	return attrs
}
