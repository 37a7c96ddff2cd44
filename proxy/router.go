package proxy

import (
	"context"
	"log/slog"

	"github.com/nimbleresolve/leadgate/core/health"
	"github.com/nimbleresolve/leadgate/core/router"
	"github.com/nimbleresolve/leadgate/middleware"
)

// Config holds the proxy's HTTP surface settings, mapped from
// environment variables.
type Config struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"https://nimbleresolve.com,https://www.nimbleresolve.com"`
	LeadPath       string   `env:"LEAD_PATH" envDefault:"/"`
}

// NewRouter assembles the proxy's HTTP surface: the lead endpoint behind
// a strict CORS allow-list, plus health probes outside of it. Origins
// absent from the allow-list are rejected, never answered with a
// wildcard.
func NewRouter(cfg Config, svc *Service, log *slog.Logger, readiness ...func(context.Context) error) *router.Router[*router.Context] {
	r := router.New[*router.Context]()

	r.Use(
		middleware.RequestID[*router.Context](),
		middleware.LoggingWithConfig[*router.Context](middleware.LoggingConfig{Logger: log}),
		middleware.CORS[*router.Context](middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
		}),
	)

	path := cfg.LeadPath
	if path == "" {
		path = "/"
	}
	r.Post(path, svc.SubmitLead())
	// Preflight requests are answered by the CORS middleware; this
	// registration makes OPTIONS reach it instead of a bare 405.
	r.Options(path, health.NoContent[*router.Context])

	r.Get("/health/live", health.Liveness[*router.Context])
	r.Get("/health/ready", health.Readiness[*router.Context](log, readiness...))

	return r
}
