package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/nimbleresolve/leadgate/core/handler"
)

// CORSConfig defines configuration options for the CORS middleware.
type CORSConfig struct {
	// Skip allows bypassing CORS handling for specific requests
	Skip func(ctx handler.Context) bool

	// AllowOrigins is the exact-match origin allow-list. Origins not in the
	// list get no CORS headers and preflights are rejected with 403; there
	// is no wildcard fallback.
	AllowOrigins []string

	// AllowMethods specifies allowed HTTP methods.
	// If empty, defaults to POST and OPTIONS.
	AllowMethods []string

	// AllowHeaders specifies allowed request headers.
	// If empty, defaults to Content-Type.
	AllowHeaders []string

	// MaxAge specifies how long preflight responses can be cached (in seconds)
	MaxAge int
}

// CORS returns a CORS middleware enforcing the given origin allow-list.
// Requests without an Origin header are treated as same-origin and pass
// through untouched. All OPTIONS requests are answered as preflights with
// 204, before any method check the wrapped handler would perform.
func CORS[C handler.Context](cfg CORSConfig) handler.Middleware[C] {
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = []string{http.MethodPost, http.MethodOptions}
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = []string{"Content-Type"}
	}

	allowMethods := strings.Join(cfg.AllowMethods, ", ")
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")

	// Pre-build origin lookup map to avoid a slice search on each request
	allowed := make(map[string]bool, len(cfg.AllowOrigins))
	for _, origin := range cfg.AllowOrigins {
		allowed[origin] = true
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			req := ctx.Request()
			origin := req.Header.Get("Origin")

			if origin == "" {
				// Same-origin or non-browser caller; still answer OPTIONS
				if req.Method == http.MethodOptions {
					return func(w http.ResponseWriter, r *http.Request) error {
						w.WriteHeader(http.StatusNoContent)
						return nil
					}
				}
				return next(ctx)
			}

			originAllowed := allowed[origin]

			if req.Method == http.MethodOptions {
				requestMethod := req.Header.Get("Access-Control-Request-Method")
				methodAllowed := requestMethod == "" || slices.Contains(cfg.AllowMethods, requestMethod)

				if !originAllowed || !methodAllowed {
					return func(w http.ResponseWriter, r *http.Request) error {
						w.Header().Add("Vary", "Origin")
						w.WriteHeader(http.StatusForbidden)
						return nil
					}
				}

				return func(w http.ResponseWriter, r *http.Request) error {
					headers := w.Header()
					headers.Set("Access-Control-Allow-Origin", origin)
					headers.Set("Access-Control-Allow-Methods", allowMethods)
					headers.Set("Access-Control-Allow-Headers", allowHeaders)
					if cfg.MaxAge > 0 {
						headers.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
					}

					// Vary headers inform caches that the response differs
					// based on these request headers
					headers.Add("Vary", "Origin")
					headers.Add("Vary", "Access-Control-Request-Method")
					headers.Add("Vary", "Access-Control-Request-Headers")

					w.WriteHeader(http.StatusNoContent)
					return nil
				}
			}

			// Cross-origin request from an unknown origin: reject before
			// the handler runs, rather than relying on the browser to
			// discard an unreadable response.
			if !originAllowed {
				return func(w http.ResponseWriter, r *http.Request) error {
					w.Header().Add("Vary", "Origin")
					w.WriteHeader(http.StatusForbidden)
					return nil
				}
			}

			response := next(ctx)

			return func(w http.ResponseWriter, r *http.Request) error {
				headers := w.Header()
				headers.Set("Access-Control-Allow-Origin", origin)
				headers.Add("Vary", "Origin")
				return response(w, r)
			}
		}
	}
}
