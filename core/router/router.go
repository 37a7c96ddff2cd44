package router

import (
	"net/http"
	"sort"
	"strings"

	"github.com/nimbleresolve/leadgate/core/handler"
)

// Router dispatches requests to registered handlers by method and exact path.
// It recovers from handler panics and routes all errors through a single
// error handler, so handlers never write error responses themselves.
type Router[C handler.Context] struct {
	routes       map[string]map[string]handler.HandlerFunc[C]
	middlewares  []handler.Middleware[C]
	errorHandler handler.ErrorHandler[C]
	newContext   func(http.ResponseWriter, *http.Request) C
}

// Option configures a Router during creation.
type Option[C handler.Context] func(*Router[C])

// WithErrorHandler sets a custom error handler for the router.
func WithErrorHandler[C handler.Context](h handler.ErrorHandler[C]) Option[C] {
	return func(r *Router[C]) {
		if h != nil {
			r.errorHandler = h
		}
	}
}

// WithContextFactory sets a custom context factory for the router.
func WithContextFactory[C handler.Context](f func(http.ResponseWriter, *http.Request) C) Option[C] {
	return func(r *Router[C]) {
		r.newContext = f
	}
}

// New creates a new router with the given options.
func New[C handler.Context](opts ...Option[C]) *Router[C] {
	r := &Router[C]{
		routes:       make(map[string]map[string]handler.HandlerFunc[C]),
		errorHandler: defaultErrorHandler[C],
	}

	for _, opt := range opts {
		opt(r)
	}

	// Auto-detect the default Context type if no factory provided
	if r.newContext == nil {
		r.newContext = func(w http.ResponseWriter, req *http.Request) C {
			var zero C
			if _, ok := any(zero).(*Context); ok {
				return any(newContext(w, req)).(C)
			}
			panic(ErrNoContextFactory)
		}
	}

	return r
}

// Use appends middleware to the router. All middlewares must be registered
// before routes are served; registration is not safe for concurrent use.
func (r *Router[C]) Use(middlewares ...handler.Middleware[C]) {
	r.middlewares = append(r.middlewares, middlewares...)
}

// Get registers a handler for GET requests on the given path.
func (r *Router[C]) Get(path string, h handler.HandlerFunc[C]) {
	r.Method(http.MethodGet, path, h)
}

// Post registers a handler for POST requests on the given path.
func (r *Router[C]) Post(path string, h handler.HandlerFunc[C]) {
	r.Method(http.MethodPost, path, h)
}

// Options registers a handler for OPTIONS requests on the given path.
func (r *Router[C]) Options(path string, h handler.HandlerFunc[C]) {
	r.Method(http.MethodOptions, path, h)
}

// Method registers a handler for a specific HTTP method and path.
func (r *Router[C]) Method(method, path string, h handler.HandlerFunc[C]) {
	if path == "" || path[0] != '/' {
		panic(ErrInvalidPattern)
	}
	if h == nil {
		panic(ErrNilHandler)
	}

	byMethod, ok := r.routes[path]
	if !ok {
		byMethod = make(map[string]handler.HandlerFunc[C])
		r.routes[path] = byMethod
	}
	byMethod[strings.ToUpper(method)] = h
}

// ServeHTTP implements http.Handler.
func (r *Router[C]) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ww := newResponseWriter(w)
	ctx := r.newContext(ww, req)

	// Recover from panics to prevent server crashes
	defer func() {
		if v := recover(); v != nil {
			if !ww.Written() {
				r.errorHandler(ctx, toPanicError(v))
			}
		}
	}()

	path := req.URL.Path
	if path == "" {
		path = "/"
	}

	byMethod, ok := r.routes[path]
	if !ok {
		r.errorHandler(ctx, ErrNotFound)
		return
	}

	fn, ok := byMethod[req.Method]
	if !ok {
		// Set Allow header per RFC 7231 before responding with 405
		allowed := make([]string, 0, len(byMethod))
		for m := range byMethod {
			allowed = append(allowed, m)
		}
		sort.Strings(allowed)
		ww.Header().Set("Allow", strings.Join(allowed, ", "))
		r.errorHandler(ctx, ErrMethodNotAllowed)
		return
	}

	if len(r.middlewares) > 0 {
		fn = handler.Chain(r.middlewares, fn)
	}

	response := fn(ctx)
	if response == nil {
		r.errorHandler(ctx, ErrNilResponse)
		return
	}

	if err := response(ww, req); err != nil {
		if !ww.Written() {
			r.errorHandler(ctx, err)
		}
	}
}
