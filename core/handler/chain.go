package handler

// Chain builds a single handler from a middleware stack and endpoint.
// Middlewares are applied in reverse order so the first one listed
// runs first at request time.
func Chain[C Context](middlewares []Middleware[C], endpoint HandlerFunc[C]) HandlerFunc[C] {
	h := endpoint
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
