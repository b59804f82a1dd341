package sim

// A Middleware implements one slice of a component's per-cycle behavior.
// Components compose middlewares to keep orthogonal duties separated.
type Middleware interface {
	// Tick processes one cycle. It returns true if progress was made.
	Tick() bool
}

// MiddlewareHolder maintains an ordered list of middlewares.
type MiddlewareHolder struct {
	middlewares []Middleware
}

// AddMiddleware appends a middleware to the holder.
func (holder *MiddlewareHolder) AddMiddleware(middleware Middleware) {
	holder.middlewares = append(holder.middlewares, middleware)
}

// Middlewares returns the held middlewares in order.
func (holder *MiddlewareHolder) Middlewares() []Middleware {
	return holder.middlewares
}

// Tick ticks all held middlewares. It returns true if any of them made
// progress.
func (holder *MiddlewareHolder) Tick() bool {
	progress := false

	for _, middleware := range holder.middlewares {
		if middleware.Tick() {
			progress = true
		}
	}

	return progress
}
