package httpx

import "net/http"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws to h so that mws[0] is the outermost layer.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Handle is Chain for a HandlerFunc.
func Handle(fn http.HandlerFunc, mws ...Middleware) http.Handler {
	return Chain(fn, mws...)
}
