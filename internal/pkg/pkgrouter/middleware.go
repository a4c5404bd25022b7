package pkgrouter

import (
	"fmt"
	"net/http"
)

// Middleware wraps an http.Handler, typically to add cross-cutting behavior.
type Middleware func(http.Handler) http.Handler

// Chain wraps h so that mws[0] sees the request first. Nil entries are skipped.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		h = mws[i](h)
	}
	return h
}

// LimitBody caps request bodies at limit bytes. A declared Content-Length over
// the cap is refused up front; otherwise reads past the cap fail with
// *http.MaxBytesError for the handler to report. A limit of zero or less
// leaves the body untouched.
func LimitBody(limit int64) Middleware {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeJSON(w, errorResponse{
					Message: fmt.Sprintf("request body exceeds %d bytes", limit),
					Code:    "ERROR_CODE_TOO_LARGE",
				}, http.StatusRequestEntityTooLarge)
				return
			}

			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
