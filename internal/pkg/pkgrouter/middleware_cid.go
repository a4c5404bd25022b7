package pkgrouter

import (
	"net/http"
	"strings"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkglog"
)

// Generator generates a unique string (used for correlation/request IDs).
type Generator interface {
	Generate() string
}

const (
	// HeaderCorrelationID is the canonical header used to track requests end-to-end.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is an accepted alternative header name used by some proxies.
	HeaderRequestID = "X-Request-ID"
	// HeaderBatchID tags request logs with the upload batch a client is working on.
	HeaderBatchID = "X-Batch-ID"
)

const maxHeaderIDLen = 128

// headerID trims v and rejects values that could break log lines.
func headerID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.ContainsAny(v, "\r\n") {
		return ""
	}
	if len(v) > maxHeaderIDLen {
		v = v[:maxHeaderIDLen]
	}
	return v
}

func middlewareCorrelationID(uid Generator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			cid := headerID(r.Header.Get(HeaderCorrelationID))
			if cid == "" {
				cid = headerID(r.Header.Get(HeaderRequestID))
			}
			if cid == "" && uid != nil {
				cid = uid.Generate()
			}
			if cid != "" {
				w.Header().Set(HeaderCorrelationID, cid)
				ctx = pkglog.SetCorrelationID(ctx, cid)
			}

			if batchID := headerID(r.Header.Get(HeaderBatchID)); batchID != "" {
				ctx = pkglog.SetBatchID(ctx, batchID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
