package middleware

import (
	"fmt"
	"net/http"
)

// DefaultMaxBodySize bounds JSON request bodies. Event descriptions are the
// largest payloads the API accepts.
const DefaultMaxBodySize int64 = 1 << 20

// RequestSize caps request bodies at maxBytes. A declared Content-Length
// over the cap is refused with 413 before the handler runs; chunked bodies
// fail with *http.MaxBytesError once the cap is crossed.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	tooLarge := fmt.Sprintf("Request body exceeds %d bytes", maxBytes)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				writeProblem(w, r, http.StatusRequestEntityTooLarge, tooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
