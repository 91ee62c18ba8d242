package middleware

import (
	"encoding/json"
	"net/http"
)

// BodyLimit returns a middleware that caps request body size at maxBytes.
// Every /generate/* body is a small JSON envelope carrying prompts and
// asset URLs (spec.md §6) — there is no direct file-upload path in this
// service, so unlike a forum app's attachment endpoints there is no
// exemption to carve out; the cap applies uniformly.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			// Content-Length fast path.
			if r.ContentLength > maxBytes {
				writeBodyLimitError(w)
				return
			}

			// Wrap the reader too, to catch chunked bodies with no
			// Content-Length.
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeBodyLimitError writes a 413 Payload Too Large error response.
func writeBodyLimitError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusRequestEntityTooLarge)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    "PAYLOAD_TOO_LARGE",
			"message": "request body exceeds maximum allowed size",
		},
	})
}
