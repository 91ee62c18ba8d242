// Package api provides HTTP routing for the generative-media BFF.
package api

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/genmedia-bff/bff/internal/api/handlers"
	apimiddleware "github.com/genmedia-bff/bff/internal/api/middleware"
	"github.com/genmedia-bff/bff/internal/auth"
	"github.com/genmedia-bff/bff/internal/config"
	"github.com/genmedia-bff/bff/internal/httpresponse"
	"github.com/genmedia-bff/bff/internal/ratelimit"
)

// Version is the API version string.
const Version = "0.1.0"

// NewRouter builds the full middleware chain and mounts every endpoint
// (spec.md §4, §6). authRegistry backs both registration and the
// per-request API key check; limiter enforces the per-(tenant, route
// family) token buckets from C2.
func NewRouter(h *handlers.Handler, authRegistry *auth.Registry, limiter *ratelimit.Limiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	allowedOrigins := []string{"http://localhost:3000"}
	if envOrigins := os.Getenv("ALLOWED_ORIGINS"); envOrigins != "" {
		allowedOrigins = strings.Split(envOrigins, ",")
		for i, origin := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(origin)
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           int(12 * time.Hour / time.Second),
	}))

	// BodyLimit must wrap Logging, not the other way around: Logging buffers
	// the whole body for its audit line, and without the cap in front of it
	// an oversized request gets fully read into memory before being rejected.
	r.Use(apimiddleware.BodyLimit(64 * 1024))
	r.Use(apimiddleware.Logging)
	r.Use(securityHeadersMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Ingress-wide per-IP abuse guard ahead of auth, independent of the
	// per-tenant token buckets C2 enforces once a request is authenticated
	// (internal/ratelimit/bucket.go explains why that layer can't use this
	// one: it needs exact token-bucket Retry-After semantics httprate's
	// fixed windows don't give).
	r.Use(httprate.LimitByIP(300, time.Minute))

	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	r.Get("/", h.Health)
	r.Get("/health", h.Health)
	r.Get("/auth/health", h.AuthHealth)
	r.Post("/auth/register", h.Register)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(authRegistry))

		r.Route("/generate", func(r chi.Router) {
			mount := func(family config.RouteFamily, path string, fn http.HandlerFunc) {
				r.With(limiter.Middleware(family)).Post(path, fn)
			}

			mount(config.FamilyImageSync, "/text-to-image", h.TextToImage)
			mount(config.FamilyImageSync, "/image-to-image", h.ImageToImage)
			mount(config.FamilyImageSync, "/sketch-to-image", h.SketchToImage)
			mount(config.FamilyImageSync, "/remove-background", h.RemoveBackground)
			mount(config.FamilyImageSync, "/image-inpaint", h.ImageInpaint)
			mount(config.FamilyImageSync, "/search-and-recolor", h.SearchAndRecolor)
			mount(config.FamilyUpscale, "/upscale", h.Upscale)
			mount(config.FamilyDownscale, "/downscale", h.Downscale)
			mount(config.Family3DOther, "/text-to-model", h.TextToModel)
			mount(config.Family3DOther, "/image-to-model", h.ImageToModel)
			mount(config.Family3DRefine, "/refine-model", h.RefineModel)
		})

		r.Get("/tasks/{internal_task_id}/status", h.Status)
	})

	return r
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteNotFound(w, "resource not found")
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteError(w, http.StatusMethodNotAllowed, httpresponse.ErrCodeMethodNotAllowed, "method not allowed")
}
