package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/thumbgate/internal/logger"
	"github.com/marmos91/thumbgate/pkg/api/handlers"
	apiMiddleware "github.com/marmos91/thumbgate/pkg/api/middleware"
)

// SessionStore resolves cookies and answers readiness pings.
// store.Store satisfies it.
type SessionStore interface {
	apiMiddleware.SessionResolver
	handlers.StorePinger
}

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Store      SessionStore
	Dispatcher handlers.Dispatcher
	Pool       handlers.PoolStats
	Version    string
}

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - OPTIONS /* - Microservice details
//   - GET /health, /health/ready - Probes
//   - GET /webclient|webgateway/render_thumbnail/... - Single thumbnail
//   - GET /webclient|webgateway/render_birds_eye_view/... - Single thumbnail
//   - GET /webclient|webgateway/get_thumbnails/... - Thumbnail batch
//
// Thumbnail routes require a web session cookie and accept trailing path
// segments.
func NewRouter(cfg Config, deps Dependencies) http.Handler {
	cfg.ApplyDefaults()

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.LogContext)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Options("/*", handlers.DetailsHandler(deps.Version))

	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Pool)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	thumbs := handlers.NewThumbnailHandler(deps.Dispatcher)
	r.Group(func(r chi.Router) {
		r.Use(apiMiddleware.Session(deps.Store, cfg.CookieName))

		get(r, "/webclient/render_thumbnail/size/{longestSide}/{imageId}", thumbs.RenderThumbnail)
		for _, prefix := range []string{"/webclient", "/webgateway"} {
			get(r, prefix+"/render_thumbnail/{imageId}", thumbs.RenderThumbnail)
			get(r, prefix+"/render_birds_eye_view/{imageId}", thumbs.RenderThumbnail)
			get(r, prefix+"/render_birds_eye_view/{imageId}/{longestSide}", thumbs.RenderThumbnail)
			get(r, prefix+"/get_thumbnails", thumbs.GetThumbnails)
			get(r, prefix+"/get_thumbnails/{longestSide}", thumbs.GetThumbnails)
		}
		get(r, "/webgateway/render_thumbnail/{imageId}/{longestSide}", thumbs.RenderThumbnail)
	})

	return r
}

// get registers pattern with and without trailing segments.
func get(r chi.Router, pattern string, h http.HandlerFunc) {
	r.Get(pattern, h)
	r.Get(pattern+"/*", h)
}

// requestLogger logs request start at DEBUG and completion at INFO.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		logger.DebugCtx(ctx, "HTTP request started",
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			logger.KeyBytes, ww.BytesWritten(),
			logger.DurationSince(start),
		}

		// Probes are noisy under an orchestrator
		if isHealthPath(r.URL.Path) {
			logger.DebugCtx(ctx, "HTTP request completed", logArgs...)
		} else {
			logger.InfoCtx(ctx, "HTTP request completed", logArgs...)
		}
	})
}

func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}
