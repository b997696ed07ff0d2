package api

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"track-finder/internal/metrics"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Cache buster timestamp (set at startup)
var cacheBuster = strconv.FormatInt(time.Now().Unix(), 10)

// NewRouter creates and configures the Chi router
func NewRouter(f Searcher, regions Regions, defaultMinLength float64) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(CORS)

	// Create handlers
	h := NewHandlers(f, regions)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/states", h.ListStates)
		r.Get("/states/{code}/counties", h.ListCounties)
		r.Post("/search", h.Search)
		r.Get("/export.kml", h.Export)
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err := indexTemplate.Execute(w, map[string]interface{}{
			"V":         cacheBuster,
			"States":    regions.States(),
			"MinLength": defaultMinLength,
		})
		if err != nil {
			zap.L().Error("rendering index", zap.Error(err))
		}
	})

	return r
}
