package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// NewRouter builds the full HTTP surface: the transform API, the saved
// listing, and the static file mounts that serve stored artifacts.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*app.Logger),
		middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute),
	)

	corsOpts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}
	if len(app.Config.CORSAllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = app.Config.CORSAllowedOrigins
	} else {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.New(corsOpts).Handler)

	r.Get("/v1/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/save", app.Save)
		r.Post("/delete", app.Delete)
		r.Post("/text_generate", app.TextGenerate)
		r.Post("/generate_sketch", app.GenerateSketch)
		r.Post("/generate_image", app.GenerateImage)
		r.Post("/generate_vr", app.GenerateVR)
		r.Get("/saved", app.ListSaved)
		r.Get("/export.zip", app.ExportZip)
	})

	r.Handle("/static/saved/*", http.StripPrefix("/static/saved/",
		http.FileServer(http.Dir(app.Saved.BasePath()))))
	r.Handle("/static/generated/*", http.StripPrefix("/static/generated/",
		http.FileServer(http.Dir(app.Generated.BasePath()))))

	return r
}
