package transporthttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
)

// Router wires all endpoints. The admin surface is intentionally
// unauthenticated; it is rate limited per client instead.
func (d *ServerDeps) Router(logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(RequestLogger(logger))

	r.Route("/api", func(r chi.Router) {
		r.With(BodyLimit(d.Cfg.MaxUploadBytes)).Post("/submit-form", d.HandleSubmitForm)
		r.Get("/health", d.HandleHealth)
		r.Get("/stats", d.HandleStats)

		r.Route("/admin", func(r chi.Router) {
			r.Use(httprate.LimitByIP(120, time.Minute))
			r.Get("/dashboard", d.HandleDashboard)
			r.Get("/respuestas", d.HandleListSubmissions)
			r.Get("/respuesta/{id}", d.HandleSubmissionDetail)
			r.Get("/video/{id}", d.HandleVideo)
		})
	})

	return r
}
