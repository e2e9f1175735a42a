package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"gamechar/internal/http/handlers"
	"gamechar/internal/middleware"
)

// Options configures the middleware stack.
type Options struct {
	Logger          zerolog.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Handle("/metrics", handlers.Metrics())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute, false))

			r.Get("/styles", app.Styles)
			r.Get("/capabilities", app.Capabilities)

			r.Route("/job", func(r chi.Router) {
				r.Post("/", app.SubmitJob)
				r.Get("/", app.GetJob)
				r.Post("/advance", app.AdvanceJob)
				r.Get("/image", app.JobImage)
				r.Get("/preview", app.JobPreview)
				r.Post("/delivery", app.Deliver)
			})
		})
	})

	return r
}
