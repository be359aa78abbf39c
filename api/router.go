package api

import (
	"compress/flate"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	api_middleware "github.com/classroom-tools/grader-pipeline/api/middleware"
	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/api/queue"
	"github.com/classroom-tools/grader-pipeline/api/routes"
	"github.com/classroom-tools/grader-pipeline/config"
)

// NewRouter returns a chi router with the grading endpoints registered.  The
// confirmation endpoint is only mounted when a signal gate is in use - in
// auto-confirm mode there is nothing for an operator to act on.
func NewRouter(cfg config.Config, requestQueue queue.RequestQueue, runner *pipeline.GradingRunner, gate *pipeline.SignalGate) (chi.Router, error) {

	// Setup the router and configure baseline middleware
	r := chi.NewRouter()

	r.Use(api_middleware.Logger(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(flate.DefaultCompression))

	// Configure CORS handling
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	r.Route("/grading", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Put("/enqueue", routes.EnqueueRequest(&cfg, requestQueue)) // PUT instead of POST due to idempotency
		r.Get("/status", routes.StatusRequest(&cfg, requestQueue, runner))
		r.Get("/waiting", routes.Waiting(&cfg, requestQueue))
		r.Get("/jobs", routes.JobsRequest(&cfg, requestQueue))
		r.Post("/start", routes.StartRequest(&cfg, runner))
		r.Post("/stop", routes.StopRequest(&cfg, runner))
		r.Post("/clear", routes.ClearRequest(&cfg, requestQueue))

		r.Route("/runs/{runID}", func(r chi.Router) {
			r.Get("/", routes.RunResults(&cfg, runner))
			r.Post("/abort", routes.AbortRequest(&cfg, runner))
			if gate != nil {
				r.Post("/confirm", routes.ConfirmRequest(&cfg, gate, runner, requestQueue))
			}
		})
	})

	return r, nil
}
