package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the API routes. Everything except the probes requires
// authentication.
func NewRouter(h *Handler, auth *Authenticator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", h.ready)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/admin/health", h.health)

		r.Route("/v1", func(r chi.Router) {
			r.Post("/routines/toggle", h.toggleTask)
			r.Get("/routines/{routineID}/tasks", h.taskStates)

			r.Route("/families/{familyID}", func(r chi.Router) {
				r.Get("/routines", h.listRoutines)
				r.Post("/meal-plan", h.generateMealPlan)
				r.Post("/meals/import", h.importMeal)
				r.Post("/packing", h.generatePacking)
			})

			r.Route("/lists/{listID}", func(r chi.Router) {
				r.Get("/items", h.listItems)
				r.Post("/items", h.addItem)
				r.Post("/ingredients", h.addIngredients)
				r.Put("/order", h.reorder)
			})
		})
	})
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http.request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"latency_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
