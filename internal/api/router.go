package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	mw "github.com/rowforge/rowforge/internal/api/middleware"
	"github.com/rowforge/rowforge/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	SubmitHandler    http.HandlerFunc
	JobStatusHandler http.HandlerFunc
	ListJobsHandler  http.HandlerFunc
	ResultHandler    http.HandlerFunc
	ValidateHandler  http.HandlerFunc

	WaitlistJoinHandler  http.HandlerFunc
	WaitlistStatsHandler http.HandlerFunc

	CreateUserHandler http.HandlerFunc
	GetUserHandler    http.HandlerFunc
	CreateKeyHandler  http.HandlerFunc
	ListKeysHandler   http.HandlerFunc
	RevokeKeyHandler  http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)

	// Public, unthrottled
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Handle("/metrics", promhttp.Handler())

	// Public trial surface, throttled per client
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/process", orNotImplemented(deps.SubmitHandler))
		r.Get("/api/v1/process/{jobID}", orNotImplemented(deps.JobStatusHandler))
		r.Get("/api/v1/process/{jobID}/result", orNotImplemented(deps.ResultHandler))

		r.Post("/api/v1/users/validate", orNotImplemented(deps.ValidateHandler))
		r.Post("/api/v1/waitlist/join", orNotImplemented(deps.WaitlistJoinHandler))
	})

	// Operator surface
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.Auth.RequireScope("admin"))

		r.Get("/api/v1/admin/jobs", orNotImplemented(deps.ListJobsHandler))

		r.Post("/api/v1/admin/users", orNotImplemented(deps.CreateUserHandler))
		r.Get("/api/v1/admin/users/{userID}", orNotImplemented(deps.GetUserHandler))

		r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
		r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
		r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))

		r.Get("/api/v1/waitlist/stats", orNotImplemented(deps.WaitlistStatsHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
