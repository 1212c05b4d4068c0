package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ulms/ulms-gateway/internal/academics"
	"github.com/ulms/ulms-gateway/internal/assistant"
	"github.com/ulms/ulms-gateway/internal/auth"
	"github.com/ulms/ulms-gateway/internal/observability"
	"github.com/ulms/ulms-gateway/internal/proctoring"
	"github.com/ulms/ulms-gateway/internal/rbac"
	"github.com/ulms/ulms-gateway/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	AuthHandler        *auth.Handler
	AuthMiddleware     auth.Middleware
	PermissionsHandler *rbac.PermissionsHandler
	CoursesHandler     *academics.CoursesHandler
	AssignmentsHandler *academics.AssignmentsHandler
	ExamsHandler       *academics.ExamsHandler
	ProctorHandler     *proctoring.Handler
	ProctoringSocket   http.Handler
	AssistantHandler   *assistant.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with gateway defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	mwCfg := MiddlewareConfig{Logger: params.Logger, Config: params.Config, Metrics: params.Metrics}
	for _, mw := range MiddlewareStack(mwCfg) {
		r.Use(mw)
	}
	api := func(r chi.Router) {
		for _, mw := range APIStack(mwCfg) {
			r.Use(mw)
		}
	}
	stream := func(r chi.Router) {
		for _, mw := range StreamStack(mwCfg) {
			r.Use(mw)
		}
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// Long-lived connections: no timeout, no compression.
	r.Group(func(r chi.Router) {
		stream(r)
		if params.ProctoringSocket != nil {
			r.Handle("/proctoring", params.ProctoringSocket)
		}
	})

	r.Group(func(r chi.Router) {
		api(r)

		r.Route("/auth", params.AuthHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
		if params.ProctorHandler != nil {
			r.Route("/proctor", params.ProctorHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.Authenticate)
			r.Route("/me", func(r chi.Router) {
				params.AuthHandler.MountMe(r)
				if params.PermissionsHandler != nil {
					params.PermissionsHandler.MountRoutes(r)
				}
			})
			if params.CoursesHandler != nil {
				r.Route("/courses", params.CoursesHandler.MountRoutes)
			}
			if params.AssignmentsHandler != nil {
				r.Route("/assignments", params.AssignmentsHandler.MountRoutes)
			}
			if params.ExamsHandler != nil {
				r.Route("/exams", params.ExamsHandler.MountRoutes)
			}
		})
	})

	if params.AssistantHandler != nil {
		r.Route("/assistant", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				api(r)
				params.AssistantHandler.MountRoutes(r)
			})
			r.Group(func(r chi.Router) {
				stream(r)
				params.AssistantHandler.MountStream(r)
			})
		})
	}

	return r
}
