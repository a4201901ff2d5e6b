package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atlasmed/casematch-backend/api/controllers"
	"github.com/atlasmed/casematch-backend/api/middleware"
	"github.com/atlasmed/casematch-backend/pkg/config"
	"github.com/atlasmed/casematch-backend/pkg/db"
	"github.com/atlasmed/casematch-backend/pkg/logger"
	"github.com/atlasmed/casematch-backend/pkg/redis"
)

// NewRouter wires the engine's HTTP surface.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	assignmentService controllers.AssignmentService,
	promRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/cases/{caseID}/assignments", controllers.CreateAssignments(assignmentService, logg))
		r.Get("/cases/{caseID}/assignments", controllers.CaseAssignmentHistory(assignmentService, logg))
		r.Route("/assignments", func(r chi.Router) {
			r.Get("/statistics", controllers.AssignmentStatistics(assignmentService, logg))
			r.Post("/{assignmentID}/accept", controllers.AcceptAssignment(assignmentService, logg))
			r.Post("/{assignmentID}/reject", controllers.RejectAssignment(assignmentService, logg))
		})
	})

	return r
}
