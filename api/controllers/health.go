package controllers

import (
	"context"
	"net/http"

	"github.com/atlasmed/casematch-backend/api/responses"
	"github.com/atlasmed/casematch-backend/pkg/config"
	pkgerrors "github.com/atlasmed/casematch-backend/pkg/errors"
	"github.com/atlasmed/casematch-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CaseMatch-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the datasources the engine depends on. Nil pingers
// are skipped so the handler works in reduced deployments.
func HealthReady(cfg *config.Config, logg *logger.Logger, database, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CaseMatch-Env", cfg.App.Env)

		checks := map[string]pinger{
			"database": database,
			"redis":    cache,
		}
		for name, p := range checks {
			if p == nil {
				continue
			}
			if err := p.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unreachable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
