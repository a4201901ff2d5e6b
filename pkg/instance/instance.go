package instance

import "github.com/atlasmed/casematch-backend/pkg/env"

// GetID returns the worker instance identifier or a default value.
func GetID() string {
	return env.Get("CASEMATCH_WORKER_ID", "worker-0")
}
