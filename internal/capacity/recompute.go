package capacity

import (
	"context"

	"github.com/google/uuid"

	"github.com/atlasmed/casematch-backend/pkg/logger"
)

// RecomputeChannel is the redis channel the provider service listens on for
// workload refresh requests.
const RecomputeChannel = "capacity:recompute"

// RecomputeTrigger asks the provider service to refresh a workload snapshot.
// Best-effort: failures are logged by callers and never abort the operation
// that triggered them.
type RecomputeTrigger interface {
	RequestWorkloadRecompute(ctx context.Context, providerID uuid.UUID) error
}

type publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// RedisTrigger publishes recompute requests on a redis channel.
type RedisTrigger struct {
	pub  publisher
	logg *logger.Logger
}

// NewRedisTrigger builds a trigger backed by the shared redis client.
func NewRedisTrigger(pub publisher, logg *logger.Logger) *RedisTrigger {
	return &RedisTrigger{pub: pub, logg: logg}
}

// RequestWorkloadRecompute publishes the provider id on the recompute channel.
func (t *RedisTrigger) RequestWorkloadRecompute(ctx context.Context, providerID uuid.UUID) error {
	return t.pub.Publish(ctx, RecomputeChannel, providerID.String())
}
