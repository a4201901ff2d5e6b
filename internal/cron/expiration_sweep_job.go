package cron

import (
	"context"
	"fmt"

	"github.com/atlasmed/casematch-backend/pkg/logger"
)

const defaultSweepBatch = 500

// assignmentExpirer is the slice of the lifecycle manager the sweeper needs.
type assignmentExpirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// ExpirationSweepJobParams configure the assignment expiration sweep.
type ExpirationSweepJobParams struct {
	Logger      *logger.Logger
	Assignments assignmentExpirer
	BatchSize   int
}

// NewExpirationSweepJob builds the job that expires pending assignments whose
// response window elapsed. Each assignment is handled in its own transaction
// by the lifecycle manager, so a single poisoned row never stalls the sweep.
func NewExpirationSweepJob(params ExpirationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Assignments == nil {
		return nil, fmt.Errorf("assignment service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &expirationSweepJob{
		logg:        params.Logger,
		assignments: params.Assignments,
		batch:       batch,
	}, nil
}

type expirationSweepJob struct {
	logg        *logger.Logger
	assignments assignmentExpirer
	batch       int
}

func (j *expirationSweepJob) Name() string { return "assignment-expiration" }

func (j *expirationSweepJob) Run(ctx context.Context) error {
	expired, err := j.assignments.ExpireDue(ctx, j.batch)
	logCtx := j.logg.WithField(ctx, "expired", expired)
	if err != nil {
		return fmt.Errorf("expiration sweep: %w", err)
	}
	j.logg.Info(logCtx, "assignment expiration sweep complete")
	return nil
}
