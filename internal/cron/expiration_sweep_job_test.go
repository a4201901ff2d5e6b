package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/atlasmed/casematch-backend/pkg/logger"
)

type fakeExpirer struct {
	expired int
	limit   int
	err     error
}

func (f *fakeExpirer) ExpireDue(_ context.Context, limit int) (int, error) {
	f.limit = limit
	return f.expired, f.err
}

func TestExpirationSweepJobDelegatesBatch(t *testing.T) {
	expirer := &fakeExpirer{expired: 4}
	job, err := NewExpirationSweepJob(ExpirationSweepJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "sweep-test"}),
		Assignments: expirer,
		BatchSize:   25,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.limit != 25 {
		t.Fatalf("expected batch 25, got %d", expirer.limit)
	}
}

func TestExpirationSweepJobDefaultsBatch(t *testing.T) {
	expirer := &fakeExpirer{}
	job, err := NewExpirationSweepJob(ExpirationSweepJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "sweep-test"}),
		Assignments: expirer,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.limit != defaultSweepBatch {
		t.Fatalf("expected default batch, got %d", expirer.limit)
	}
}

func TestExpirationSweepJobSurfacesErrors(t *testing.T) {
	job, err := NewExpirationSweepJob(ExpirationSweepJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "sweep-test"}),
		Assignments: &fakeExpirer{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep error to propagate")
	}
}
