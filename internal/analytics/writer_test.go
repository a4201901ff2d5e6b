package analytics

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
)

type fakeInserter struct {
	errs  []error
	calls int
	table string
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, _ []any) error {
	f.table = table
	var err error
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	return err
}

func fastRetry(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Millisecond,
		MaximumBackoff: 2 * time.Millisecond,
	}
}

func TestWriterRetriesTransientErrors(t *testing.T) {
	inserter := &fakeInserter{errs: []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		nil,
	}}
	w, err := NewWriter(inserter, WriterConfig{Table: "assignment_events", RetryPolicy: fastRetry(3)})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	if err := w.Insert(context.Background(), AssignmentEventRow{EventID: "e1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserter.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", inserter.calls)
	}
	if inserter.table != "assignment_events" {
		t.Fatalf("unexpected table %q", inserter.table)
	}
}

func TestWriterDoesNotRetryPermanentErrors(t *testing.T) {
	inserter := &fakeInserter{errs: []error{
		&googleapi.Error{Code: http.StatusBadRequest},
	}}
	w, err := NewWriter(inserter, WriterConfig{Table: "assignment_events", RetryPolicy: fastRetry(5)})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	if err := w.Insert(context.Background(), AssignmentEventRow{EventID: "e1"}); err == nil {
		t.Fatal("expected insert error")
	}
	if inserter.calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", inserter.calls)
	}
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	transient := &googleapi.Error{Code: http.StatusTooManyRequests}
	inserter := &fakeInserter{errs: []error{transient, transient, transient}}
	w, err := NewWriter(inserter, WriterConfig{Table: "assignment_events", RetryPolicy: fastRetry(3)})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	err = w.Insert(context.Background(), AssignmentEventRow{EventID: "e1"})
	if err == nil {
		t.Fatal("expected insert error after exhausting retries")
	}
	if !errors.Is(err, transient) {
		t.Fatalf("expected wrapped transient error, got %v", err)
	}
	if inserter.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inserter.calls)
	}
}

func TestNewWriterRequiresTable(t *testing.T) {
	if _, err := NewWriter(&fakeInserter{}, WriterConfig{}); err == nil {
		t.Fatal("expected error for missing table")
	}
}
