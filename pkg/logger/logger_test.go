package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithCaseID(ctx, "case-123")
	ctx = log.WithProviderID(ctx, "prov-9")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte("\"case_id\"")) {
		t.Fatalf("expected case_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"provider_id\"")) {
		t.Fatalf("expected provider_id to be preserved; entry=%s", buf.String())
	}
}

func TestLoggerWithFieldsChainsEntries(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithFields(context.Background(), map[string]any{"sweep": "expiration"})
	log.Info(ctx, "run complete")

	if !bytes.Contains(buf.Bytes(), []byte("\"sweep\":\"expiration\"")) {
		t.Fatalf("expected sweep field; entry=%s", buf.String())
	}
}
