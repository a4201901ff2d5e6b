package bigquery

import (
	"testing"

	"github.com/atlasmed/casematch-backend/pkg/config"
)

func TestClientOptionsPrioritizesJSON(t *testing.T) {
	gcp := config.GCPConfig{
		CredentialsJSON:        `{"dummy": "value"}`,
		ApplicationCredentials: "/tmp/creds",
	}

	opts := clientOptions(gcp)
	if len(opts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(opts))
	}
}

func TestClientOptionsWithFile(t *testing.T) {
	gcp := config.GCPConfig{
		ApplicationCredentials: "/tmp/creds",
	}

	opts := clientOptions(gcp)
	if len(opts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(opts))
	}
}

func TestClientOptionsEmpty(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{}); len(opts) != 0 {
		t.Fatalf("expected no options, got %d", len(opts))
	}
}

func TestNilClientGuards(t *testing.T) {
	var c *Client
	if err := c.Ping(nil); err == nil {
		t.Fatal("expected error from nil client ping")
	}
	if err := c.InsertRows(nil, "assignment_events", []any{struct{}{}}); err == nil {
		t.Fatal("expected error from nil client insert")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil client close should be a no-op, got %v", err)
	}
}
