package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atlasmed/casematch-backend/pkg/migrate"
)

func TestRepoMigrationsValidate(t *testing.T) {
	if err := migrate.ValidateDir(filepath.Join("..", "..", "migrations")); err != nil {
		t.Fatalf("repo migrations failed validation: %v", err)
	}
}

func TestEngineSchemaMigrationContents(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*_init_engine_schema.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no engine schema migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE cases",
		"CREATE TABLE provider_capacity",
		"CREATE TABLE assignments",
		"CREATE UNIQUE INDEX ux_assignments_active_case_provider",
		"CREATE TABLE patient_entitlements",
		"CREATE TABLE disease_specializations",
		"CREATE TABLE outbox_events",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationWritesSkeleton(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Provider Regions!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_provider_regions.sql") {
		t.Fatalf("unexpected filename %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read created migration: %v", err)
	}
	if !strings.Contains(string(data), "-- +goose Up") || !strings.Contains(string(data), "-- +goose Down") {
		t.Fatalf("skeleton missing goose markers:\n%s", data)
	}

	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration failed validation: %v", err)
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "001_short_version.sql")
	if err := os.WriteFile(bad, []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write bad migration: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected validation failure for bad filename")
	}
}
