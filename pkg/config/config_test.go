package config

import (
	"testing"
)

func TestDBConfigValidate(t *testing.T) {
	cfg := DBConfig{Driver: "postgres"}
	if err := cfg.validate(); err == nil {
		t.Fatal("expected error when postgres DSN missing")
	}

	cfg = DBConfig{Driver: "sqlite"}
	if err := cfg.validate(); err != nil {
		t.Fatalf("sqlite should not require a DSN: %v", err)
	}

	cfg = DBConfig{Driver: "postgres", DSN: "postgres://localhost/casematch"}
	if err := cfg.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	app := AppConfig{Env: "DEV"}
	if !app.IsDev() {
		t.Fatal("expected IsDev for DEV")
	}
	if app.IsProd() {
		t.Fatal("did not expect IsProd for DEV")
	}
}
