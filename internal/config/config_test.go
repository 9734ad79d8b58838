package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("expected default db host localhost, got %s", cfg.Database.Host)
	}
	if cfg.Email.Provider != "console" {
		t.Errorf("expected default email provider console, got %s", cfg.Email.Provider)
	}
	if cfg.Storage.Enabled() {
		t.Error("storage should be disabled without an endpoint")
	}
}

func TestLoadFrom_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.json")
	data := `{
		"server": {"port": 9090},
		"database": {"host": "db.internal", "name": "chat"},
		"storage": {"endpoint": "minio:9000", "access_key": "ak", "secret_key": "sk"}
	}`
	if err := os.WriteFile(file, []byte(data), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadFrom(file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090 from file, got %d", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("expected db host from file, got %s", cfg.Database.Host)
	}
	if cfg.Database.User != "connectsphere" {
		t.Errorf("expected default user to survive partial file, got %s", cfg.Database.User)
	}
	if !cfg.Storage.Enabled() {
		t.Error("storage should be enabled with an endpoint")
	}
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.json")
	if err := os.WriteFile(file, []byte(`{"database": {"host": "from-file"}}`), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv("DATABASE_HOST", "from-env")

	cfg, err := LoadFrom(file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "from-env" {
		t.Errorf("environment should beat file, got %s", cfg.Database.Host)
	}
}

func TestLoadFrom_MissingFileFallsBack(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected defaults, got port %d", cfg.Server.Port)
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	want := "postgres://u:p@h:5432/n?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %s, want %s", got, want)
	}
}

func TestValidate_ReportsAllMissing(t *testing.T) {
	cfg := &Config{}
	cfg.Storage.Endpoint = "minio:9000"
	cfg.Email.Provider = "resend"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, key := range []string{"database.host", "redis.host", "storage.access_key", "storage.secret_key", "email.resend_api_key"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %s: %v", key, err)
		}
	}
}

func TestValidate_OK(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}
