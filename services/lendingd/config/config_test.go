package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: " :6000 "
environment: dev
tls:
  allow_insecure: true
auth:
  api_tokens:
    - " token-one "
    - " "
    - "token-two"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":6000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if !cfg.TLS.AllowInsecure {
		t.Fatalf("expected allow_insecure to propagate")
	}
	if len(cfg.Auth.APITokens) != 2 {
		t.Fatalf("expected 2 trimmed api tokens, got %d", len(cfg.Auth.APITokens))
	}
	if cfg.Storage.Backend != "leveldb" || cfg.Storage.Path != defaultDataPath {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.GenesisPath != defaultGenesisPath {
		t.Fatalf("unexpected genesis path %q", cfg.GenesisPath)
	}
	if cfg.Telemetry.Environment != "dev" {
		t.Fatalf("telemetry environment should inherit, got %q", cfg.Telemetry.Environment)
	}
}

func TestLoadConfigFullDocument(t *testing.T) {
	path := writeConfig(t, `
listen: "127.0.0.1:8470"
genesis: /etc/lend/genesis.toml
tls:
  cert: server.crt
  key: server.key
auth:
  api_tokens: ["secret"]
storage:
  backend: Postgres
  path: postgres://lend:pw@db:5432/lending
log:
  level: DEBUG
  file:
    path: /var/log/lendingd.log
    max_size_mb: 50
    compress: true
telemetry:
  endpoint: otel:4318
  insecure: true
  traces: true
expose_metrics: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Storage.Backend != "postgres" {
		t.Fatalf("backend not normalised: %q", cfg.Storage.Backend)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File.MaxSizeMB != 50 || !cfg.Log.File.Compress {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.Metrics || cfg.Telemetry.Endpoint != "otel:4318" {
		t.Fatalf("unexpected telemetry config %+v", cfg.Telemetry)
	}
	if !cfg.ExposeMetrics || !cfg.TLS.Enabled() {
		t.Fatalf("expected metrics exposure and tls")
	}
}

func TestLoadConfigRequiresTokensOnTLS(t *testing.T) {
	path := writeConfig(t, `
tls:
  cert: "server.crt"
  key: "server.key"
auth: {}
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when no api tokens are configured")
	}
}

func TestLoadConfigValidatesTLS(t *testing.T) {
	path := writeConfig(t, `
tls:
  cert: "server.crt"
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "tls") {
		t.Fatalf("expected tls validation error, got %v", err)
	}
	path = writeConfig(t, `
listen: ":8470"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error without tls material or allow_insecure")
	}
}

func TestLoadConfigRejectsBadStorage(t *testing.T) {
	path := writeConfig(t, `
tls:
  allow_insecure: true
storage:
  backend: cassandra
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "storage") {
		t.Fatalf("expected storage error, got %v", err)
	}
	path = writeConfig(t, `
tls:
  allow_insecure: true
storage:
  backend: postgres
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected postgres without dsn to fail")
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
tls:
  allow_insecure: true
listne: ":1"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestLoadConfigRejectsUnknownLevel(t *testing.T) {
	path := writeConfig(t, `
tls:
  allow_insecure: true
log:
  level: chatty
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown log level to be rejected")
	}
}

func TestLoadConfigRequiresPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected empty path to fail")
	}
}
