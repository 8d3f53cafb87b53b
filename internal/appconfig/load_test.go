package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkt.systems/statesync/internal/endpoint"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Storage != def.Storage || cfg.Reconnect != def.Reconnect || cfg.Server != def.Server {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: sqlite
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 7
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsUnsupportedStorageDriver(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
storage:
  driver: redis
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported storage.driver") {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestLoadRejectsInvalidOrigin(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
server:
  mode: production
  origin: example.com
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "server.origin") {
		t.Fatalf("expected origin error, got %v", err)
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
server:
  mode: staging
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "server.mode") {
		t.Fatalf("expected mode error, got %v", err)
	}
}

func TestLoadOverridesAndEnvExpansion(t *testing.T) {
	t.Setenv("PL_HOME", "/srv/pl")
	path := writeConfig(t, `
config_version: 1
server:
  mode: prod
  origin: https://promptliano.example.com
  base_path: /app
reconnect:
  base_delay_ms: 250
  max_delay_ms: 4000
  max_attempts: 3
storage:
  driver: sqlite
  path: $PL_HOME/state.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode() != endpoint.ModeProduction {
		t.Fatalf("expected production mode, got %q", cfg.Mode())
	}
	if cfg.Storage.Driver != StorageSQLite || cfg.Storage.Path != "/srv/pl/state.db" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Reconnect.MaxAttempts != 3 || cfg.Reconnect.BaseDelayMillis != 250 {
		t.Fatalf("unexpected reconnect %+v", cfg.Reconnect)
	}
	eps, err := endpoint.Resolve(cfg.Mode(), cfg.EndpointOptions())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if eps.WSURL != "wss://promptliano.example.com/app/ws" {
		t.Fatalf("unexpected ws url %q", eps.WSURL)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STATESYNC_STORAGE_DRIVER", "sqlite")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != StorageSQLite {
		t.Fatalf("expected env override, got %q", cfg.Storage.Driver)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("expected written default to load: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
