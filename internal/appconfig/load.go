package appconfig

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"pkt.systems/statesync/internal/endpoint"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("STATESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("server.mode", cfg.Server.Mode)
	v.SetDefault("server.dev_host", cfg.Server.DevHost)
	v.SetDefault("server.dev_port", cfg.Server.DevPort)
	v.SetDefault("server.origin", cfg.Server.Origin)
	v.SetDefault("server.base_path", cfg.Server.BasePath)
	v.SetDefault("server.ws_path", cfg.Server.WSPath)
	v.SetDefault("reconnect.base_delay_ms", cfg.Reconnect.BaseDelayMillis)
	v.SetDefault("reconnect.max_delay_ms", cfg.Reconnect.MaxDelayMillis)
	v.SetDefault("reconnect.max_attempts", cfg.Reconnect.MaxAttempts)
	v.SetDefault("http.timeout_seconds", cfg.HTTP.TimeoutSeconds)
	v.SetDefault("http.stale_time_seconds", cfg.HTTP.StaleTimeSeconds)
	v.SetDefault("health.interval_seconds", cfg.Health.IntervalSeconds)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("mock.addr", cfg.Mock.Addr)
	v.SetDefault("mock.base_path", cfg.Mock.BasePath)
	v.SetDefault("mock.history_size", cfg.Mock.HistorySize)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if mode := strings.TrimSpace(cfg.Server.Mode); mode != "" {
		if _, ok := endpoint.ParseMode(mode); !ok {
			return fmt.Errorf("unsupported server.mode %q", mode)
		}
	}
	if err := validateServerConfig(cfg.Server); err != nil {
		return err
	}
	switch cfg.Storage.Driver {
	case StorageFile, StorageSQLite:
	default:
		return fmt.Errorf("unsupported storage.driver %q", cfg.Storage.Driver)
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	if cfg.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("reconnect.max_attempts must be positive")
	}
	if cfg.Reconnect.BaseDelayMillis <= 0 || cfg.Reconnect.MaxDelayMillis < cfg.Reconnect.BaseDelayMillis {
		return fmt.Errorf("reconnect delays must satisfy 0 < base_delay_ms <= max_delay_ms")
	}
	if cfg.Health.IntervalSeconds < 0 {
		return fmt.Errorf("health.interval_seconds must not be negative")
	}
	return nil
}

func validateServerConfig(cfg ServerConfig) error {
	origin := strings.TrimSpace(cfg.Origin)
	if origin != "" {
		parsed, err := url.Parse(origin)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("server.origin must include scheme and host (e.g. https://example.com)")
		}
	}
	for name, value := range map[string]string{"server.base_path": cfg.BasePath, "server.ws_path": cfg.WSPath} {
		path := strings.TrimSpace(value)
		if path == "" {
			continue
		}
		if strings.Contains(path, "://") {
			return fmt.Errorf("%s must be a path prefix, not a URL", name)
		}
		if strings.ContainsAny(path, "?#") {
			return fmt.Errorf("%s must not include query or fragment", name)
		}
	}
	if cfg.DevPort < 0 || cfg.DevPort > 65535 {
		return fmt.Errorf("server.dev_port out of range: %d", cfg.DevPort)
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Storage.Path = expandEnv(cfg.Storage.Path)
	cfg.Server.Origin = expandEnv(cfg.Server.Origin)
	cfg.Server.DevHost = expandEnv(cfg.Server.DevHost)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
