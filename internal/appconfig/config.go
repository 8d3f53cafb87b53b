package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/statesync/internal/endpoint"
	"pkt.systems/statesync/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string          `mapstructure:"state_dir" yaml:"state_dir"`
	Server        ServerConfig    `mapstructure:"server" yaml:"server"`
	Reconnect     ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
	HTTP          HTTPConfig      `mapstructure:"http" yaml:"http"`
	Health        HealthConfig    `mapstructure:"health" yaml:"health"`
	Storage       StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Mock          MockConfig      `mapstructure:"mock" yaml:"mock"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ServerConfig selects the sync server endpoints. An empty mode follows the
// build mode.
type ServerConfig struct {
	Mode     string `mapstructure:"mode" yaml:"mode"`
	DevHost  string `mapstructure:"dev_host" yaml:"dev_host"`
	DevPort  int    `mapstructure:"dev_port" yaml:"dev_port"`
	Origin   string `mapstructure:"origin" yaml:"origin"`
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
	WSPath   string `mapstructure:"ws_path" yaml:"ws_path"`
}

// ReconnectConfig controls the websocket reconnect backoff and breaker.
type ReconnectConfig struct {
	BaseDelayMillis int `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMillis  int `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
	MaxAttempts     int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// HTTPConfig configures the REST client.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	StaleTimeSeconds int `mapstructure:"stale_time_seconds" yaml:"stale_time_seconds"`
}

// HealthConfig configures the health poller. Zero disables polling.
type HealthConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds" yaml:"interval_seconds"`
}

// StorageConfig selects where local settings and saved servers live.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// MockConfig configures the development sync server.
type MockConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	BasePath    string `mapstructure:"base_path" yaml:"base_path"`
	HistorySize int    `mapstructure:"history_size" yaml:"history_size"`
}

const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	stateDir := filepath.Join(home, ".statesync", "state")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      stateDir,
		Server: ServerConfig{
			Mode:     "",
			DevHost:  endpoint.DevHost,
			DevPort:  endpoint.DevPort,
			Origin:   "",
			BasePath: "",
			WSPath:   "/ws",
		},
		Reconnect: ReconnectConfig{
			BaseDelayMillis: 1000,
			MaxDelayMillis:  30000,
			MaxAttempts:     10,
		},
		HTTP: HTTPConfig{
			TimeoutSeconds:   10,
			StaleTimeSeconds: 30,
		},
		Health: HealthConfig{
			IntervalSeconds: schema.DefaultHealthIntervalSeconds,
		},
		Storage: StorageConfig{
			Driver: StorageFile,
			Path:   stateDir,
		},
		Mock: MockConfig{
			Addr:        "127.0.0.1:3147",
			BasePath:    "",
			HistorySize: 1000,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".statesync", "config.yaml"), nil
}

// Mode resolves the configured server mode, falling back to the build mode.
func (c Config) Mode() endpoint.Mode {
	if mode, ok := endpoint.ParseMode(c.Server.Mode); ok {
		return mode
	}
	return endpoint.BuildMode()
}

// EndpointOptions converts the server section for endpoint.Resolve.
func (c Config) EndpointOptions() endpoint.Options {
	return endpoint.Options{
		DevHost:  c.Server.DevHost,
		DevPort:  c.Server.DevPort,
		Origin:   c.Server.Origin,
		BasePath: c.Server.BasePath,
		WSPath:   c.Server.WSPath,
	}
}
