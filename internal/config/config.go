package config

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"upkeeper/internal/env"
)

/**
 * Server configuration parameters
 * @property {string} address - Server listening address (e.g. "127.0.0.1:7630")
 * @property {string} mode - Application mode (debug/release/test)
 */
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path, "console" for stdout
 */
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

/**
 * Default daemon supervision policy
 * @property {int} max_restarts - Restart budget before a daemon is marked failed
 * @property {duration} health_interval - Per-daemon health check interval
 * @property {duration} verify_window - Liveness confirmation window after spawn
 * @property {duration} stop_timeout - Graceful stop window before SIGKILL escalation
 * @property {duration} healthy_reset_after - Sustained-health window that refills the restart budget
 */
type DaemonConfig struct {
	MaxRestarts       int           `mapstructure:"max_restarts"`
	HealthInterval    time.Duration `mapstructure:"health_interval"`
	VerifyWindow      time.Duration `mapstructure:"verify_window"`
	StopTimeout       time.Duration `mapstructure:"stop_timeout"`
	HealthyResetAfter time.Duration `mapstructure:"healthy_reset_after"`
}

/**
 * Per-provider tunnel settings
 * @property {string} binary - Provider binary name looked up on PATH
 * @property {string} auth_token - Provider auth token, passed through untouched
 * @property {int} max_reconnects - Reconnect budget before the tunnel is marked error
 */
type ProviderConfig struct {
	Binary        string   `mapstructure:"binary"`
	AuthToken     string   `mapstructure:"auth_token"`
	Region        string   `mapstructure:"region"`
	Subdomain     string   `mapstructure:"subdomain"`
	MaxReconnects int      `mapstructure:"max_reconnects"`
	Command       string   `mapstructure:"command"` // custom provider command template
	Args          []string `mapstructure:"args"`
	URLPattern    string   `mapstructure:"url_pattern"` // regex extracting the public URL
}

type TunnelConfig struct {
	ProviderOrder  []string                  `mapstructure:"provider_order"`
	HealthInterval time.Duration             `mapstructure:"health_interval"`
	Providers      map[string]ProviderConfig `mapstructure:"providers"`
}

type MonitorConfig struct {
	Tick         time.Duration `mapstructure:"tick"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

var ErrProviderNotFound = errors.New("tunnel provider not found")

type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
	Tunnel  TunnelConfig  `mapstructure:"tunnel"`
	Monitor MonitorConfig `mapstructure:"monitor"`
}

/**
 * Load application configuration from YAML file
 * @description
 * - Looks for upkeeper.yaml in the upkeeper dir and the working directory
 * - Environment variables with UPKEEPER_ prefix override file values
 */
func LoadConfig() (*AppConfig, error) {
	viper.SetConfigName("upkeeper")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(env.UpkeeperDir)
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("upkeeper")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var Config AppConfig

func collectConfig(cfg *AppConfig) *AppConfig {
	if cfg.Server.Address == "" {
		cfg.Server.Address = "127.0.0.1:7630"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = filepath.Join(env.UpkeeperDir, "logs", "upkeeper.log")
	}
	if cfg.Daemon.MaxRestarts <= 0 {
		cfg.Daemon.MaxRestarts = 3
	}
	if cfg.Daemon.HealthInterval <= 0 {
		cfg.Daemon.HealthInterval = 10 * time.Second
	}
	if cfg.Daemon.VerifyWindow <= 0 {
		cfg.Daemon.VerifyWindow = 3 * time.Second
	}
	if cfg.Daemon.StopTimeout <= 0 {
		cfg.Daemon.StopTimeout = 15 * time.Second
	}
	if cfg.Daemon.HealthyResetAfter <= 0 {
		cfg.Daemon.HealthyResetAfter = 10 * time.Minute
	}
	if len(cfg.Tunnel.ProviderOrder) == 0 {
		cfg.Tunnel.ProviderOrder = []string{"cloudflare", "ngrok", "localtunnel"}
	}
	if cfg.Tunnel.HealthInterval <= 0 {
		cfg.Tunnel.HealthInterval = 15 * time.Second
	}
	if cfg.Tunnel.Providers == nil {
		cfg.Tunnel.Providers = map[string]ProviderConfig{}
	}
	defaults := map[string]ProviderConfig{
		"cloudflare":  {Binary: "cloudflared", MaxReconnects: 5},
		"ngrok":       {Binary: "ngrok", MaxReconnects: 5},
		"localtunnel": {Binary: "lt", MaxReconnects: 3},
	}
	for name, def := range defaults {
		pc, ok := cfg.Tunnel.Providers[name]
		if !ok {
			cfg.Tunnel.Providers[name] = def
			continue
		}
		if pc.Binary == "" {
			pc.Binary = def.Binary
		}
		if pc.MaxReconnects <= 0 {
			pc.MaxReconnects = def.MaxReconnects
		}
		cfg.Tunnel.Providers[name] = pc
	}
	if cfg.Monitor.Tick <= 0 {
		cfg.Monitor.Tick = 5 * time.Second
	}
	if cfg.Monitor.ProbeTimeout <= 0 || cfg.Monitor.ProbeTimeout >= cfg.Monitor.Tick {
		// A probe must never outlive the tick, or one slow entity starves the rest
		cfg.Monitor.ProbeTimeout = cfg.Monitor.Tick / 2
	}
	return cfg
}

func Get() *AppConfig {
	return &Config
}

var loadErr error

// LoadError reports the config file error captured at init, if any. Init
// runs before the logger exists, so the caller logs it after setup.
func LoadError() error {
	return loadErr
}

func init() {
	cfg, err := LoadConfig()
	if err != nil {
		loadErr = err
	} else {
		Config = *cfg
	}
	collectConfig(&Config)
}
