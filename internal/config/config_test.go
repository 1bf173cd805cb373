package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"upkeeper/internal/env"
)

/**
 * Test that a malformed config file surfaces an error
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - The engine runs on defaults when the file is broken, but the error
 *   must reach the caller so it can be logged instead of vanishing
 */
func TestLoadConfigMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upkeeper.yaml")
	if err := os.WriteFile(path, []byte("server:\n  address: [unclosed\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	orig := env.UpkeeperDir
	env.UpkeeperDir = dir
	defer func() { env.UpkeeperDir = orig }()
	viper.Reset()

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig should report a malformed config file")
	}
}

/**
 * Test that a zero-value config is filled with usable defaults
 * @param {*testing.T} t - Testing framework instance
 */
func TestCollectConfigDefaults(t *testing.T) {
	cfg := collectConfig(&AppConfig{})

	if cfg.Server.Address == "" {
		t.Error("Default server address must be set")
	}
	if cfg.Daemon.MaxRestarts <= 0 {
		t.Error("Default restart budget must be positive")
	}
	if cfg.Daemon.HealthyResetAfter != 10*time.Minute {
		t.Errorf("Expected 10m budget refill window, got %v", cfg.Daemon.HealthyResetAfter)
	}
	if len(cfg.Tunnel.ProviderOrder) == 0 {
		t.Error("Default provider order must not be empty")
	}
	if cfg.Monitor.ProbeTimeout >= cfg.Monitor.Tick {
		t.Errorf("Probe timeout %v must stay below the tick %v",
			cfg.Monitor.ProbeTimeout, cfg.Monitor.Tick)
	}
}
