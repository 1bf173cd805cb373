package env

import (
	"os"
	"path/filepath"
)

var Daemon bool = false
var ListenPort int = 0
var Version string = "dev"

// (default: %USERPROFILE%/.upkeeper on Windows, $HOME/.upkeeper on Linux)
var UpkeeperDir string = GetUpkeeperDir()

/**
 * Get upkeeper directory path
 * @returns {string} Returns upkeeper directory path
 */
func GetUpkeeperDir() string {
	if dir := os.Getenv("UPKEEPER_DIR"); dir != "" {
		return dir
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".upkeeper")
}

// StateDir returns the directory holding persisted entity state for one
// supervisor kind ("daemons" or "tunnels").
func StateDir(kind string) string {
	return filepath.Join(UpkeeperDir, "state", kind)
}

// LogDir returns the directory holding log files of the given kind.
func LogDir(kind string) string {
	return filepath.Join(UpkeeperDir, "logs", kind)
}
