package main

import (
	"os"

	_ "upkeeper/cmd"
	"upkeeper/cmd/root"
	"upkeeper/internal/config"
	"upkeeper/internal/env"
	"upkeeper/internal/logger"
)

func main() {
	// Server mode logs to file and mirrors to console; plain CLI
	// invocations keep console-only output.
	isServerMode := len(os.Args) > 1 && os.Args[1] == "server"
	env.Daemon = isServerMode

	cfg := config.Get()
	if isServerMode {
		logger.InitLogger(cfg.Log.Path, cfg.Log.Level, true)
	} else {
		logger.InitLogger("console", cfg.Log.Level, false)
	}
	if err := config.LoadError(); err != nil {
		logger.Warnf("Config file could not be loaded, running on defaults: %v", err)
	}

	if err := root.RootCmd.Execute(); err != nil {
		logger.Fatal(err)
	}
	os.Exit(0)
}
