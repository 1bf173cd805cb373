package daemon

import (
	"fmt"
	"log"
	"strings"

	"upkeeper/internal/models"
	"upkeeper/internal/rpc"

	"github.com/spf13/cobra"
)

var (
	startCommand     string
	startWorkDir     string
	startEnv         []string
	startMaxRestarts int
	startHealthSecs  int
	startNoRestart   bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a supervised daemon",
	Run: func(cmd *cobra.Command, args []string) {
		if startCommand == "" {
			log.Fatal("Must specify command line (--command)")
		}
		if err := startDaemon(); err != nil {
			log.Fatal(err)
		}
	},
}

/**
 * Start a daemon through the server API
 * @returns {error} Error if the request or the spawn fails
 * @description
 * - Parses KEY=VALUE environment overrides from repeated --env flags
 * - Prints the assigned daemon ID and PID on success
 */
func startDaemon() error {
	env := make(map[string]string)
	for _, kv := range startEnv {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid --env value %q, expected KEY=VALUE", kv)
		}
		env[parts[0]] = parts[1]
	}

	autoRestart := !startNoRestart
	req := models.StartDaemonRequest{
		Command:     startCommand,
		WorkDir:     startWorkDir,
		Env:         env,
		MaxRestarts: startMaxRestarts,
		HealthSecs:  startHealthSecs,
		AutoRestart: &autoRestart,
	}

	client := rpc.NewHTTPClient(nil)
	resp, err := client.Post("/upkeeper/api/v1/daemons", req)
	if err != nil {
		return fmt.Errorf("failed to reach server (is 'upkeeper server' running?): %w", err)
	}

	var dmn models.Daemon
	if err := resp.Decode(&dmn); err != nil {
		return err
	}

	fmt.Printf("Started daemon %s (pid %d)\n", dmn.ID, dmn.Pid)
	return nil
}

func init() {
	startCmd.Flags().SortFlags = false
	startCmd.Flags().StringVarP(&startCommand, "command", "c", "", "Command line to run")
	startCmd.Flags().StringVarP(&startWorkDir, "workdir", "w", "", "Working directory")
	startCmd.Flags().StringArrayVarP(&startEnv, "env", "e", nil, "Environment override KEY=VALUE (repeatable)")
	startCmd.Flags().IntVar(&startMaxRestarts, "max-restarts", 0, "Restart budget (0 uses the configured default)")
	startCmd.Flags().IntVar(&startHealthSecs, "health-interval", 0, "Health check interval in seconds (0 uses the default)")
	startCmd.Flags().BoolVar(&startNoRestart, "no-restart", false, "Disable automatic restart on crash")

	daemonCmd.AddCommand(startCmd)
}
