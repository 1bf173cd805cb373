package daemon

import (
	"upkeeper/cmd/root"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Daemon operations (start/stop/restart/list/logs)",
	Long:  `Daemon operations (start/stop/restart/list/logs)`,
}

const daemonExample = `  # start a supervised daemon
  upkeeper daemon start --command "python -m http.server 8000"`

func init() {
	root.RootCmd.AddCommand(daemonCmd)

	daemonCmd.Example = daemonExample
}
