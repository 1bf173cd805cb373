package tunnel

import (
	"upkeeper/cmd/root"

	"github.com/spf13/cobra"
)

var tunnelCmd = &cobra.Command{
	Use:   "tunnel",
	Short: "Tunnel operations (create/close/list/reconnect)",
	Long:  `Tunnel operations (create/close/list/reconnect)`,
}

const tunnelExample = `  # expose local port 8080 through the first available provider
  upkeeper tunnel create --port 8080`

func init() {
	root.RootCmd.AddCommand(tunnelCmd)

	tunnelCmd.Example = tunnelExample
}
