package daemon

import (
	"fmt"
	"log"

	"upkeeper/internal/rpc"

	"github.com/spf13/cobra"
)

var stopForce bool

var stopCmd = &cobra.Command{
	Use:   "stop [daemon-id]",
	Short: "Stop a supervised daemon",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := stopDaemon(args[0]); err != nil {
			log.Fatal(err)
		}
	},
}

func stopDaemon(id string) error {
	client := rpc.NewHTTPClient(nil)
	resp, err := client.Delete("/upkeeper/api/v1/daemons/"+id, map[string]interface{}{
		"force": stopForce,
	})
	if err != nil {
		return fmt.Errorf("failed to reach server (is 'upkeeper server' running?): %w", err)
	}
	if !resp.Ok() {
		return fmt.Errorf("failed to stop daemon: %s", resp.Error)
	}

	fmt.Printf("Daemon %s stopped\n", id)
	return nil
}

func init() {
	stopCmd.Flags().SortFlags = false
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Kill immediately without graceful termination")

	daemonCmd.AddCommand(stopCmd)
}
