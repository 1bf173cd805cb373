package daemon

import (
	"fmt"
	"log"

	"upkeeper/internal/models"
	"upkeeper/internal/rpc"

	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart [daemon-id]",
	Short: "Restart a supervised daemon",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := restartDaemon(args[0]); err != nil {
			log.Fatal(err)
		}
	},
}

func restartDaemon(id string) error {
	client := rpc.NewHTTPClient(nil)
	resp, err := client.Post("/upkeeper/api/v1/daemons/"+id+"/restart", nil)
	if err != nil {
		return fmt.Errorf("failed to reach server (is 'upkeeper server' running?): %w", err)
	}

	var dmn models.Daemon
	if err := resp.Decode(&dmn); err != nil {
		return err
	}

	fmt.Printf("Daemon %s restarted (pid %d, restarts %d/%d)\n", dmn.ID, dmn.Pid, dmn.RestartCount, dmn.MaxRestarts)
	return nil
}

func init() {
	daemonCmd.AddCommand(restartCmd)
}
