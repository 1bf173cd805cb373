package tunnel

import (
	"fmt"
	"log"

	"upkeeper/internal/rpc"

	"github.com/spf13/cobra"
)

var closeCmd = &cobra.Command{
	Use:   "close [tunnel-id]",
	Short: "Close a tunnel",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := closeTunnel(args[0]); err != nil {
			log.Fatal(err)
		}
	},
}

func closeTunnel(id string) error {
	client := rpc.NewHTTPClient(nil)
	resp, err := client.Delete("/upkeeper/api/v1/tunnels/"+id, nil)
	if err != nil {
		return fmt.Errorf("failed to reach server (is 'upkeeper server' running?): %w", err)
	}
	if !resp.Ok() {
		return fmt.Errorf("failed to close tunnel: %s", resp.Error)
	}

	fmt.Printf("Tunnel %s closed\n", id)
	return nil
}

func init() {
	tunnelCmd.AddCommand(closeCmd)
}
