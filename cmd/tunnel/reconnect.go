package tunnel

import (
	"fmt"
	"log"

	"upkeeper/internal/models"
	"upkeeper/internal/rpc"

	"github.com/spf13/cobra"
)

var reconnectCmd = &cobra.Command{
	Use:   "reconnect [tunnel-id]",
	Short: "Force a tunnel to re-establish its session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := reconnectTunnel(args[0]); err != nil {
			log.Fatal(err)
		}
	},
}

func reconnectTunnel(id string) error {
	client := rpc.NewHTTPClient(nil)
	resp, err := client.Post("/upkeeper/api/v1/tunnels/"+id+"/reconnect", nil)
	if err != nil {
		return fmt.Errorf("failed to reach server (is 'upkeeper server' running?): %w", err)
	}

	var tun models.Tunnel
	if err := resp.Decode(&tun); err != nil {
		return err
	}

	fmt.Printf("Tunnel %s reconnected: %s (reconnects %d/%d)\n", tun.ID, tun.PublicURL, tun.ReconnectCount, tun.MaxReconnects)
	return nil
}

func init() {
	tunnelCmd.AddCommand(reconnectCmd)
}
