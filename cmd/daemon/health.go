package daemon

import (
	"fmt"
	"log"

	"upkeeper/internal/rpc"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health [daemon-id]",
	Short: "Show a daemon's current health state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := showHealth(args[0]); err != nil {
			log.Fatal(err)
		}
	},
}

func showHealth(id string) error {
	client := rpc.NewHTTPClient(nil)
	resp, err := client.Get("/upkeeper/api/v1/daemons/"+id+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to reach server (is 'upkeeper server' running?): %w", err)
	}

	var body struct {
		ID     string `json:"id"`
		Health string `json:"health"`
	}
	if err := resp.Decode(&body); err != nil {
		return err
	}

	fmt.Println(body.Health)
	return nil
}

func init() {
	daemonCmd.AddCommand(healthCmd)
}
