package daemon

import (
	"fmt"
	"log"

	"upkeeper/internal/models"
	"upkeeper/internal/rpc"

	"github.com/spf13/cobra"
)

var logsLines int

var logsCmd = &cobra.Command{
	Use:   "logs [daemon-id]",
	Short: "Show the tail of a daemon's captured output",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := showLogs(args[0]); err != nil {
			log.Fatal(err)
		}
	},
}

func showLogs(id string) error {
	client := rpc.NewHTTPClient(nil)
	resp, err := client.Get("/upkeeper/api/v1/daemons/"+id+"/logs", map[string]interface{}{
		"lines": logsLines,
	})
	if err != nil {
		return fmt.Errorf("failed to reach server (is 'upkeeper server' running?): %w", err)
	}

	var logs models.DaemonLogs
	if err := resp.Decode(&logs); err != nil {
		return err
	}

	fmt.Println("==> stdout <==")
	for _, line := range logs.Stdout {
		fmt.Println(line)
	}
	fmt.Println("==> stderr <==")
	for _, line := range logs.Stderr {
		fmt.Println(line)
	}
	return nil
}

func init() {
	logsCmd.Flags().SortFlags = false
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines per stream")

	daemonCmd.AddCommand(logsCmd)
}
