package daemon

import (
	"fmt"
	"log"
	"time"

	"upkeeper/internal/models"
	"upkeeper/internal/rpc"
	"upkeeper/internal/utils"

	"github.com/iancoleman/orderedmap"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tracked daemons",
	Run: func(cmd *cobra.Command, args []string) {
		if err := listDaemons(); err != nil {
			log.Fatal(err)
		}
	},
}

/**
 *	Fields displayed in list format
 */
type Daemon_Columns struct {
	Id        string `json:"id"`
	Command   string `json:"command"`
	Pid       int    `json:"pid"`
	Status    string `json:"status"`
	Health    string `json:"health"`
	Restarts  string `json:"restarts"`
	StartTime string `json:"start_time"`
}

func listDaemons() error {
	client := rpc.NewHTTPClient(nil)
	resp, err := client.Get("/upkeeper/api/v1/daemons", nil)
	if err != nil {
		return fmt.Errorf("failed to reach server (is 'upkeeper server' running?): %w", err)
	}

	var daemons []*models.Daemon
	if err := resp.Decode(&daemons); err != nil {
		return err
	}

	if len(daemons) == 0 {
		fmt.Println("No tracked daemons")
		return nil
	}

	var dataList []*orderedmap.OrderedMap
	for _, dmn := range daemons {
		row := Daemon_Columns{}
		row.Id = dmn.ID
		row.Command = dmn.Command
		row.Pid = dmn.Pid
		row.Status = string(dmn.Status)
		row.Health = string(dmn.Health)
		row.Restarts = fmt.Sprintf("%d/%d", dmn.RestartCount, dmn.MaxRestarts)
		row.StartTime = dmn.StartedAt.Format(time.RFC3339)

		recordMap, _ := utils.StructToOrderedMap(row)
		dataList = append(dataList, recordMap)
	}

	utils.PrintFormat(dataList)
	return nil
}

func init() {
	daemonCmd.AddCommand(listCmd)
}
