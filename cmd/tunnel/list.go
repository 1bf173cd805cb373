package tunnel

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

var (
	listProvider string
	listPort     int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all active tunnels",
	Run: func(cmd *cobra.Command, args []string) {
		if err := listTunnels(); err != nil {
			log.Fatal(err)
		}
	},
}

/**
 *	Fields displayed in list format
 */
type Tunnel_Columns struct {
	Id         string `json:"id"`
	Name       string `json:"name"`
	LocalPort  int    `json:"local_port"`
	Provider   string `json:"provider"`
	PublicUrl  string `json:"public_url"`
	Status     string `json:"status"`
	Reconnects string `json:"reconnects"`
	CreateTime string `json:"create_time"`
}

/**
 * List tunnel information with filtering
 * @returns {error} Returns error if listing fails, nil on success
 * @description
 * - Lists all tracked tunnels, optionally filtered by provider or port
 * - Uses utils.PrintFormat for formatted output
 */
func listTunnels() error {
	client := rpc.NewHTTPClient(nil)
	resp, err := client.Get("/upkeeper/api/v1/tunnels", nil)
	if err != nil {
		return fmt.Errorf("failed to reach server (is 'upkeeper server' running?): %w", err)
	}

	var tunnels []*models.Tunnel
	if err := resp.Decode(&tunnels); err != nil {
		return err
	}

	var filtered []*models.Tunnel
	for _, tun := range tunnels {
		if listProvider != "" && tun.Provider != listProvider {
			continue
		}
		if listPort != 0 && tun.LocalPort != listPort {
			continue
		}
		filtered = append(filtered, tun)
	}

	if len(filtered) == 0 {
		fmt.Println("No active tunnels")
		return nil
	}

	var dataList []*orderedmap.OrderedMap
	for _, tun := range filtered {
		row := Tunnel_Columns{}
		row.Id = tun.ID
		row.Name = tun.Name
		row.LocalPort = tun.LocalPort
		row.Provider = tun.Provider
		row.PublicUrl = tun.PublicURL
		row.Status = string(tun.Status)
		row.Reconnects = fmt.Sprintf("%d/%d", tun.ReconnectCount, tun.MaxReconnects)
		row.CreateTime = tun.CreatedAt.Format(time.RFC3339)

		recordMap, _ := utils.StructToOrderedMap(row)
		dataList = append(dataList, recordMap)
	}

	utils.PrintFormat(dataList)
	return nil
}

func init() {
	listCmd.Flags().SortFlags = false
	listCmd.Flags().StringVar(&listProvider, "provider", "", "Filter by provider")
	listCmd.Flags().IntVarP(&listPort, "port", "p", 0, "Filter by local port")

	tunnelCmd.AddCommand(listCmd)
}
