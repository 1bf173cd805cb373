package tunnel

import (
	"fmt"
	"log"

	"upkeeper/internal/models"
	"upkeeper/internal/rpc"

	"github.com/spf13/cobra"
)

var (
	createPort      int
	createProvider  string
	createName      string
	createProtocol  string
	createSubdomain string
	createRegion    string
	createAuthToken string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a public tunnel for a local port",
	Run: func(cmd *cobra.Command, args []string) {
		if createPort == 0 {
			log.Fatal("Must specify local port (--port)")
		}
		if err := createTunnel(); err != nil {
			log.Fatal(err)
		}
	},
}

func createTunnel() error {
	req := models.CreateTunnelRequest{
		Name:      createName,
		LocalPort: createPort,
		Provider:  createProvider,
		Protocol:  createProtocol,
		Subdomain: createSubdomain,
		Region:    createRegion,
		AuthToken: createAuthToken,
	}

	client := rpc.NewHTTPClient(nil)
	resp, err := client.Post("/upkeeper/api/v1/tunnels", req)
	if err != nil {
		return fmt.Errorf("failed to reach server (is 'upkeeper server' running?): %w", err)
	}

	var tun models.Tunnel
	if err := resp.Decode(&tun); err != nil {
		return err
	}

	fmt.Printf("Tunnel %s online via %s: %s\n", tun.ID, tun.Provider, tun.PublicURL)
	return nil
}

func init() {
	createCmd.Flags().SortFlags = false
	createCmd.Flags().IntVarP(&createPort, "port", "p", 0, "Local port to expose")
	createCmd.Flags().StringVar(&createProvider, "provider", "", "Tunnel provider (cloudflare/ngrok/localtunnel, empty tries each in order)")
	createCmd.Flags().StringVarP(&createName, "name", "n", "", "Tunnel name")
	createCmd.Flags().StringVar(&createProtocol, "protocol", "", "Forwarded protocol (http/tcp)")
	createCmd.Flags().StringVar(&createSubdomain, "subdomain", "", "Requested subdomain (provider permitting)")
	createCmd.Flags().StringVar(&createRegion, "region", "", "Provider region")
	createCmd.Flags().StringVar(&createAuthToken, "authtoken", "", "Provider credential")

	tunnelCmd.AddCommand(createCmd)
}
