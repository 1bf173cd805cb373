package root

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "upkeeper",
	Short: "Local process and tunnel supervisor",
	Long:  `upkeeper keeps long-running local processes alive and exposes local ports through public tunnel providers, with health monitoring and automatic recovery for both`,
}
