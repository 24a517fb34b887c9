package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"teams-enroll/enroll/internal/config"
	"teams-enroll/enroll/internal/wireguard"
)

func NewDownCommand() *cobra.Command {
	var ifaceName string

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Remove a WireGuard interface created with --iface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ifaceName == "" {
				ifaceName = config.DefaultInterfaceName
			}
			if err := wireguard.Down(ifaceName); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wireguard interface %s removed\n", ifaceName)
			return nil
		},
	}

	cmd.Flags().StringVar(&ifaceName, config.KeyInterface, config.DefaultInterfaceName, "wireguard interface name")
	return cmd
}
