package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"teams-enroll/enroll/internal/config"
	"teams-enroll/enroll/internal/wireguard"
)

func NewStatusCommand() *cobra.Command {
	var ifaceName string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a WireGuard interface created with --iface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ifaceName == "" {
				ifaceName = config.DefaultInterfaceName
			}
			st, err := wireguard.ReadState(ifaceName)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Interface:  %s\n", st.InterfaceName)
			if !st.Exists {
				fmt.Fprintf(out, "Status:     not found\n")
				return nil
			}
			fmt.Fprintf(out, "Status:     up\n")
			fmt.Fprintf(out, "Peers:      %d\n", st.PeerCount)
			if st.PeerEndpoint != "" {
				fmt.Fprintf(out, "Endpoint:   %s\n", st.PeerEndpoint)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ifaceName, config.KeyInterface, config.DefaultInterfaceName, "wireguard interface name")
	return cmd
}
