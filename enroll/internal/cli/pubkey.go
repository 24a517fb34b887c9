package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"teams-enroll/enroll/internal/prompt"
	"teams-enroll/enroll/internal/wireguard"
)

func NewPubkeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey",
		Short: "Read a WireGuard private key from stdin and print its public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := prompt.New(cmd.InOrStdin(), cmd.ErrOrStderr()).PrivateKey()
			if err != nil {
				return err
			}
			keyPair, err := wireguard.ParsePrivateKey(line)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), keyPair.PublicKey.String())
			return nil
		},
	}
}
