package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encrypted signer keys",
}

var keysNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a key pair and store it encrypted",
	RunE: func(cmd *cobra.Command, args []string) error {
		pw := password
		if pw == "" {
			pw = conf.Keystore.Password
		}
		if pw == "" {
			return fmt.Errorf("a password is required to encrypt the key")
		}
		key, err := keystore().Generate(pw)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key.PublicKey().String())
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		addrs, err := keystore().Addresses()
		if err != nil {
			return err
		}
		for _, a := range addrs {
			fmt.Fprintln(cmd.OutOrStdout(), a)
		}
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysNewCmd, keysListCmd)
	RootCmd.AddCommand(keysCmd)
}
