package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/soloking1412/Unicorn-Launchpad/pkg/logger"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/solana/ws"
)

var watchCmd = &cobra.Command{
	Use:   "watch <project>",
	Short: "Print every change of a project account until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		watcher := ws.NewAccountWatcher(ws.Config{
			Endpoint:   conf.RPC.WsEndpoint,
			Commitment: conf.RPC.Commitment,
		}, logger.NewSublogger("watch"))

		log := logger.NewSublogger("watch")
		err = watcher.Watch(ctx, address, func(u ws.Update) {
			if u.Err != nil {
				log.WithError(u.Err).WithField("slot", u.Slot).Warn("Undecodable project update")
				return
			}
			_ = printJSON(cmd.OutOrStdout(), u)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	RootCmd.AddCommand(watchCmd)
}
