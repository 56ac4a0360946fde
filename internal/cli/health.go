package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	solanapkg "github.com/soloking1412/Unicorn-Launchpad/pkg/solana"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health [endpoint...]",
	Short: "Probe RPC endpoints, the configured one by default",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoints := args
		if len(endpoints) == 0 {
			endpoints = []string{conf.RPC.Endpoint}
		}
		results := solanapkg.NewHealthChecker(healthTimeout).CheckAll(ctx, endpoints)
		if err := printJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
		for _, r := range results {
			if !r.OK {
				return fmt.Errorf("%s is unhealthy: %s", r.URL, r.Error)
			}
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 2*time.Second, "per endpoint timeout")
	RootCmd.AddCommand(healthCmd)
}
