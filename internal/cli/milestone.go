package cli

import (
	"github.com/spf13/cobra"
)

var milestoneCmd = &cobra.Command{
	Use:   "milestone",
	Short: "Manage project milestones",
}

var (
	title       string
	description string
)

var milestoneAddCmd = &cobra.Command{
	Use:   "add <project> <amount>",
	Short: "Append a milestone to the signer's project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		authority, err := loadSigner(signerRef)
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		sig, m, err := client.AddMilestone(ctx, authority, project, title, description, args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), txResult{Signature: sig, Address: project, Record: m})
	},
}

var milestoneCompleteCmd = &cobra.Command{
	Use:   "complete <project> <index>",
	Short: "Mark a milestone completed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		authority, err := loadSigner(signerRef)
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		sig, m, err := client.CompleteMilestone(ctx, authority, project, index)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), txResult{Signature: sig, Address: project, Record: m})
	},
}

var milestoneListCmd = &cobra.Command{
	Use:   "list <project>",
	Short: "List the milestones of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		entries, err := client.ListMilestones(ctx, project)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), entries)
	},
}

func init() {
	milestoneAddCmd.Flags().StringVar(&title, "title", "", "milestone title (at most 32 bytes)")
	milestoneAddCmd.Flags().StringVar(&description, "description", "", "milestone description (at most 256 bytes)")
	_ = milestoneAddCmd.MarkFlagRequired("title")

	milestoneCmd.PersistentFlags().StringVar(&signerRef, "signer", "", "keygen file or keystore address of the signer")
	milestoneCmd.AddCommand(milestoneAddCmd, milestoneCompleteCmd, milestoneListCmd)
	RootCmd.AddCommand(milestoneCmd)
}
