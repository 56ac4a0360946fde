package cli

import (
	"github.com/spf13/cobra"
)

var proposalCmd = &cobra.Command{
	Use:   "proposal",
	Short: "Create, vote on and execute fund release proposals",
}

var proposalCreateCmd = &cobra.Command{
	Use:   "create <project> <milestone-index>",
	Short: "Propose releasing a milestone's amount",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		milestone, err := parseIndex(args[1])
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
		sig, p, err := client.CreateProposal(ctx, authority, project, milestone, title, description)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), txResult{Signature: sig, Address: project, Record: p})
	},
}

var reject bool

var proposalVoteCmd = &cobra.Command{
	Use:   "vote <project> <proposal-index>",
	Short: "Vote for a proposal, or against it with --reject",
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
		voter, err := loadSigner(signerRef)
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		sig, p, err := client.Vote(ctx, voter, project, index, !reject)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), txResult{Signature: sig, Address: project, Record: p})
	},
}

var proposalReleaseCmd = &cobra.Command{
	Use:   "release <project> <proposal-index>",
	Short: "Release the funds of a passed proposal",
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
		sig, p, err := client.ReleaseFunds(ctx, authority, project, index)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), txResult{Signature: sig, Address: project, Record: p})
	},
}

var proposalListCmd = &cobra.Command{
	Use:   "list <project>",
	Short: "List proposals with their current status",
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
		entries, err := client.ListProposals(ctx, project)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), entries)
	},
}

func init() {
	proposalCreateCmd.Flags().StringVar(&title, "title", "", "proposal title (at most 32 bytes)")
	proposalCreateCmd.Flags().StringVar(&description, "description", "", "proposal description (at most 256 bytes)")
	_ = proposalCreateCmd.MarkFlagRequired("title")

	proposalVoteCmd.Flags().BoolVar(&reject, "reject", false, "vote against the proposal")

	proposalCmd.PersistentFlags().StringVar(&signerRef, "signer", "", "keygen file or keystore address of the signer")
	proposalCmd.AddCommand(proposalCreateCmd, proposalVoteCmd, proposalReleaseCmd, proposalListCmd)
	RootCmd.AddCommand(proposalCmd)
}
