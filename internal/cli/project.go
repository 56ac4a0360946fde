package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/soloking1412/Unicorn-Launchpad/pkg/solana/unicorn"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create, inspect and trade launchpad projects",
}

var (
	signerRef   string
	projectName string
	symbol      string
	fundingGoal string
)

var projectInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the signer's project",
	RunE: func(cmd *cobra.Command, args []string) error {
		authority, err := loadSigner(signerRef)
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		sig, p, err := client.InitializeProject(ctx, authority, projectName, symbol, fundingGoal)
		if err != nil {
			return err
		}
		address, err := client.ProjectAddress(authority.PublicKey())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), txResult{Signature: sig, Address: address, Record: p})
	},
}

var projectAddressCmd = &cobra.Command{
	Use:   "address <authority>",
	Short: "Derive the project address of an authority",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		authority, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		id, err := conf.ProgramID()
		if err != nil {
			return err
		}
		pda, err := unicorn.NewDeriver(id).Project(authority)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), pda)
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Fetch and decode a project account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		p, err := client.GetProject(ctx, address)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

type tradeFunc func(*unicorn.Client, solana.PrivateKey, solana.PublicKey, string) (solana.Signature, *unicorn.Project, error)

func tradeCmd(use, short string, trade tradeFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <project> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			trader, err := loadSigner(signerRef)
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			sig, p, err := trade(client, trader, address, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), txResult{Signature: sig, Address: address, Record: p})
		},
	}
	return cmd
}

var projectBuyCmd = tradeCmd("buy", "Buy tokens for an amount of currency",
	func(c *unicorn.Client, k solana.PrivateKey, p solana.PublicKey, amount string) (solana.Signature, *unicorn.Project, error) {
		return c.BuyTokens(ctx, k, p, amount)
	})

var projectContributeCmd = tradeCmd("contribute", "Contribute an amount of currency",
	func(c *unicorn.Client, k solana.PrivateKey, p solana.PublicKey, amount string) (solana.Signature, *unicorn.Project, error) {
		return c.Contribute(ctx, k, p, amount)
	})

var projectSellCmd = tradeCmd("sell", "Sell raw token units back to the project",
	func(c *unicorn.Client, k solana.PrivateKey, p solana.PublicKey, amount string) (solana.Signature, *unicorn.Project, error) {
		tokens, err := strconv.ParseUint(amount, 10, 64)
		if err != nil {
			return solana.Signature{}, nil, fmt.Errorf("invalid token amount %q", amount)
		}
		return c.SellTokens(ctx, k, p, tokens)
	})

var quoteSell bool

var projectQuoteCmd = &cobra.Command{
	Use:   "quote <project> <amount>",
	Short: "Predict a buy of currency, or with --sell a sale of raw tokens",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		if quoteSell {
			tokens, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid token amount %q", args[1])
			}
			res, err := client.QuoteSell(ctx, address, tokens)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}
		res, err := client.QuoteBuy(ctx, address, args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var projectReconcileCmd = &cobra.Command{
	Use:   "reconcile <project>",
	Short: "Compare the stored token price with the local curve",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		p, err := client.Reconcile(ctx, address)
		var mismatch *unicorn.PriceMismatchError
		if err != nil && !errors.As(err, &mismatch) {
			return err
		}
		if perr := printJSON(cmd.OutOrStdout(), p); perr != nil {
			return perr
		}
		return err
	},
}

func init() {
	projectInitCmd.Flags().StringVar(&projectName, "name", "", "project name (at most 32 bytes)")
	projectInitCmd.Flags().StringVar(&symbol, "symbol", "", "token symbol (at most 8 bytes)")
	projectInitCmd.Flags().StringVar(&fundingGoal, "goal", "", "funding goal in currency units")
	_ = projectInitCmd.MarkFlagRequired("name")
	_ = projectInitCmd.MarkFlagRequired("symbol")
	_ = projectInitCmd.MarkFlagRequired("goal")

	projectQuoteCmd.Flags().BoolVar(&quoteSell, "sell", false, "quote a sale of raw token units")

	projectCmd.PersistentFlags().StringVar(&signerRef, "signer", "", "keygen file or keystore address of the signer")
	projectCmd.AddCommand(projectInitCmd, projectAddressCmd, projectShowCmd,
		projectBuyCmd, projectContributeCmd, projectSellCmd,
		projectQuoteCmd, projectReconcileCmd)
	RootCmd.AddCommand(projectCmd)
}
