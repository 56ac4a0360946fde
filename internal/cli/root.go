package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/soloking1412/Unicorn-Launchpad/pkg/config"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/logger"
	solanapkg "github.com/soloking1412/Unicorn-Launchpad/pkg/solana"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/solana/unicorn"
)

var (
	RootCmd = &cobra.Command{
		Use:   "unicorn",
		Short: "Client for the Unicorn launchpad program",

		// All child commands will use this
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			// Setup a context that gets cancelled upon SIGINT
			ctx, cancel = context.WithCancel(context.Background())

			signalChannel = make(chan os.Signal, 1)
			signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)
			go func() {
				select {
				case <-signalChannel:
					cancel()
				case <-ctx.Done():
				}
			}()

			conf, err = config.Load(cfgFile)
			if err != nil {
				return
			}
			return logger.Init(conf)
		},

		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			signal.Stop(signalChannel)
			cancel()
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// Configuration
	conf     *config.Config
	cfgFile  string
	password string

	// Context setup
	ctx           context.Context
	cancel        context.CancelFunc
	signalChannel chan os.Signal
)

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path")
	RootCmd.PersistentFlags().StringVar(&password, "password", "", "keystore password (default keystore.password)")
}

func newClient() (*unicorn.Client, error) {
	cfg, err := conf.ClientConfig()
	if err != nil {
		return nil, err
	}
	transport := unicorn.NewRPCTransport(conf.RPCConfig(), logger.NewSublogger("rpc"))
	return unicorn.NewClient(cfg, transport, logger.NewSublogger("client"))
}

func keystore() *solanapkg.Keystore {
	return solanapkg.NewKeystore(conf.Keystore.Dir)
}

// loadSigner resolves a keygen file path or keystore address.
func loadSigner(ref string) (solana.PrivateKey, error) {
	if ref == "" {
		return nil, fmt.Errorf("a signer is required")
	}
	pw := password
	if pw == "" {
		pw = conf.Keystore.Password
	}
	return keystore().LoadSigner(ref, pw)
}

func parseAddress(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return pk, nil
}

func parseIndex(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q: must be 0-255", s)
	}
	return uint8(n), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// txResult is printed by every write command.
type txResult struct {
	Signature solana.Signature `json:"signature"`
	Address   solana.PublicKey `json:"address,omitempty"`
	Record    interface{}      `json:"record"`
}
