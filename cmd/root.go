package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/silo-network/silo/pkg/config"
	"github.com/silo-network/silo/pkg/ledger"
	"github.com/silo-network/silo/pkg/types"
	"github.com/silo-network/silo/pkg/wallet"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "silo",
	Short: "Storage marketplace client and provider node",
	Long: "Buy disk space from independent providers, upload files as encrypted " +
		"content-addressed blobs, and run the provider reconciliation loop.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "info"
		if debug {
			level = "debug"
		}
		logging.SetLogLevel("*", level)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// Execute runs the CLI. Any unhandled failure exits with code 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

// openWallet loads the keystore, prompting for the passphrase once when it is
// not configured.
func openWallet(cfg *config.Config) (*wallet.Wallet, error) {
	pass := cfg.Passphrase
	if pass == "" {
		p, err := promptPassphrase("Keystore passphrase: ")
		if err != nil {
			return nil, err
		}
		pass = p
		cfg.Passphrase = p // cache for the rest of the process
	}
	return wallet.Open(cfg.KeystorePath, pass)
}

func openLedger(ctx context.Context, cfg *config.Config, signer ledger.Signer) (*ledger.Client, error) {
	if err := cfg.RequireLedger(); err != nil {
		return nil, err
	}
	return ledger.New(ctx, cfg.LedgerRPC, signer, cfg.RPCTimeout)
}

func promptPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w: %v", types.ErrConfiguration, err)
	}
	return string(raw), nil
}
