package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/silo-network/silo/pkg/wallet"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage the local signing credential",
}

var walletNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a signing key and persist it encrypted",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		cobra.CheckErr(err)

		if _, err := os.Stat(cfg.KeystorePath); err == nil {
			cobra.CheckErr(fmt.Errorf("keystore already exists at %s", cfg.KeystorePath))
		}

		pass := cfg.Passphrase
		if pass == "" {
			pass, err = promptPassphrase("New keystore passphrase: ")
			cobra.CheckErr(err)
			confirm, err := promptPassphrase("Repeat passphrase: ")
			cobra.CheckErr(err)
			if pass != confirm {
				cobra.CheckErr(fmt.Errorf("passphrases do not match"))
			}
		}

		w, err := wallet.Generate()
		cobra.CheckErr(err)
		cobra.CheckErr(w.Save(cfg.KeystorePath, pass))

		fmt.Printf("address: %s\nkeystore: %s\n", w.Address(), cfg.KeystorePath)
	},
}

var walletAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the wallet address",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		cobra.CheckErr(err)
		w, err := openWallet(cfg)
		cobra.CheckErr(err)
		fmt.Println(w.Address())
	},
}

func init() {
	walletCmd.AddCommand(walletNewCmd)
	walletCmd.AddCommand(walletAddressCmd)
	rootCmd.AddCommand(walletCmd)
}
