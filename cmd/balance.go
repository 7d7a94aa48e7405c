package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/silo-network/silo/pkg/types"
)

var balanceProvider string

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show token balance and, optionally, an allocation with a provider",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		cobra.CheckErr(err)
		w, err := openWallet(cfg)
		cobra.CheckErr(err)

		lc, err := openLedger(cmd.Context(), cfg, w)
		cobra.CheckErr(err)
		defer lc.Close()

		bal, err := lc.BalanceOf(cmd.Context(), w.Address())
		cobra.CheckErr(err)
		fmt.Printf("balance: %s tokens\n", types.FormatTokens(bal))

		if balanceProvider != "" {
			provider, err := types.ParseAddress(balanceProvider)
			cobra.CheckErr(err)
			alloc, err := lc.GetClientAllocation(cmd.Context(), provider, w.Address())
			cobra.CheckErr(err)
			fmt.Printf("allocation with %s: used %s of %s units, paid %s tokens\n",
				provider,
				types.MilliString(alloc.UsedMilli),
				types.MilliString(alloc.AllocatedMilli),
				types.FormatTokens(alloc.Paid))
		}
	},
}

func init() {
	balanceCmd.Flags().StringVar(&balanceProvider, "provider", "", "also show the allocation with this provider")
	rootCmd.AddCommand(balanceCmd)
}
