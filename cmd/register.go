package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/silo-network/silo/pkg/index"
	"github.com/silo-network/silo/pkg/types"
)

var (
	registerCapacity uint64
	registerPrice    uint64
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register as a storage provider",
	Long: "Registers capacity and price on the ledger and publishes the " +
		"provider record to the metadata index.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		cobra.CheckErr(err)
		w, err := openWallet(cfg)
		cobra.CheckErr(err)

		lc, err := openLedger(cmd.Context(), cfg, w)
		cobra.CheckErr(err)
		defer lc.Close()

		cobra.CheckErr(lc.RegisterProvider(cmd.Context(), registerCapacity, registerPrice))

		ix, err := index.Open(cfg.IndexDB)
		cobra.CheckErr(err)
		cobra.CheckErr(ix.UpsertProvider(index.ProviderRecord{
			Address:        w.Address().String(),
			AllocatedMilli: registerCapacity * types.MilliPerUnit,
			AvailableMilli: registerCapacity * types.MilliPerUnit,
			PricePerUnit:   registerPrice,
			Active:         true,
			Heartbeat:      time.Now(),
		}))

		fmt.Printf("registered %d units at %d tokens/unit as %s\n",
			registerCapacity, registerPrice, w.Address())
	},
}

func init() {
	registerCmd.Flags().Uint64Var(&registerCapacity, "capacity", 0, "capacity to sell, in allocation units (GB)")
	registerCmd.Flags().Uint64Var(&registerPrice, "price", 0, "price per unit, in whole tokens")
	registerCmd.MarkFlagRequired("capacity")
	registerCmd.MarkFlagRequired("price")
	rootCmd.AddCommand(registerCmd)
}
