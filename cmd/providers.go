package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/silo-network/silo/pkg/index"
	"github.com/silo-network/silo/pkg/types"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List live storage providers",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		cobra.CheckErr(err)

		ix, err := index.Open(cfg.IndexDB)
		cobra.CheckErr(err)

		recs, err := ix.ListActiveProviders()
		cobra.CheckErr(err)

		if len(recs) == 0 {
			fmt.Println("no live providers")
			return
		}
		for _, r := range recs {
			fmt.Printf("%s  available %s/%s units  %d tokens/unit  seen %s\n",
				r.Address,
				types.MilliString(r.AvailableMilli),
				types.MilliString(r.AllocatedMilli),
				r.PricePerUnit,
				r.Heartbeat.Format("15:04:05"))
		}
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
