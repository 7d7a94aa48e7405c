package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/silo-network/silo/pkg/index"
)

var filesProvider string

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List your stored files",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		cobra.CheckErr(err)

		ix, err := index.Open(cfg.IndexDB)
		cobra.CheckErr(err)

		var recs []index.FileRecord
		if filesProvider != "" {
			recs, err = ix.ListFilesForProvider(filesProvider)
		} else {
			w, werr := openWallet(cfg)
			cobra.CheckErr(werr)
			recs, err = ix.ListFilesForOwner(w.Address().String())
		}
		cobra.CheckErr(err)

		if len(recs) == 0 {
			fmt.Println("no files")
			return
		}
		for _, r := range recs {
			fmt.Printf("%s  %-30s  %d bytes  provider %s\n", r.CID, r.Name, r.SizeBytes, r.Provider)
		}
	},
}

func init() {
	filesCmd.Flags().StringVar(&filesProvider, "provider", "", "list files stored with a provider instead of your own")
	rootCmd.AddCommand(filesCmd)
}
