package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/silo-network/silo/pkg/contentstore"
	"github.com/silo-network/silo/pkg/index"
	"github.com/silo-network/silo/pkg/receipt"
	"github.com/silo-network/silo/pkg/runner"
	"github.com/silo-network/silo/pkg/types"
)

var downloadDest string

var downloadCmd = &cobra.Command{
	Use:   "download <cid>",
	Short: "Retrieve and decrypt an owned file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		cobra.CheckErr(err)
		w, err := openWallet(cfg)
		cobra.CheckErr(err)

		lc, err := openLedger(cmd.Context(), cfg, w)
		cobra.CheckErr(err)
		defer lc.Close()

		ix, err := index.Open(cfg.IndexDB)
		cobra.CheckErr(err)

		down := &runner.DownloadRunner{
			Credential: w,
			Ledger:     lc,
			Index:      ix,
			Store:      contentstore.NewIPFS(cfg.IPFSAPI, cfg.RPCTimeout),
		}

		started := time.Now()
		res, runErr := down.Run(cmd.Context(), runner.DownloadParams{
			CID:  args[0],
			Dest: downloadDest,
		})

		appendReceipt(cfg.DataDir, receipt.Receipt{
			ID:         uuid.New(),
			Kind:       receipt.KindDownload,
			CID:        args[0],
			Provider:   res.Provider.String(),
			SizeBytes:  res.SizeBytes,
			FailedStep: types.FailedStep(runErr),
			Error:      errString(runErr),
			Started:    started,
			Ended:      time.Now(),
		})
		cobra.CheckErr(runErr)

		fmt.Printf("wrote %d bytes to %s\n", res.SizeBytes, res.Dest)
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadDest, "out", "", "destination path (default: stored display name)")
	rootCmd.AddCommand(downloadCmd)
}
