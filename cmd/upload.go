package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/silo-network/silo/pkg/contentstore"
	"github.com/silo-network/silo/pkg/index"
	"github.com/silo-network/silo/pkg/receipt"
	"github.com/silo-network/silo/pkg/registry"
	"github.com/silo-network/silo/pkg/runner"
	"github.com/silo-network/silo/pkg/types"
)

var (
	uploadProvider string
	uploadAmount   uint64
	uploadName     string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Purchase storage and upload an encrypted file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		cobra.CheckErr(err)
		w, err := openWallet(cfg)
		cobra.CheckErr(err)

		store := contentstore.NewIPFS(cfg.IPFSAPI, cfg.RPCTimeout)
		if !store.IsOnline() {
			cobra.CheckErr(fmt.Errorf("content store at %s unreachable: %w", cfg.IPFSAPI, types.ErrNetwork))
		}

		lc, err := openLedger(cmd.Context(), cfg, w)
		cobra.CheckErr(err)
		defer lc.Close()

		ix, err := index.Open(cfg.IndexDB)
		cobra.CheckErr(err)

		reg := registry.New(time.Now)
		_ = reg.LoadFile(filepath.Join(cfg.DataDir, registry.CacheFileName))

		up := &runner.UploadRunner{
			Credential: w,
			Ledger:     lc,
			Index:      ix,
			Store:      store,
			Registry:   reg,
			Policy:     cfg.Policy,
		}

		started := time.Now()
		res, runErr := up.Run(cmd.Context(), runner.UploadParams{
			Path:        args[0],
			Provider:    uploadProvider,
			AmountUnits: uploadAmount,
			Name:        uploadName,
		})

		appendReceipt(cfg.DataDir, receipt.Receipt{
			ID:         uuid.New(),
			Kind:       receipt.KindUpload,
			CID:        cidString(res),
			Provider:   res.Provider.String(),
			SizeBytes:  res.SizeBytes,
			CostTokens: res.CostTokens,
			FailedStep: types.FailedStep(runErr),
			Error:      errString(runErr),
			Started:    started,
			Ended:      time.Now(),
		})
		cobra.CheckErr(runErr)

		_ = reg.SaveFile(filepath.Join(cfg.DataDir, registry.CacheFileName))
		fmt.Printf("cid: %s\nprovider: %s\nsize: %s units\ncost: %d tokens\n",
			res.CID, res.Provider, types.MilliString(res.SizeMilli), res.CostTokens)
	},
}

func cidString(res runner.UploadResult) string {
	if !res.CID.Defined() {
		return ""
	}
	return res.CID.String()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func appendReceipt(dataDir string, r receipt.Receipt) {
	logPath := filepath.Join(dataDir, receipt.LogFileName)
	rl, err := receipt.Open(logPath)
	if err != nil {
		return
	}
	defer rl.Close()
	_ = rl.Append(r)
}

func init() {
	uploadCmd.Flags().StringVar(&uploadProvider, "provider", "", "provider address (default: cheapest live provider)")
	uploadCmd.Flags().Uint64Var(&uploadAmount, "amount", 0, "storage to purchase, in allocation units (GB)")
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "display name (default: file name)")
	uploadCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(uploadCmd)
}
