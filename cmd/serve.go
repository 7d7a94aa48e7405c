package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/silo-network/silo/pkg/contentstore"
	"github.com/silo-network/silo/pkg/index"
	"github.com/silo-network/silo/pkg/reconcile"
	"github.com/silo-network/silo/pkg/registry"
	"github.com/silo-network/silo/pkg/types"
)

var serveRewardInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the provider reconciliation loop",
	Long: "Runs the provider node: recomputes capacity from the metadata index " +
		"on a fixed interval, refreshes the liveness heartbeat, and claims " +
		"utilization rewards. Stops on SIGINT/SIGTERM after a best-effort " +
		"deactivation pass.",
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

		rec, err := ix.GetProvider(w.Address().String())
		if err != nil {
			cobra.CheckErr(fmt.Errorf("provider not registered, run silo register first: %w", err))
		}

		reg := registry.New(time.Now)
		_ = reg.LoadFile(filepath.Join(cfg.DataDir, registry.CacheFileName))

		loop := &reconcile.Loop{
			Provider:       w.Address(),
			AllocatedMilli: rec.AllocatedMilli,
			PricePerUnit:   rec.PricePerUnit,
			Index:          ix,
			Ledger:         lc,
			Registry:       reg,
			Policy:         cfg.Policy,
			DataDir:        cfg.DataDir,
			Interval:       cfg.ReconcileInterval,
			RewardInterval: serveRewardInterval,
			Now:            time.Now,
		}

		err = loop.Run(cmd.Context())
		if err != nil && !errors.Is(err, context.Canceled) {
			cobra.CheckErr(err)
		}
	},
}

func init() {
	serveCmd.Flags().DurationVar(&serveRewardInterval, "reward-interval", 0,
		"how often to claim rewards (defaults to the reconcile interval)")
	rootCmd.AddCommand(serveCmd)
}
