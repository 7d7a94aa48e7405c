// Package reconcile runs the provider-side maintenance loop: recompute
// used/available capacity from the metadata index, push corrections (which
// doubles as the liveness heartbeat), and claim utilization-based rewards.
package reconcile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/silo-network/silo/pkg/index"
	"github.com/silo-network/silo/pkg/registry"
	"github.com/silo-network/silo/pkg/types"
)

var log = logging.Logger("reconcile")

// DefaultInterval matches the heartbeat freshness window: a provider that
// misses one tick is still discoverable, one that misses two is not.
const DefaultInterval = 5 * time.Minute

// MetadataIndex is the slice of the index the loop uses.
type MetadataIndex interface {
	UpsertProvider(rec index.ProviderRecord) error
	UpdateProviderCapacity(addr string, allocatedMilli, availableMilli uint64, active bool) error
	ListFilesForProvider(addr string) ([]index.FileRecord, error)
}

// RewardLedger is the single ledger entry point the loop invokes. The payout
// is computed contract-side, proportional to used/allocated utilization.
type RewardLedger interface {
	DistributeMiningRewards(ctx context.Context) error
}

// Loop is the provider reconciliation loop. Any single tick's failure is
// logged and skipped; figures are corrected on the next successful tick.
type Loop struct {
	Provider       types.Address
	AllocatedMilli uint64
	PricePerUnit   uint64
	Index          MetadataIndex
	Ledger         RewardLedger
	Registry       *registry.Registry
	Policy         types.UnitPolicy
	DataDir        string

	Interval       time.Duration
	RewardInterval time.Duration
	Now            func() time.Time
}

// Run reconciles immediately, then on every tick until ctx is cancelled.
// On cancellation a best-effort deactivation pass marks the provider
// inactive before returning.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	rewardInterval := l.RewardInterval
	if rewardInterval <= 0 {
		rewardInterval = interval
	}

	if err := l.Reconcile(); err != nil {
		log.Errorf("initial reconcile: %s", err)
	}

	capacityTicker := time.NewTicker(interval)
	defer capacityTicker.Stop()
	rewardTicker := time.NewTicker(rewardInterval)
	defer rewardTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.deactivate()
			return ctx.Err()
		case <-capacityTicker.C:
			if err := l.Reconcile(); err != nil {
				log.Errorf("reconcile tick: %s", err)
			}
		case <-rewardTicker.C:
			if err := l.claimRewards(ctx); err != nil {
				log.Errorf("reward tick: %s", err)
			}
		}
	}
}

// Reconcile recomputes capacity from the indexed files and pushes the
// corrected figures. Each file is converted to units individually, matching
// the ledger's per-file accounting.
func (l *Loop) Reconcile() error {
	addr := l.Provider.String()
	files, err := l.Index.ListFilesForProvider(addr)
	if err != nil {
		return fmt.Errorf("listing indexed files: %w", err)
	}

	var usedMilli uint64
	for _, f := range files {
		usedMilli += types.BytesToMilliUnits(f.SizeBytes, l.Policy)
	}
	if usedMilli > l.AllocatedMilli {
		log.Warnf("indexed usage %s exceeds allocation %s",
			types.MilliString(usedMilli), types.MilliString(l.AllocatedMilli))
		usedMilli = l.AllocatedMilli
	}
	availableMilli := l.AllocatedMilli - usedMilli

	if err := l.Index.UpdateProviderCapacity(addr, l.AllocatedMilli, availableMilli, true); err != nil {
		return fmt.Errorf("pushing capacity: %w", err)
	}
	if l.Registry != nil {
		l.Registry.Put(registry.Entry{
			Address:        addr,
			AllocatedMilli: l.AllocatedMilli,
			AvailableMilli: availableMilli,
			PricePerUnit:   l.PricePerUnit,
		})
		if l.DataDir != "" {
			if err := l.Registry.SaveFile(filepath.Join(l.DataDir, registry.CacheFileName)); err != nil {
				log.Warnf("saving liveness cache: %s", err)
			}
		}
	}

	log.Infow("capacity reconciled",
		"files", len(files),
		"used", types.MilliString(usedMilli),
		"available", types.MilliString(availableMilli))
	return nil
}

func (l *Loop) claimRewards(ctx context.Context) error {
	if err := l.Ledger.DistributeMiningRewards(ctx); err != nil {
		return fmt.Errorf("claiming rewards: %w", err)
	}
	log.Info("mining rewards claimed")
	return nil
}

// deactivate is the best-effort shutdown pass. It may not complete; there is
// no retry and no pending-deactivation persistence.
func (l *Loop) deactivate() {
	addr := l.Provider.String()
	files, err := l.Index.ListFilesForProvider(addr)
	if err != nil {
		log.Warnf("deactivation: listing files: %s", err)
		return
	}
	var usedMilli uint64
	for _, f := range files {
		usedMilli += types.BytesToMilliUnits(f.SizeBytes, l.Policy)
	}
	if usedMilli > l.AllocatedMilli {
		usedMilli = l.AllocatedMilli
	}
	if err := l.Index.UpdateProviderCapacity(addr, l.AllocatedMilli, l.AllocatedMilli-usedMilli, false); err != nil {
		log.Warnf("deactivation: %s", err)
		return
	}
	log.Info("provider marked inactive")
}
