// Package index is the off-chain metadata store: a queryable, eventually
// consistent copy of provider liveness and per-file metadata. It accelerates
// discovery and carries fields the ledger lacks; it is never consulted for
// authorization.
package index

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	logging "github.com/ipfs/go-log/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/silo-network/silo/pkg/types"
)

var log = logging.Logger("index")

type Index struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens (and migrates) the record store at dsn. Use ":memory:" for an
// ephemeral store in tests.
func Open(dsn string) (*Index, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w: %v", dsn, types.ErrNetwork, err)
	}
	if err := db.AutoMigrate(&ProviderRecord{}, &FileRecord{}); err != nil {
		return nil, fmt.Errorf("migrating index: %w", err)
	}
	return &Index{db: db, now: time.Now}, nil
}

// WithClock overrides the heartbeat clock. Tests only.
func (ix *Index) WithClock(now func() time.Time) *Index {
	ix.now = now
	return ix
}

// UpsertProvider inserts or fully replaces a provider record.
func (ix *Index) UpsertProvider(rec ProviderRecord) error {
	rec.Address = strings.ToLower(rec.Address)
	err := ix.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upserting provider %s: %w", rec.Address, err)
	}
	return nil
}

// UpdateProviderCapacity pushes corrected capacity figures for one provider
// and refreshes its heartbeat, which doubles as the liveness signal.
func (ix *Index) UpdateProviderCapacity(addr string, allocatedMilli, availableMilli uint64, active bool) error {
	used := uint64(0)
	if allocatedMilli > availableMilli {
		used = allocatedMilli - availableMilli
	}
	res := ix.db.Model(&ProviderRecord{}).
		Where("address = ?", strings.ToLower(addr)).
		Updates(map[string]any{
			"allocated_milli": allocatedMilli,
			"used_milli":      used,
			"available_milli": availableMilli,
			"active":          active,
			"heartbeat":       ix.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("updating provider %s: %w", addr, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("provider %s: %w", addr, types.ErrNotFound)
	}
	return nil
}

// ListActiveProviders returns live sellers: active, fresh heartbeat, nonzero
// registered and available capacity, nonzero price. Ordered by price then
// address so repeated discovery over unchanged state is stable.
func (ix *Index) ListActiveProviders() ([]ProviderRecord, error) {
	cutoff := ix.now().Add(-types.HeartbeatWindow)
	var recs []ProviderRecord
	err := ix.db.
		Where("active = ? AND heartbeat >= ? AND allocated_milli > 0 AND available_milli > 0 AND price_per_unit > 0", true, cutoff).
		Order("price_per_unit asc, address asc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("listing active providers: %w", err)
	}
	return recs, nil
}

// GetProvider fetches one provider record by address.
func (ix *Index) GetProvider(addr string) (ProviderRecord, error) {
	var rec ProviderRecord
	err := ix.db.Where("address = ?", strings.ToLower(addr)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, fmt.Errorf("provider %s: %w", addr, types.ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("getting provider %s: %w", addr, err)
	}
	return rec, nil
}

// InsertFile registers file metadata. Content addresses are globally unique;
// a second insert for the same cid fails with ErrDuplicateKey.
func (ix *Index) InsertFile(rec FileRecord) error {
	rec.Owner = strings.ToLower(rec.Owner)
	rec.Provider = strings.ToLower(rec.Provider)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = ix.now()
	}
	err := ix.db.Create(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("file %s: %w", rec.CID, types.ErrDuplicateKey)
		}
		return fmt.Errorf("inserting file %s: %w", rec.CID, err)
	}
	log.Debugw("indexed file", "cid", rec.CID, "provider", rec.Provider, "size", rec.SizeBytes)
	return nil
}

// GetFile fetches file metadata by content address.
func (ix *Index) GetFile(cid string) (FileRecord, error) {
	var rec FileRecord
	err := ix.db.Where("cid = ?", cid).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, fmt.Errorf("file %s: %w", cid, types.ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("getting file %s: %w", cid, err)
	}
	return rec, nil
}

// ListFilesForProvider returns every file indexed under a provider.
func (ix *Index) ListFilesForProvider(addr string) ([]FileRecord, error) {
	var recs []FileRecord
	err := ix.db.Where("provider = ?", strings.ToLower(addr)).Order("created_at asc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("listing files for provider %s: %w", addr, err)
	}
	return recs, nil
}

// ListFilesForOwner returns every file a client owns, across providers.
func (ix *Index) ListFilesForOwner(addr string) ([]FileRecord, error) {
	var recs []FileRecord
	err := ix.db.Where("owner = ?", strings.ToLower(addr)).Order("created_at asc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("listing files for owner %s: %w", addr, err)
	}
	return recs, nil
}
