package index

import (
	"time"

	"github.com/silo-network/silo/pkg/types"
)

const (
	TableNameProviders   = "providers"
	TableNameStoredFiles = "stored_files"
)

// ProviderRecord is the index's denormalized provider row. Capacity columns
// are milli-units; the ledger remains authoritative for all of them.
type ProviderRecord struct {
	Address        string    `gorm:"column:address;primaryKey"`
	AllocatedMilli uint64    `gorm:"column:allocated_milli"`
	UsedMilli      uint64    `gorm:"column:used_milli"`
	AvailableMilli uint64    `gorm:"column:available_milli"`
	PricePerUnit   uint64    `gorm:"column:price_per_unit"`
	Active         bool      `gorm:"column:active"`
	Heartbeat      time.Time `gorm:"column:heartbeat"`
}

func (ProviderRecord) TableName() string {
	return TableNameProviders
}

func (r ProviderRecord) ToProvider() (types.Provider, error) {
	addr, err := types.ParseAddress(r.Address)
	if err != nil {
		return types.Provider{}, err
	}
	return types.Provider{
		Address:        addr,
		AllocatedMilli: r.AllocatedMilli,
		UsedMilli:      r.UsedMilli,
		AvailableMilli: r.AvailableMilli,
		PricePerUnit:   r.PricePerUnit,
		Active:         r.Active,
		Heartbeat:      r.Heartbeat,
	}, nil
}

// FileRecord carries what the ledger does not: the encryption salt and the
// human-readable name. It is never authoritative for ownership.
type FileRecord struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CID       string    `gorm:"column:cid;uniqueIndex"`
	Owner     string    `gorm:"column:owner"`
	Provider  string    `gorm:"column:provider"`
	SizeBytes int64     `gorm:"column:size_bytes"`
	Salt      string    `gorm:"column:salt"` // hex
	Name      string    `gorm:"column:name"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (FileRecord) TableName() string {
	return TableNameStoredFiles
}
