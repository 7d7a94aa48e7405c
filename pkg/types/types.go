package types

import (
	"math/big"
	"time"
)

// HeartbeatWindow is how recent a provider's heartbeat must be for the
// provider to count as live during discovery.
const HeartbeatWindow = 5 * time.Minute

// Provider is the marketplace view of one storage provider. Capacity figures
// are milli-units; Price is whole tokens per allocation unit.
type Provider struct {
	Address        Address
	AllocatedMilli uint64
	UsedMilli      uint64
	AvailableMilli uint64
	PricePerUnit   uint64
	Active         bool
	Heartbeat      time.Time
}

// Live reports whether the provider's heartbeat falls inside the freshness
// window at the given instant.
func (p Provider) Live(now time.Time) bool {
	return p.Active && now.Sub(p.Heartbeat) <= HeartbeatWindow
}

// ClientAllocation is the ledger's per-provider, per-client allocation record.
type ClientAllocation struct {
	AllocatedMilli uint64
	UsedMilli      uint64
	Paid           *big.Int
	LastPayment    time.Time
}

// AvailableMilli is the unconsumed part of the allocation.
func (a ClientAllocation) AvailableMilli() uint64 {
	if a.UsedMilli > a.AllocatedMilli {
		return 0
	}
	return a.AllocatedMilli - a.UsedMilli
}

// StoredFile is the full description of one uploaded file: the ledger holds
// the ownership triple, the metadata index holds the rest.
type StoredFile struct {
	CID       string
	Owner     Address
	Provider  Address
	SizeBytes int64
	Salt      []byte
	Name      string
	CreatedAt time.Time
}
