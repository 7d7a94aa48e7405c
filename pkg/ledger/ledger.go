// Package ledger is the typed facade over the on-chain storage contract.
// Every mutating call is signed, sent and awaited for finality before it
// returns; there is no fire-and-forget path.
package ledger

import (
	"context"
	"math/big"

	"github.com/silo-network/silo/pkg/types"
)

// FileDetails is the ledger's ownership record for a content address. Owner
// is the zero address when the content address is unknown; Provider is the
// zero address when the registration is inconsistent. Both are sentinels to
// branch on, not errors.
type FileDetails struct {
	Provider  types.Address
	Owner     types.Address
	SizeUnits uint64
}

// API is the contract surface the rest of the system depends on. Capacity
// and purchase amounts are whole allocation units; storeFile sizes are
// milli-units (the contract applies the same rounding rule as
// types.MilliToWholeUnits).
type API interface {
	RegisterProvider(ctx context.Context, capacityUnits, pricePerUnit uint64) error
	PurchaseStorage(ctx context.Context, provider types.Address, amountUnits uint64) error
	StoreFile(ctx context.Context, provider types.Address, cid string, sizeMilli uint64) error
	DistributeMiningRewards(ctx context.Context) error

	GetFileDetails(ctx context.Context, cid string) (FileDetails, error)
	GetClientAllocation(ctx context.Context, provider, client types.Address) (types.ClientAllocation, error)
	BalanceOf(ctx context.Context, addr types.Address) (*big.Int, error)
}

// Signer is the credential the client signs mutating calls with.
type Signer interface {
	Address() types.Address
	Sign(digest []byte) ([]byte, error)
}
