package runner

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/silo-network/silo/pkg/index"
	"github.com/silo-network/silo/pkg/ledger"
	"github.com/silo-network/silo/pkg/types"
)

// fakeLedger is an in-memory contract with the same capacity and balance
// rules the real one enforces.
type fakeLedger struct {
	mu     sync.Mutex
	caller types.Address
	policy types.UnitPolicy

	balances    map[types.Address]*big.Int
	providers   map[types.Address]*providerState
	allocations map[[2]types.Address]*types.ClientAllocation
	files       map[string]ledger.FileDetails

	calls []string

	purchaseErr error
	storeErr    error
	balanceErr  error
}

type providerState struct {
	allocatedMilli uint64
	soldMilli      uint64
	pricePerUnit   uint64
}

func newFakeLedger(caller types.Address) *fakeLedger {
	return &fakeLedger{
		caller:      caller,
		balances:    map[types.Address]*big.Int{},
		providers:   map[types.Address]*providerState{},
		allocations: map[[2]types.Address]*types.ClientAllocation{},
		files:       map[string]ledger.FileDetails{},
	}
}

func (l *fakeLedger) fund(addr types.Address, tokens uint64) {
	l.balances[addr] = types.Tokens(tokens)
}

func (l *fakeLedger) addProvider(addr types.Address, capacityUnits, pricePerUnit uint64) {
	l.providers[addr] = &providerState{
		allocatedMilli: capacityUnits * types.MilliPerUnit,
		pricePerUnit:   pricePerUnit,
	}
}

func (l *fakeLedger) record(call string) {
	l.calls = append(l.calls, call)
}

func (l *fakeLedger) RegisterProvider(ctx context.Context, capacityUnits, pricePerUnit uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("RegisterProvider")
	l.addProvider(l.caller, capacityUnits, pricePerUnit)
	return nil
}

func (l *fakeLedger) PurchaseStorage(ctx context.Context, provider types.Address, amountUnits uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("PurchaseStorage")
	if l.purchaseErr != nil {
		return l.purchaseErr
	}
	p, ok := l.providers[provider]
	if !ok {
		return fmt.Errorf("provider %s: %w", provider, types.ErrNotFound)
	}
	amountMilli := amountUnits * types.MilliPerUnit
	if p.soldMilli+amountMilli > p.allocatedMilli {
		return types.ErrInsufficientCapacity
	}
	cost := types.PurchaseCost(amountUnits, p.pricePerUnit)
	bal := l.balances[l.caller]
	if bal == nil || bal.Cmp(cost) < 0 {
		return types.ErrInsufficientBalance
	}
	l.balances[l.caller] = new(big.Int).Sub(bal, cost)
	p.soldMilli += amountMilli

	key := [2]types.Address{provider, l.caller}
	alloc := l.allocations[key]
	if alloc == nil {
		alloc = &types.ClientAllocation{Paid: big.NewInt(0)}
		l.allocations[key] = alloc
	}
	alloc.AllocatedMilli += amountMilli
	alloc.Paid = new(big.Int).Add(alloc.Paid, cost)
	alloc.LastPayment = time.Now()
	return nil
}

func (l *fakeLedger) StoreFile(ctx context.Context, provider types.Address, cidStr string, sizeMilli uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("StoreFile")
	if l.storeErr != nil {
		return l.storeErr
	}
	// the contract bills whole units, rounding nonzero milli up to one
	billedMilli := types.MilliToWholeUnits(sizeMilli, l.policy) * types.MilliPerUnit
	key := [2]types.Address{provider, l.caller}
	alloc := l.allocations[key]
	if alloc == nil || alloc.UsedMilli+billedMilli > alloc.AllocatedMilli {
		return types.ErrInsufficientCapacity
	}
	alloc.UsedMilli += billedMilli
	l.files[cidStr] = ledger.FileDetails{
		Provider:  provider,
		Owner:     l.caller,
		SizeUnits: billedMilli / types.MilliPerUnit,
	}
	return nil
}

func (l *fakeLedger) DistributeMiningRewards(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("DistributeMiningRewards")
	return nil
}

func (l *fakeLedger) GetFileDetails(ctx context.Context, cidStr string) (ledger.FileDetails, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// unknown content addresses yield the zero-address sentinel, not an error
	return l.files[cidStr], nil
}

func (l *fakeLedger) GetClientAllocation(ctx context.Context, provider, client types.Address) (types.ClientAllocation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	alloc := l.allocations[[2]types.Address{provider, client}]
	if alloc == nil {
		return types.ClientAllocation{Paid: big.NewInt(0)}, nil
	}
	return *alloc, nil
}

func (l *fakeLedger) BalanceOf(ctx context.Context, addr types.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balanceErr != nil {
		return nil, l.balanceErr
	}
	bal := l.balances[addr]
	if bal == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

// fakeStore is an in-memory content-addressed blob store.
type fakeStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	addCalls int
	catCalls int
	addErr   error
	catErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: map[string][]byte{}}
}

func (s *fakeStore) Add(ctx context.Context, r io.Reader) (cid.Cid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCalls++
	if s.addErr != nil {
		return cid.Undef, s.addErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return cid.Undef, err
	}
	digest, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	c := cid.NewCidV1(cid.Raw, digest)
	s.blobs[c.String()] = data
	return c, nil
}

func (s *fakeStore) Cat(ctx context.Context, c cid.Cid) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catCalls++
	if s.catErr != nil {
		return nil, s.catErr
	}
	data, ok := s.blobs[c.String()]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", c, types.ErrNotFound)
	}
	return data, nil
}

func (s *fakeStore) IsOnline() bool {
	return true
}

// failingInsertIndex delegates to a real index but fails InsertFile.
type failingInsertIndex struct {
	*index.Index
	err error
}

func (f *failingInsertIndex) InsertFile(rec index.FileRecord) error {
	return f.err
}
