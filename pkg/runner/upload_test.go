package runner

import (
	"context"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silo-network/silo/pkg/index"
	"github.com/silo-network/silo/pkg/registry"
	"github.com/silo-network/silo/pkg/types"
	"github.com/silo-network/silo/pkg/wallet"
)

func testIndexWithProvider(t *testing.T, addr types.Address, capacityUnits, pricePerUnit uint64) *index.Index {
	t.Helper()
	ix, err := index.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, ix.UpsertProvider(index.ProviderRecord{
		Address:        addr.String(),
		AllocatedMilli: capacityUnits * types.MilliPerUnit,
		AvailableMilli: capacityUnits * types.MilliPerUnit,
		PricePerUnit:   pricePerUnit,
		Active:         true,
		Heartbeat:      time.Now(),
	}))
	return ix
}

func writeTestFile(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func testProviderAddr(t *testing.T) types.Address {
	t.Helper()
	a, err := types.ParseAddress("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	return a
}

func TestUploadPurchaseAndRegister(t *testing.T) {
	client, err := wallet.Generate()
	require.NoError(t, err)
	providerAddr := testProviderAddr(t)

	// provider sells 10 units at 10 tokens each; client holds 50 tokens
	lg := newFakeLedger(client.Address())
	lg.addProvider(providerAddr, 10, 10)
	lg.fund(client.Address(), 50)

	ix := testIndexWithProvider(t, providerAddr, 10, 10)
	store := newFakeStore()

	up := &UploadRunner{
		Credential:        client,
		Ledger:            lg,
		Index:             ix,
		Store:             store,
		DiscoveryAttempts: 1,
		DiscoveryBackoff:  time.Millisecond,
	}

	res, err := up.Run(context.Background(), UploadParams{
		Path:        writeTestFile(t, 1<<20),
		AmountUnits: 2,
		Name:        "payload.bin",
	})
	require.NoError(t, err)

	// 2 units at 10 tokens/unit: 50 - 20 = 30
	bal, err := lg.BalanceOf(context.Background(), client.Address())
	require.NoError(t, err)
	assert.Equal(t, "30", types.FormatTokens(bal))
	assert.Equal(t, uint64(20), res.CostTokens)

	// a 1 MiB file still registers at least one milli-unit
	require.GreaterOrEqual(t, res.SizeMilli, uint64(1))
	assert.Equal(t, providerAddr, res.Provider)

	alloc, err := lg.GetClientAllocation(context.Background(), providerAddr, client.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), alloc.AllocatedMilli)
	assert.LessOrEqual(t, alloc.UsedMilli, alloc.AllocatedMilli)
	assert.Equal(t, "20", types.FormatTokens(alloc.Paid))

	// metadata carries the salt the ledger lacks
	rec, err := ix.GetFile(res.CID.String())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Salt)
	assert.Equal(t, client.Address().String(), rec.Owner)

	// ledger ownership record in place
	details, err := lg.GetFileDetails(context.Background(), res.CID.String())
	require.NoError(t, err)
	assert.Equal(t, client.Address(), details.Owner)
	assert.GreaterOrEqual(t, details.SizeUnits, uint64(1))

	assert.Equal(t, []string{"PurchaseStorage", "StoreFile"}, lg.calls)
	assert.Equal(t, 1, store.addCalls)
}

func TestUploadOneByteOverFailsBeforeAnyMutation(t *testing.T) {
	client, err := wallet.Generate()
	require.NoError(t, err)
	providerAddr := testProviderAddr(t)

	lg := newFakeLedger(client.Address())
	lg.addProvider(providerAddr, 10, 10)
	lg.fund(client.Address(), 50)
	ix := testIndexWithProvider(t, providerAddr, 10, 10)
	store := newFakeStore()

	// sparse file one byte over the purchased unit
	path := filepath.Join(t.TempDir(), "big.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(types.BytesPerUnit)+1))
	require.NoError(t, f.Close())

	up := &UploadRunner{
		Credential:        client,
		Ledger:            lg,
		Index:             ix,
		Store:             store,
		DiscoveryAttempts: 1,
		DiscoveryBackoff:  time.Millisecond,
	}

	_, err = up.Run(context.Background(), UploadParams{Path: path, AmountUnits: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInsufficientCapacity))
	assert.Equal(t, StepResolveProvider, types.FailedStep(err))

	// nothing was purchased, published, or registered
	assert.Empty(t, lg.calls)
	assert.Zero(t, store.addCalls)
}

func TestUploadRequestBeyondProviderCapacity(t *testing.T) {
	client, err := wallet.Generate()
	require.NoError(t, err)
	providerAddr := testProviderAddr(t)

	lg := newFakeLedger(client.Address())
	lg.addProvider(providerAddr, 2, 10)
	lg.fund(client.Address(), 500)
	ix := testIndexWithProvider(t, providerAddr, 2, 10)

	up := &UploadRunner{
		Credential:        client,
		Ledger:            lg,
		Index:             ix,
		Store:             newFakeStore(),
		DiscoveryAttempts: 1,
		DiscoveryBackoff:  time.Millisecond,
	}

	_, err = up.Run(context.Background(), UploadParams{
		Path:        writeTestFile(t, 1024),
		AmountUnits: 3,
	})
	assert.True(t, errors.Is(err, types.ErrInsufficientCapacity))
	assert.Empty(t, lg.calls)
}

func TestUploadInsufficientBalanceAbortsBeforePurchase(t *testing.T) {
	client, err := wallet.Generate()
	require.NoError(t, err)
	providerAddr := testProviderAddr(t)

	lg := newFakeLedger(client.Address())
	lg.addProvider(providerAddr, 10, 10)
	lg.fund(client.Address(), 10) // needs 20
	ix := testIndexWithProvider(t, providerAddr, 10, 10)
	store := newFakeStore()

	up := &UploadRunner{
		Credential:        client,
		Ledger:            lg,
		Index:             ix,
		Store:             store,
		DiscoveryAttempts: 1,
		DiscoveryBackoff:  time.Millisecond,
	}

	_, err = up.Run(context.Background(), UploadParams{
		Path:        writeTestFile(t, 1024),
		AmountUnits: 2,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInsufficientBalance))
	assert.Equal(t, StepCheckBalance, types.FailedStep(err))
	assert.NotContains(t, lg.calls, "PurchaseStorage")
	assert.Zero(t, store.addCalls)
}

func TestUploadNoProvidersAvailable(t *testing.T) {
	client, err := wallet.Generate()
	require.NoError(t, err)

	ix, err := index.Open(":memory:")
	require.NoError(t, err)

	up := &UploadRunner{
		Credential:        client,
		Ledger:            newFakeLedger(client.Address()),
		Index:             ix,
		Store:             newFakeStore(),
		DiscoveryAttempts: 2,
		DiscoveryBackoff:  time.Millisecond,
	}

	_, err = up.Run(context.Background(), UploadParams{
		Path:        writeTestFile(t, 1024),
		AmountUnits: 1,
	})
	assert.True(t, errors.Is(err, types.ErrNoProvidersAvailable))
}

func TestUploadIndexFailureLeavesPurchaseInPlace(t *testing.T) {
	client, err := wallet.Generate()
	require.NoError(t, err)
	providerAddr := testProviderAddr(t)

	lg := newFakeLedger(client.Address())
	lg.addProvider(providerAddr, 10, 10)
	lg.fund(client.Address(), 50)
	ix := testIndexWithProvider(t, providerAddr, 10, 10)
	store := newFakeStore()

	up := &UploadRunner{
		Credential:        client,
		Ledger:            lg,
		Index:             &failingInsertIndex{Index: ix, err: types.ErrDuplicateKey},
		Store:             store,
		DiscoveryAttempts: 1,
		DiscoveryBackoff:  time.Millisecond,
	}

	_, err = up.Run(context.Background(), UploadParams{
		Path:        writeTestFile(t, 1024),
		AmountUnits: 1,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrDuplicateKey))
	assert.Equal(t, StepIndex, types.FailedStep(err))

	// no rollback: the purchase happened, the blob was published, but the
	// ledger registration never ran
	assert.Equal(t, []string{"PurchaseStorage"}, lg.calls)
	assert.Equal(t, 1, store.addCalls)
}

func TestUploadRegistryFallbackDiscovery(t *testing.T) {
	client, err := wallet.Generate()
	require.NoError(t, err)
	providerAddr := testProviderAddr(t)

	lg := newFakeLedger(client.Address())
	lg.addProvider(providerAddr, 10, 10)
	lg.fund(client.Address(), 50)

	// empty index, but the liveness cache holds a recent sighting
	ix, err := index.Open(":memory:")
	require.NoError(t, err)

	reg := registry.New(time.Now)
	reg.Put(registry.Entry{
		Address:        providerAddr.String(),
		AllocatedMilli: 10 * types.MilliPerUnit,
		AvailableMilli: 10 * types.MilliPerUnit,
		PricePerUnit:   10,
	})

	up := &UploadRunner{
		Credential:        client,
		Ledger:            lg,
		Index:             ix,
		Store:             newFakeStore(),
		Registry:          reg,
		DiscoveryAttempts: 1,
		DiscoveryBackoff:  time.Millisecond,
	}

	res, err := up.Run(context.Background(), UploadParams{
		Path:        writeTestFile(t, 1024),
		AmountUnits: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, providerAddr, res.Provider)

	// the upload registered its metadata even though discovery came from
	// the cache
	_, err = ix.GetFile(res.CID.String())
	assert.NoError(t, err)
}
