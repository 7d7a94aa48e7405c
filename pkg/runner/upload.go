package runner

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/silo-network/silo/pkg/contentstore"
	"github.com/silo-network/silo/pkg/crypt"
	"github.com/silo-network/silo/pkg/index"
	"github.com/silo-network/silo/pkg/ledger"
	"github.com/silo-network/silo/pkg/registry"
	"github.com/silo-network/silo/pkg/retry"
	"github.com/silo-network/silo/pkg/types"
)

var log = logging.Logger("runner")

const (
	defaultDiscoveryAttempts = 3
	defaultDiscoveryBackoff  = 2 * time.Second
)

// UploadRunner performs one storage purchase plus encrypted upload. There is
// no partial rollback: a failure after the purchase leaves the purchase in
// place, and the step name in the error tells the operator what to re-run.
type UploadRunner struct {
	Credential Credential
	Ledger     ledger.API
	Index      MetadataIndex
	Store      contentstore.Store
	Registry   *registry.Registry
	Policy     types.UnitPolicy

	DiscoveryAttempts int
	DiscoveryBackoff  time.Duration
}

// UploadParams describe one upload. Provider may be empty, in which case the
// cheapest live provider is selected.
type UploadParams struct {
	Path        string
	Provider    string
	AmountUnits uint64
	Name        string
}

// UploadResult reports what a completed upload produced.
type UploadResult struct {
	CID        cid.Cid
	Provider   types.Address
	SizeBytes  int64
	SizeMilli  uint64
	CostTokens uint64
	Salt       []byte
}

// Run executes the upload sequence. The returned error, if any, wraps a
// StepError naming exactly one failed step.
func (r *UploadRunner) Run(ctx context.Context, params UploadParams) (UploadResult, error) {
	var res UploadResult

	info, err := os.Stat(params.Path)
	if err != nil {
		return res, fmt.Errorf("local file: %w", err)
	}
	sizeBytes := info.Size()
	if sizeBytes == 0 {
		return res, fmt.Errorf("refusing to upload empty file %s", params.Path)
	}
	if params.AmountUnits == 0 {
		return res, fmt.Errorf("requested amount must be at least one unit")
	}

	// Step 1: resolve provider, validate requested capacity before touching
	// anything remote.
	provider, err := r.resolveProvider(ctx, params.Provider)
	if err != nil {
		return res, stepErr(StepResolveProvider, err)
	}
	requestedMilli := params.AmountUnits * types.MilliPerUnit
	if requestedMilli > provider.AvailableMilli {
		return res, stepErr(StepResolveProvider, fmt.Errorf(
			"requested %s units but provider %s advertises %s: %w",
			types.MilliString(requestedMilli), provider.Address,
			types.MilliString(provider.AvailableMilli), types.ErrInsufficientCapacity))
	}
	if sizeBytes > types.UnitsToBytes(params.AmountUnits) {
		return res, stepErr(StepResolveProvider, fmt.Errorf(
			"file is %d bytes but only %d bytes requested: %w",
			sizeBytes, types.UnitsToBytes(params.AmountUnits), types.ErrInsufficientCapacity))
	}
	providerAddr, err := types.ParseAddress(provider.Address)
	if err != nil {
		return res, stepErr(StepResolveProvider, fmt.Errorf("provider record: %w", err))
	}
	res.Provider = providerAddr
	res.SizeBytes = sizeBytes

	// Step 2: balance pre-check, so a doomed purchase fails before spending
	// anything.
	cost := types.PurchaseCost(params.AmountUnits, provider.PricePerUnit)
	balance, err := r.Ledger.BalanceOf(ctx, r.Credential.Address())
	if err != nil {
		return res, stepErr(StepCheckBalance, err)
	}
	if balance.Cmp(cost) < 0 {
		return res, stepErr(StepCheckBalance, fmt.Errorf(
			"need %s tokens, have %s: %w",
			types.FormatTokens(cost), types.FormatTokens(balance), types.ErrInsufficientBalance))
	}
	res.CostTokens = params.AmountUnits * provider.PricePerUnit

	// Step 3: purchase. Waits for finality; nothing downstream has happened,
	// so a failure here is safely retryable by re-running the whole upload.
	if err := r.Ledger.PurchaseStorage(ctx, providerAddr, params.AmountUnits); err != nil {
		return res, stepErr(StepPurchase, err)
	}
	log.Infow("storage purchased", "provider", providerAddr, "units", params.AmountUnits, "cost", types.FormatTokens(cost))

	// Step 4: encrypt under a fresh per-file salt. Retrying re-encrypts with
	// a new salt, which is fine because nothing is registered yet.
	plaintext, err := os.ReadFile(params.Path)
	if err != nil {
		return res, stepErr(StepEncrypt, err)
	}
	salt, err := crypt.GenerateSalt()
	if err != nil {
		return res, stepErr(StepEncrypt, err)
	}
	key := crypt.DeriveKey(r.Credential.KeyMaterial(), salt)
	ciphertext, err := crypt.Encrypt(key, plaintext)
	if err != nil {
		return res, stepErr(StepEncrypt, err)
	}
	res.Salt = salt

	// Step 5: publish ciphertext.
	contentID, err := r.Store.Add(ctx, bytes.NewReader(ciphertext))
	if err != nil {
		return res, stepErr(StepPublish, err)
	}
	res.CID = contentID
	log.Infow("ciphertext published", "cid", contentID, "bytes", len(ciphertext))

	// Step 6: index metadata. A failure here leaves an orphaned blob in the
	// content store for a reconciliation pass to detect; there is no
	// automatic compensation.
	name := params.Name
	if name == "" {
		name = info.Name()
	}
	err = r.Index.InsertFile(index.FileRecord{
		ID:        uuid.NewString(),
		CID:       contentID.String(),
		Owner:     r.Credential.Address().String(),
		Provider:  provider.Address,
		SizeBytes: sizeBytes,
		Salt:      hex.EncodeToString(salt),
		Name:      name,
	})
	if err != nil {
		return res, stepErr(StepIndex, err)
	}

	// Step 7: register on the ledger. A failure here fails closed: the file
	// is discoverable but downloads are rejected by the ownership gate until
	// this single step is re-run.
	res.SizeMilli = types.BytesToMilliUnits(sizeBytes, r.Policy)
	if err := r.Ledger.StoreFile(ctx, providerAddr, contentID.String(), res.SizeMilli); err != nil {
		return res, stepErr(StepRegister, err)
	}

	log.Infow("upload complete", "cid", contentID, "provider", providerAddr, "sizeMilli", res.SizeMilli)
	return res, nil
}

// resolveProvider picks the provider to buy from: an explicit address when
// given, otherwise the cheapest live provider from the index, with the
// liveness cache as fallback. Discovery is the one place automatic retry is
// performed.
func (r *UploadRunner) resolveProvider(ctx context.Context, addr string) (index.ProviderRecord, error) {
	attempts := r.DiscoveryAttempts
	if attempts <= 0 {
		attempts = defaultDiscoveryAttempts
	}
	backoff := r.DiscoveryBackoff
	if backoff <= 0 {
		backoff = defaultDiscoveryBackoff
	}

	rec, err := retry.Fixed(ctx, attempts, backoff, func() (index.ProviderRecord, error) {
		if addr != "" {
			return r.Index.GetProvider(addr)
		}
		recs, err := r.Index.ListActiveProviders()
		if err == nil && len(recs) > 0 {
			return recs[0], nil
		}
		if err != nil {
			log.Warnf("index discovery failed: %s", err)
		}
		if r.Registry != nil {
			if cached := r.Registry.Active(); len(cached) > 0 {
				e := cached[0]
				return index.ProviderRecord{
					Address:        e.Address,
					AllocatedMilli: e.AllocatedMilli,
					AvailableMilli: e.AvailableMilli,
					PricePerUnit:   e.PricePerUnit,
					Active:         true,
					Heartbeat:      e.LastSeen,
				}, nil
			}
		}
		if err != nil {
			return index.ProviderRecord{}, err
		}
		return index.ProviderRecord{}, types.ErrNoProvidersAvailable
	})
	if err != nil {
		if errors.Is(err, types.ErrNoProvidersAvailable) || errors.Is(err, types.ErrNotFound) {
			return rec, err
		}
		return rec, fmt.Errorf("%w: %w", types.ErrNoProvidersAvailable, err)
	}

	if r.Registry != nil {
		r.Registry.Put(registry.Entry{
			Address:        rec.Address,
			AllocatedMilli: rec.AllocatedMilli,
			AvailableMilli: rec.AvailableMilli,
			PricePerUnit:   rec.PricePerUnit,
		})
	}
	return rec, nil
}
