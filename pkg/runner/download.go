package runner

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"github.com/silo-network/silo/pkg/contentstore"
	"github.com/silo-network/silo/pkg/crypt"
	"github.com/silo-network/silo/pkg/ledger"
	"github.com/silo-network/silo/pkg/types"
)

// DownloadRunner retrieves and decrypts one owned file. The on-chain
// ownership check is the sole authorization gate; the index entry alone is
// never sufficient.
type DownloadRunner struct {
	Credential Credential
	Ledger     ledger.API
	Index      MetadataIndex
	Store      contentstore.Store
}

type DownloadParams struct {
	CID  string
	Dest string
}

type DownloadResult struct {
	Provider  types.Address
	SizeBytes int64
	Name      string
	Dest      string
}

// Run executes the download sequence. The content store is never queried
// before the ledger authorization passes.
func (r *DownloadRunner) Run(ctx context.Context, params DownloadParams) (DownloadResult, error) {
	var res DownloadResult

	// Step 1: metadata lookup, for the encryption salt and display name.
	rec, err := r.Index.GetFile(params.CID)
	if err != nil {
		return res, stepErr(StepLookup, err)
	}
	salt, err := hex.DecodeString(rec.Salt)
	if err != nil {
		return res, stepErr(StepLookup, fmt.Errorf("decoding stored salt: %w", err))
	}
	res.Name = rec.Name

	// Step 2: on-chain authorization. Sentinels are branched on explicitly:
	// zero owner means the ledger never saw this content address.
	details, err := r.Ledger.GetFileDetails(ctx, params.CID)
	if err != nil {
		return res, stepErr(StepAuthorize, err)
	}
	if details.Owner.IsZero() {
		return res, stepErr(StepAuthorize, fmt.Errorf("content address %s unregistered: %w", params.CID, types.ErrNotFound))
	}
	if details.Provider.IsZero() {
		return res, stepErr(StepAuthorize, fmt.Errorf("content address %s has no provider: %w", params.CID, types.ErrProviderMismatch))
	}
	if details.Owner != r.Credential.Address() {
		return res, stepErr(StepAuthorize, fmt.Errorf("file %s owned by %s: %w", params.CID, details.Owner, types.ErrPermissionDenied))
	}
	res.Provider = details.Provider

	// Step 3: fetch ciphertext.
	contentID, err := cid.Parse(params.CID)
	if err != nil {
		return res, stepErr(StepFetch, fmt.Errorf("parsing content address: %w", err))
	}
	ciphertext, err := r.Store.Cat(ctx, contentID)
	if err != nil {
		return res, stepErr(StepFetch, err)
	}

	// Step 4: re-derive the key from the caller credential and stored salt.
	key := crypt.DeriveKey(r.Credential.KeyMaterial(), salt)
	plaintext, err := crypt.Decrypt(key, ciphertext)
	if err != nil {
		return res, stepErr(StepDecrypt, err)
	}
	res.SizeBytes = int64(len(plaintext))

	// Step 5: persist to the caller-specified destination.
	dest := params.Dest
	if dest == "" {
		dest = rec.Name
	}
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return res, stepErr(StepPersist, err)
		}
	}
	if err := os.WriteFile(dest, plaintext, 0600); err != nil {
		return res, stepErr(StepPersist, err)
	}
	res.Dest = dest

	log.Infow("download complete", "cid", params.CID, "dest", dest, "bytes", res.SizeBytes)
	return res, nil
}
