// Package contentstore adds and retrieves opaque ciphertext blobs by content
// address against an IPFS node.
package contentstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ipfs/go-cid"
	shell "github.com/ipfs/go-ipfs-api"
	logging "github.com/ipfs/go-log/v2"
	mh "github.com/multiformats/go-multihash"

	"github.com/silo-network/silo/pkg/types"
)

var log = logging.Logger("contentstore")

// DefaultTimeout bounds every content store round trip.
const DefaultTimeout = 60 * time.Second

// Store is the blob interface the orchestrator depends on.
type Store interface {
	Add(ctx context.Context, r io.Reader) (cid.Cid, error)
	Cat(ctx context.Context, c cid.Cid) ([]byte, error)
	IsOnline() bool
}

// IPFS talks to a local or provider-operated node over its HTTP API.
type IPFS struct {
	sh *shell.Shell
}

var _ Store = (*IPFS)(nil)

// NewIPFS connects to the node API at endpoint (e.g. "localhost:5001").
func NewIPFS(endpoint string, timeout time.Duration) *IPFS {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	sh := shell.NewShell(endpoint)
	sh.SetTimeout(timeout)
	return &IPFS{sh: sh}
}

// Add publishes a blob and returns its content address. Blobs are added as
// raw leaves so small ciphertexts hash directly to their bytes.
func (s *IPFS) Add(ctx context.Context, r io.Reader) (cid.Cid, error) {
	id, err := s.sh.Add(r, shell.Pin(true), shell.CidVersion(1), shell.RawLeaves(true))
	if err != nil {
		return cid.Undef, fmt.Errorf("adding blob: %w: %v", types.ErrNetwork, err)
	}
	c, err := cid.Parse(id)
	if err != nil {
		return cid.Undef, fmt.Errorf("parsing returned content address %q: %w", id, err)
	}
	log.Debugw("published blob", "cid", c)
	return c, nil
}

// Cat fetches a blob by content address. Single-block (raw codec) bodies are
// re-hashed and compared against the address before being returned.
func (s *IPFS) Cat(ctx context.Context, c cid.Cid) ([]byte, error) {
	resp, err := s.sh.Request("cat", c.String()).Send(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w: %v", c, types.ErrNetwork, err)
	}
	defer resp.Close()
	if resp.Error != nil {
		return nil, fmt.Errorf("fetching %s: %w: %v", c, types.ErrNetwork, resp.Error)
	}
	body, err := io.ReadAll(resp.Output)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w: %v", c, types.ErrNetwork, err)
	}
	if err := VerifyBody(c, body); err != nil {
		return nil, err
	}
	return body, nil
}

// IsOnline reports whether the node API is reachable.
func (s *IPFS) IsOnline() bool {
	return s.sh.IsUp()
}

// VerifyBody checks a fetched body against its content address. Only raw
// single-block addresses hash their bytes directly; dag-structured addresses
// are left to the node to verify.
func VerifyBody(c cid.Cid, body []byte) error {
	if c.Prefix().Codec != cid.Raw {
		return nil
	}
	sum, err := mh.Sum(body, c.Prefix().MhType, -1)
	if err != nil {
		return fmt.Errorf("hashing body for %s: %w", c, err)
	}
	if !bytes.Equal(sum, c.Hash()) {
		return fmt.Errorf("body does not match content address %s: %w", c, types.ErrNetwork)
	}
	return nil
}
