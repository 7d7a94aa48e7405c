// Package wallet holds the process's signing credential: a secp256k1 key
// with a keccak-derived account address, persisted encrypted at rest.
package wallet

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/silo-network/silo/pkg/types"
)

// Wallet wraps a secp256k1 private key. The key never leaves the process in
// plaintext; persistence goes through the keystore.
type Wallet struct {
	priv *secp256k1.PrivateKey
	addr types.Address
}

// Generate creates a fresh signing key.
func Generate() (*Wallet, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return fromKey(priv), nil
}

func fromKey(priv *secp256k1.PrivateKey) *Wallet {
	return &Wallet{priv: priv, addr: addressOf(priv)}
}

// addressOf derives the account address: the last 20 bytes of the keccak256
// hash of the uncompressed public key body.
func addressOf(priv *secp256k1.PrivateKey) types.Address {
	pub := priv.PubKey().SerializeUncompressed()
	h := sha3.NewLegacyKeccak256()
	h.Write(pub[1:])
	sum := h.Sum(nil)
	var a types.Address
	copy(a[:], sum[12:])
	return a
}

func (w *Wallet) Address() types.Address {
	return w.addr
}

// Sign produces a compact ECDSA signature over a 32-byte digest.
func (w *Wallet) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	return ecdsa.SignCompact(w.priv, digest, false), nil
}

// KeyMaterial returns the credential bytes file keys are derived from:
// the account address concatenated with the serialized private key.
func (w *Wallet) KeyMaterial() []byte {
	return append(w.addr.Bytes(), w.priv.Serialize()...)
}

// Digest is the keccak256 hash used for signed ledger calls.
func Digest(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
