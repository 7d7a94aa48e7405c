package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/argon2"

	"github.com/silo-network/silo/pkg/crypt"
	"github.com/silo-network/silo/pkg/types"
)

const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	storeSaltLen = 32
)

type keystoreFile struct {
	Address    string `json:"address"`
	KDF        string `json:"kdf"`
	Salt       string `json:"salt"`
	Ciphertext string `json:"ciphertext"`
}

// Save persists the wallet key encrypted under an argon2id key from the
// passphrase. The file only ever contains ciphertext.
func (w *Wallet) Save(path, passphrase string) error {
	salt := make([]byte, storeSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generating keystore salt: %w", err)
	}
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, 32)
	sealed, err := crypt.Encrypt(key, w.priv.Serialize())
	if err != nil {
		return fmt.Errorf("sealing key: %w", err)
	}

	data, err := json.MarshalIndent(keystoreFile{
		Address:    w.addr.String(),
		KDF:        "argon2id",
		Salt:       hex.EncodeToString(salt),
		Ciphertext: hex.EncodeToString(sealed),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding keystore: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating keystore directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing keystore: %w", err)
	}
	return nil
}

// Open loads and decrypts a keystore file. A missing file is a configuration
// error; a wrong passphrase surfaces as ErrDecryption.
func Open(path, passphrase string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("keystore %s: %w", path, types.ErrConfiguration)
		}
		return nil, fmt.Errorf("reading keystore: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("decoding keystore: %w", err)
	}
	salt, err := hex.DecodeString(kf.Salt)
	if err != nil {
		return nil, fmt.Errorf("decoding keystore salt: %w", err)
	}
	sealed, err := hex.DecodeString(kf.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding keystore ciphertext: %w", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, 32)
	raw, err := crypt.Decrypt(key, sealed)
	if err != nil {
		return nil, fmt.Errorf("unsealing keystore %s: %w", path, err)
	}
	w := fromKey(secp256k1.PrivKeyFromBytes(raw))
	if kf.Address != "" && kf.Address != w.addr.String() {
		return nil, fmt.Errorf("keystore address %s does not match key %s", kf.Address, w.addr)
	}
	return w, nil
}
