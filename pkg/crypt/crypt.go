// Package crypt implements the per-file encryption scheme: a PBKDF2 key
// derived from wallet credential material and a fresh random salt, used with
// AES-256-GCM. The salt is not secret but losing it loses the file.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/silo-network/silo/pkg/types"
)

const (
	kdfIterations = 4096
	keyLen        = 32 // 256 bits
	SaltLen       = 16
	nonceLen      = 12
)

// GenerateSalt returns a fresh random per-file salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives the 256-bit file key from credential material (wallet
// address concatenated with private key material) and a salt.
func DeriveKey(credential, salt []byte) []byte {
	return pbkdf2.Key(credential, salt, kdfIterations, keyLen, sha256.New)
}

// Encrypt seals plaintext under key with a random nonce. The nonce is
// prepended to the returned ciphertext.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt. Malformed input or a wrong key
// yields ErrDecryption, never garbage plaintext.
func Decrypt(key, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(data) < nonceLen {
		return nil, fmt.Errorf("ciphertext shorter than nonce: %w", types.ErrDecryption)
	}
	plaintext, err := gcm.Open(nil, data[:nonceLen], data[nonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("opening ciphertext: %w", types.ErrDecryption)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm, nil
}
