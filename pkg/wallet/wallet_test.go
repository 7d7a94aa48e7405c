package wallet

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silo-network/silo/pkg/types"
)

func TestGenerateAddress(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	addr := w.Address().String()
	assert.True(t, strings.HasPrefix(addr, "0x"))
	assert.Len(t, addr, 42)
	assert.False(t, w.Address().IsZero())
}

func TestKeystoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")

	w, err := Generate()
	require.NoError(t, err)
	require.NoError(t, w.Save(path, "hunter2"))

	got, err := Open(path, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, w.Address(), got.Address())
	assert.Equal(t, w.KeyMaterial(), got.KeyMaterial())
}

func TestKeystoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")

	w, err := Generate()
	require.NoError(t, err)
	require.NoError(t, w.Save(path, "hunter2"))

	_, err = Open(path, "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrDecryption))
}

func TestKeystoreMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.json"), "hunter2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestSign(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	digest := Digest([]byte("PurchaseStorage[...]"))
	require.Len(t, digest, 32)

	sig, err := w.Sign(digest)
	require.NoError(t, err)
	assert.Len(t, sig, 65)

	_, err = w.Sign([]byte("short"))
	assert.Error(t, err)
}

func TestKeyMaterialBindsAddress(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a.KeyMaterial(), b.KeyMaterial())
	// credential material starts with the account address
	assert.Equal(t, a.Address().Bytes(), a.KeyMaterial()[:20])
}
