package service

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestKeyPair(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	privPath := filepath.Join(dir, "private.pem")
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(testSigningKey),
	})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))

	pubPath := filepath.Join(dir, "public.pem")
	pubDER, err := x509.MarshalPKIXPublicKey(&testSigningKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))

	return privPath, pubPath
}

func TestLoadSigningKey(t *testing.T) {
	privPath, pubPath := writeTestKeyPair(t)

	key, err := LoadSigningKey(privPath)
	require.NoError(t, err)
	assert.Equal(t, testSigningKey.N, key.N)

	pub, err := LoadVerifyKey(pubPath)
	require.NoError(t, err)
	assert.Equal(t, testSigningKey.PublicKey.N, pub.N)
}

func TestLoadSigningKeyMissingFile(t *testing.T) {
	_, err := LoadSigningKey(filepath.Join(t.TempDir(), "absent.pem"))
	assert.Error(t, err)
}

func TestLoadSigningKeyInvalidPEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	_, err := LoadSigningKey(path)
	assert.Error(t, err)

	_, err = LoadVerifyKey(path)
	assert.Error(t, err)
}
