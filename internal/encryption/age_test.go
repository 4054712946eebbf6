package encryption

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aoi-go/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "aoi.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "aoi.key"),
	})
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	assert.False(t, e.IsConfigured(), "configured before Setup")

	require.NoError(t, e.Setup("test-passphrase"))
	assert.True(t, e.IsConfigured())

	info, err := os.Stat(e.privateKeyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	err = e.Setup("another")
	assert.True(t, errors.Is(err, ErrKeysExist), "second Setup must not replace keys, got %v", err)
}

func TestAgeEncryptor_SetupRejectsEmptyPassphrase(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	assert.Error(t, e.Setup(""))
	assert.False(t, e.IsConfigured())
}

func TestAgeEncryptor_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "png header", input: []byte("\x89PNG\r\n\x1a\n")},
		{name: "empty", input: []byte{}},
		{name: "large image", input: bytes.Repeat([]byte("pixels"), 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			passphrase := "test-passphrase"
			e := newTestAgeEncryptor(t)
			require.NoError(t, e.Setup(passphrase))

			var encrypted bytes.Buffer
			require.NoError(t, e.Encrypt(bytes.NewReader(tt.input), &encrypted))
			if len(tt.input) > 0 {
				assert.NotEqual(t, tt.input, encrypted.Bytes())
			}

			// A fresh encryptor reads the public key from disk.
			reopened := NewAgeEncryptor(config.EncryptionConfig{
				PublicKeyPath:  e.publicKeyPath,
				PrivateKeyPath: e.privateKeyPath,
			})
			var second bytes.Buffer
			require.NoError(t, reopened.Encrypt(bytes.NewReader(tt.input), &second))

			dc, err := e.Unlock(passphrase)
			require.NoError(t, err)

			for _, ct := range [][]byte{encrypted.Bytes(), second.Bytes()} {
				var decrypted bytes.Buffer
				require.NoError(t, dc.Decrypt(bytes.NewReader(ct), &decrypted))
				assert.True(t, bytes.Equal(tt.input, decrypted.Bytes()), "round trip mismatch")
			}
		})
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	require.NoError(t, e.Setup("correct-passphrase"))

	_, err := e.Unlock("wrong-passphrase")
	assert.Error(t, err)
}

func TestAgeEncryptor_BeforeSetup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)

	var buf bytes.Buffer
	assert.Error(t, e.Encrypt(bytes.NewReader([]byte("data")), &buf))

	_, err := e.Unlock("passphrase")
	assert.Error(t, err)
}
