package aoi

import "io"

// Encryptor protects archived imagery at rest.
// Encryption needs only the public key; decryption needs the passphrase
// to unlock the private key first.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with passphrase.
	// Called once from `aoi config init --encrypt`.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock returns a DecryptionContext, or an error if the passphrase is wrong.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for one export session.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
