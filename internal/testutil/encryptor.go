package testutil

import (
	"aoi-go/internal/aoi"
	"aoi-go/internal/encryption"
)

// NewTestEncryptor returns the deterministic header-prefix encryptor.
func NewTestEncryptor() aoi.Encryptor {
	return encryption.NewTestEncryptor()
}
