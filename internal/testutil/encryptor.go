package testutil

import (
	"sl-go/internal/encryption"
)

// NewTestEncryptor creates a deterministic encryptor that unlocks with an
// empty passphrase.
func NewTestEncryptor() *encryption.FakeEncryptor {
	return encryption.NewFakeEncryptor()
}
