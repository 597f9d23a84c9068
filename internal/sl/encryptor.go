package sl

import "io"

// Encryptor encrypts archived scan reports with a public key and unlocks the
// private key with a passphrase for reading them back.
type Encryptor interface {
	// Setup generates a key pair, storing the private key encrypted with passphrase.
	Setup(passphrase string) error

	// Encrypt writes the ciphertext of r to w using the public key only.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key. It fails on a wrong passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext decrypts with an unlocked private key held in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
