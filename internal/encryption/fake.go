package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"sl-go/internal/sl"
)

// fakeHeader marks reports sealed by FakeEncryptor.
var fakeHeader = []byte("SLFAKE\x00\x01")

// FakeEncryptor is a deterministic encryptor for tests. Sealing prepends a
// fixed header and opening strips it. Unlock accepts only the passphrase
// given to Setup.
type FakeEncryptor struct {
	passphrase string
	configured bool
}

var _ sl.Encryptor = (*FakeEncryptor)(nil)

// NewFakeEncryptor returns a FakeEncryptor that is already set up with an
// empty passphrase.
func NewFakeEncryptor() *FakeEncryptor {
	return &FakeEncryptor{configured: true}
}

func (e *FakeEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	e.configured = true
	return nil
}

func (e *FakeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(fakeHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying report: %w", err)
	}
	return nil
}

func (e *FakeEncryptor) Unlock(passphrase string) (sl.DecryptionContext, error) {
	if passphrase != e.passphrase {
		return nil, errors.New("wrong passphrase")
	}
	return FakeDecryptionContext{}, nil
}

func (e *FakeEncryptor) IsConfigured() bool {
	return e.configured
}

// FakeDecryptionContext strips the FakeEncryptor header.
type FakeDecryptionContext struct{}

func (FakeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(fakeHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, fakeHeader) {
		return errors.New("not sealed by the fake encryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying report: %w", err)
	}
	return nil
}
