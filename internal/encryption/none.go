package encryption

import (
	"errors"
	"io"

	"sl-go/internal/sl"
)

// ErrDisabled is returned when a key operation is attempted with encryption
// type "none".
var ErrDisabled = errors.New("encryption is disabled")

// NoneEncryptor leaves reports in plaintext. It is never configured, so the
// service archives reports unencrypted.
type NoneEncryptor struct{}

var _ sl.Encryptor = NoneEncryptor{}

func (NoneEncryptor) Setup(string) error { return ErrDisabled }

func (NoneEncryptor) Encrypt(io.Reader, io.Writer) error { return ErrDisabled }

func (NoneEncryptor) Unlock(string) (sl.DecryptionContext, error) { return nil, ErrDisabled }

func (NoneEncryptor) IsConfigured() bool { return false }
