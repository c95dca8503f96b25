//go:build !pkcs11

package pki

import "errors"

// ErrPKCS11NotSupported is returned when PKCS#11 operations are attempted
// but the binary was not compiled with PKCS#11 support.
var ErrPKCS11NotSupported = errors.New("PKCS#11 support not compiled in (build with -tags pkcs11)")

// PKCS11Config locates a token and authenticates against it.
type PKCS11Config struct {
	ModulePath string
	SlotID     *int
	TokenLabel string
	PIN        string
}

// PKCS11Module is a stub that reports PKCS#11 as unavailable.
type PKCS11Module struct{}

// OpenPKCS11 returns an error because PKCS#11 is not compiled in.
func OpenPKCS11(cfg *PKCS11Config) (*PKCS11Module, error) {
	return nil, ErrPKCS11NotSupported
}

// SigningKey returns an error because PKCS#11 is not compiled in.
func (m *PKCS11Module) SigningKey(label string) (*SigningKey, error) {
	return nil, ErrPKCS11NotSupported
}

// Close is a no-op.
func (m *PKCS11Module) Close() error {
	return nil
}
