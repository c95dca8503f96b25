//go:build pkcs11

package pki

import (
	"fmt"

	"github.com/ThalesGroup/crypto11"
)

// PKCS11Config locates a token and authenticates against it.
type PKCS11Config struct {
	// ModulePath is the path to the PKCS#11 library (.so/.dylib/.dll).
	ModulePath string
	// SlotID selects a slot by number (optional if TokenLabel is set).
	SlotID *int
	// TokenLabel selects a token by label (optional if SlotID is set).
	TokenLabel string
	// PIN is the user PIN.
	PIN string
}

// PKCS11Module is an open session against a PKCS#11 token. Signing keys
// obtained from it stay valid until the module is closed.
type PKCS11Module struct {
	ctx *crypto11.Context
}

// OpenPKCS11 opens a PKCS#11 module and logs in to the selected token.
func OpenPKCS11(cfg *PKCS11Config) (*PKCS11Module, error) {
	config := &crypto11.Config{
		Path: cfg.ModulePath,
		Pin:  cfg.PIN,
	}
	if cfg.SlotID != nil {
		config.SlotNumber = cfg.SlotID
	}
	if cfg.TokenLabel != "" {
		config.TokenLabel = cfg.TokenLabel
	}

	ctx, err := crypto11.Configure(config)
	if err != nil {
		return nil, fmt.Errorf("configuring PKCS#11: %w", err)
	}
	return &PKCS11Module{ctx: ctx}, nil
}

// SigningKey finds the key pair and certificate stored under label and
// returns them as a signing credential. The private key never leaves the
// token; signing operations are delegated to it.
func (m *PKCS11Module) SigningKey(label string) (*SigningKey, error) {
	key, err := m.ctx.FindKeyPair(nil, []byte(label))
	if err != nil {
		return nil, fmt.Errorf("finding key pair %q: %w", label, err)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: no key pair labeled %q", ErrCredentialNotFound, label)
	}

	cert, err := m.ctx.FindCertificate(nil, []byte(label), nil)
	if err != nil {
		return nil, fmt.Errorf("finding certificate %q: %w", label, err)
	}
	if cert == nil {
		return nil, fmt.Errorf("%w: no certificate labeled %q", ErrCredentialNotFound, label)
	}

	return NewSigningKeyWithCertificate(key, cert), nil
}

// Close releases the PKCS#11 session.
func (m *PKCS11Module) Close() error {
	return m.ctx.Close()
}
