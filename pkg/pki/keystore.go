package pki

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
)

// Common errors
var (
	// ErrCredentialNotFound is returned by Lookup when no credential is
	// registered under the requested reference.
	ErrCredentialNotFound = errors.New("credential not found in keystore")

	// ErrMalformedCredential is returned by the loaders when PEM or
	// certificate data cannot be parsed.
	ErrMalformedCredential = errors.New("malformed credential")
)

// Keystore resolves credentials by issuer-serial identity.
//
// The intended discipline is configure-then-freeze: populate the store
// while building a policy, then share it read-only across goroutines
// processing messages. Reads and late registrations are nevertheless
// safe to interleave; the store is internally synchronized.
type Keystore struct {
	mu    sync.RWMutex
	creds map[IssuerSerialRef]Credential
}

// NewKeystore returns an empty keystore.
func NewKeystore() *Keystore {
	return &Keystore{
		creds: make(map[IssuerSerialRef]Credential),
	}
}

// Register stores a credential under the given reference. A credential
// already registered under the same reference is replaced.
func (s *Keystore) Register(ref IssuerSerialRef, cred Credential) {
	s.mu.Lock()
	s.creds[ref] = cred
	s.mu.Unlock()
}

// RegisterCertificate derives the certificate's issuer-serial reference,
// registers it, and returns the wrapped credential.
func (s *Keystore) RegisterCertificate(cert *x509.Certificate) *Certificate {
	cred := NewCertificate(cert)
	s.Register(cred.Ref(), cred)
	return cred
}

// RegisterSigningKey registers a private key together with its certificate;
// the reference is derived from the certificate.
func (s *Keystore) RegisterSigningKey(key crypto.Signer, cert *x509.Certificate) *SigningKey {
	cred := NewSigningKeyWithCertificate(key, cert)
	s.Register(cred.Ref(), cred)
	return cred
}

// Lookup returns the credential registered under ref, or
// ErrCredentialNotFound when there is none.
func (s *Keystore) Lookup(ref IssuerSerialRef) (Credential, error) {
	s.mu.RLock()
	cred, ok := s.creds[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, ref)
	}
	return cred, nil
}

// CertificateFor resolves the X.509 certificate behind a credential: the
// certificate itself, or the certificate a signing key was loaded with.
// It fails when a signing key was registered without its certificate.
func CertificateFor(cred Credential) (*x509.Certificate, error) {
	switch c := cred.(type) {
	case *Certificate:
		return c.X509(), nil
	case *SigningKey:
		if cert := c.Certificate(); cert != nil {
			return cert, nil
		}
		return nil, fmt.Errorf("signing key %s has no certificate", c.Ref())
	default:
		return nil, fmt.Errorf("unsupported credential type %T", cred)
	}
}
