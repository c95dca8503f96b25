package pki

import (
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCertificateExpired is returned when a certificate has expired.
	ErrCertificateExpired = errors.New("certificate has expired")
	// ErrCertificateNotYetValid is returned when a certificate is not yet valid.
	ErrCertificateNotYetValid = errors.New("certificate is not yet valid")
	// ErrCertificateUntrusted is returned when a certificate does not chain
	// to a trusted root.
	ErrCertificateUntrusted = errors.New("certificate is not trusted")
	// ErrCertificateRevoked is returned when a certificate has been revoked.
	ErrCertificateRevoked = errors.New("certificate has been revoked")
	// ErrInvalidCertificate is returned for other validation failures.
	ErrInvalidCertificate = errors.New("certificate validation failed")
)

// CertificateValidator decides whether a certificate is acceptable for a
// given purpose. Implementations range from traditional PKI chain
// validation to pinning or external trust registries.
type CertificateValidator interface {
	// ValidateCertificate validates cert, using intermediates to complete
	// the chain. Purpose hints at the intended usage ("signing",
	// "encryption") and may be empty.
	ValidateCertificate(cert *x509.Certificate, intermediates []*x509.Certificate, purpose string) error

	// ValidateCertificateChain validates chain[0] using the rest of the
	// chain as intermediates.
	ValidateCertificateChain(chain []*x509.Certificate, purpose string) error
}

// ChainValidator implements traditional PKI path validation against a set
// of trusted roots.
type ChainValidator struct {
	roots *x509.CertPool
}

// NewChainValidator creates a validator trusting the given roots.
func NewChainValidator(roots *x509.CertPool) *ChainValidator {
	return &ChainValidator{roots: roots}
}

// ValidateCertificate checks the validity window and verifies the chain to
// a trusted root.
func (v *ChainValidator) ValidateCertificate(cert *x509.Certificate, intermediates []*x509.Certificate, purpose string) error {
	now := time.Now()
	if now.Before(cert.NotBefore) {
		return ErrCertificateNotYetValid
	}
	if now.After(cert.NotAfter) {
		return ErrCertificateExpired
	}

	opts := x509.VerifyOptions{
		Roots:         v.roots,
		CurrentTime:   now,
		Intermediates: x509.NewCertPool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	for _, intermediate := range intermediates {
		opts.Intermediates.AddCert(intermediate)
	}

	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("%w: %v", ErrCertificateUntrusted, err)
	}
	return nil
}

// ValidateCertificateChain validates a complete chain.
func (v *ChainValidator) ValidateCertificateChain(chain []*x509.Certificate, purpose string) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty chain", ErrInvalidCertificate)
	}
	return v.ValidateCertificate(chain[0], chain[1:], purpose)
}
