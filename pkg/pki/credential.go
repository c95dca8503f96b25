package pki

import (
	"crypto"
	"crypto/x509"
)

// Credential is key material registered in a Keystore. The set of
// implementations is closed: a SigningKey or a Certificate.
type Credential interface {
	// Ref returns the issuer-serial identity the credential is known by.
	Ref() IssuerSerialRef

	credential()
}

// SigningKey is a private-key credential. It signs outgoing messages and
// unwraps encrypted session keys addressed to the matching certificate.
// The certificate itself is optional; it is present when the key was loaded
// together with its certificate and is then also usable for verification.
type SigningKey struct {
	key  crypto.Signer
	cert *x509.Certificate
	ref  IssuerSerialRef
}

// NewSigningKey wraps a private key under an explicitly supplied reference.
// Use NewSigningKeyWithCertificate when the matching certificate is at hand.
func NewSigningKey(key crypto.Signer, ref IssuerSerialRef) *SigningKey {
	return &SigningKey{key: key, ref: ref}
}

// NewSigningKeyWithCertificate wraps a private key together with its
// certificate; the reference is derived from the certificate.
func NewSigningKeyWithCertificate(key crypto.Signer, cert *x509.Certificate) *SigningKey {
	return &SigningKey{
		key:  key,
		cert: cert,
		ref:  IssuerSerialFromCertificate(cert),
	}
}

// Signer returns the underlying private key.
func (k *SigningKey) Signer() crypto.Signer { return k.key }

// Certificate returns the certificate the key belongs to, or nil when the
// key was registered without one.
func (k *SigningKey) Certificate() *x509.Certificate { return k.cert }

// Ref returns the issuer-serial identity of the key's certificate.
func (k *SigningKey) Ref() IssuerSerialRef { return k.ref }

func (k *SigningKey) credential() {}

// Certificate is a public credential: another party's certificate, used to
// verify signatures it produced and to encrypt session keys for it.
type Certificate struct {
	cert *x509.Certificate
	ref  IssuerSerialRef
}

// NewCertificate wraps an X.509 certificate; the reference is derived from
// the certificate's issuer DN and serial number.
func NewCertificate(cert *x509.Certificate) *Certificate {
	return &Certificate{
		cert: cert,
		ref:  IssuerSerialFromCertificate(cert),
	}
}

// X509 returns the underlying certificate.
func (c *Certificate) X509() *x509.Certificate { return c.cert }

// PublicKey returns the certificate's public key.
func (c *Certificate) PublicKey() crypto.PublicKey { return c.cert.PublicKey }

// Ref returns the issuer-serial identity of the certificate.
func (c *Certificate) Ref() IssuerSerialRef { return c.ref }

func (c *Certificate) credential() {}
