package wsse

import (
	"github.com/sirosfoundation/go-wsse/pkg/pki"
	"github.com/sirosfoundation/go-wsse/pkg/xmlsec"
)

// Signature declares one signing operation: which key signs, how the
// signer is identified, which parts are covered, and the reference
// digest. Configure it once; processing does not mutate it.
type Signature struct {
	Key    *pki.SigningKey
	Ref    pki.IssuerSerialRef
	Parts  []Selector
	Digest xmlsec.DigestAlgorithm
}

// NewSignature declares a signing operation under the given issuer-serial
// identity. A zero ref falls back to the identity of the key's own
// certificate.
func NewSignature(key *pki.SigningKey, ref pki.IssuerSerialRef) *Signature {
	if ref.IsZero() && key != nil {
		ref = key.Ref()
	}
	return &Signature{
		Key:    key,
		Ref:    ref,
		Digest: xmlsec.DigestSHA1,
	}
}

// AddPart appends selectors for parts this signature covers.
func (s *Signature) AddPart(selectors ...Selector) *Signature {
	s.Parts = append(s.Parts, selectors...)
	return s
}
