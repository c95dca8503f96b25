package wsse

import (
	"github.com/sirosfoundation/go-wsse/pkg/pki"
	"github.com/sirosfoundation/go-wsse/pkg/xmlsec"
)

// Key declares one encryption operation: the recipient certificate, the
// parts to protect, and the algorithm choices. With Content set, each
// selected element keeps its tags and only its content is encrypted.
// Configure it once; processing does not mutate it.
type Key struct {
	Cert         *pki.Certificate
	Parts        []Selector
	KeyTransport xmlsec.KeyTransportAlgorithm
	BlockCipher  xmlsec.BlockCipherAlgorithm
	Content      bool
}

// NewKey declares an encryption operation for the recipient, with
// RSA-OAEP key transport and AES-128-CBC content encryption.
func NewKey(cert *pki.Certificate) *Key {
	return &Key{
		Cert:         cert,
		KeyTransport: xmlsec.KeyTransportRSAOAEP,
		BlockCipher:  xmlsec.BlockCipherAES128CBC,
	}
}

// AddPart appends selectors for parts this key protects.
func (k *Key) AddPart(selectors ...Selector) *Key {
	k.Parts = append(k.Parts, selectors...)
	return k
}
