package xmlsec

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wsse/pkg/envelope"
	"github.com/sirosfoundation/go-wsse/pkg/pki"
)

var (
	// ErrNoSOAPHeader indicates a message without a SOAP Header to host
	// the security header block.
	ErrNoSOAPHeader = errors.New("envelope has no SOAP Header")

	// ErrNoParts indicates a signing or encryption call with nothing to
	// operate on.
	ErrNoParts = errors.New("no message parts selected")

	// ErrUnsupportedAlgorithm indicates an algorithm URI outside the
	// supported set.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrNoKeyIdentifier indicates a signature or encrypted key without
	// an X509IssuerSerial identifier to resolve against the keystore.
	ErrNoKeyIdentifier = errors.New("no issuer-serial key identifier")

	// ErrVerification indicates reference or signature validation
	// failure on an incoming message.
	ErrVerification = errors.New("signature verification failed")

	// ErrDecryption indicates that encrypted content could not be
	// recovered.
	ErrDecryption = errors.New("decryption failed")
)

// Provider performs the XML security primitives on SOAP envelopes. The
// policy layer decides what to sign or encrypt and where the results go;
// the provider produces and consumes the ds:Signature, xenc:EncryptedKey
// and xenc:EncryptedData elements.
//
// Sign and Encrypt return the produced header element without attaching
// it, leaving placement to the caller. Verify and Decrypt are no-ops on
// messages that carry no signatures or encrypted keys.
type Provider interface {
	Sign(env *envelope.Envelope, key *pki.SigningKey, ref pki.IssuerSerialRef, parts []*etree.Element, digest DigestAlgorithm) (*etree.Element, error)
	Verify(env *envelope.Envelope, store *pki.Keystore) error
	Encrypt(env *envelope.Envelope, cert *pki.Certificate, parts []*etree.Element, transport KeyTransportAlgorithm, cipher BlockCipherAlgorithm, content bool) (*etree.Element, error)
	Decrypt(env *envelope.Envelope, store *pki.Keystore) error
}

// XMLSec is the default Provider, built on the signedxml library for
// signatures and the xmlenc package plus the standard crypto ciphers for
// encryption.
type XMLSec struct {
	validator pki.CertificateValidator
}

var _ Provider = (*XMLSec)(nil)

// Option configures an XMLSec provider.
type Option func(*XMLSec)

// WithCertificateValidator validates signer certificates resolved from
// the keystore before their signatures are checked.
func WithCertificateValidator(v pki.CertificateValidator) Option {
	return func(x *XMLSec) {
		x.validator = v
	}
}

// New returns an XMLSec provider.
func New(opts ...Option) *XMLSec {
	x := &XMLSec{}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// generateID returns a random hex identifier for security elements.
func generateID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// ensureSecurityNamespaces declares the wsse and wsu prefixes on the
// envelope root so ids and token references resolve everywhere in the
// message.
func ensureSecurityNamespaces(root *etree.Element) {
	if root.SelectAttr("xmlns:wsse") == nil {
		root.CreateAttr("xmlns:wsse", NSSecurityExt)
	}
	if root.SelectAttr("xmlns:wsu") == nil {
		root.CreateAttr("xmlns:wsu", NSSecurityUtil)
	}
}

// getOrCreateID returns the element's wsu:Id, minting one when absent.
// An existing plain Id (EncryptedData carries one) is reused so a single
// identifier names the element everywhere.
func getOrCreateID(el *etree.Element, prefix string) string {
	if attr := el.SelectAttr("wsu:Id"); attr != nil {
		return attr.Value
	}
	id := el.SelectAttrValue("Id", "")
	if id == "" {
		id = prefix + generateID()
	}
	el.CreateAttr("wsu:Id", id)
	return id
}

// findSecurity locates the wsse:Security block under the given root, or
// nil when the message has none.
func findSecurity(root *etree.Element) *etree.Element {
	header := envelope.FindChild(root, "Header")
	if header == nil {
		return nil
	}
	return envelope.FindChild(header, "Security")
}

// childrenNamed returns the direct children with the given local name,
// whatever their prefix.
func childrenNamed(parent *etree.Element, name string) []*etree.Element {
	var out []*etree.Element
	for _, child := range parent.ChildElements() {
		if child.Tag == name {
			out = append(out, child)
		}
	}
	return out
}

// issuerSerialIn extracts the X509IssuerSerial identifier carried inside
// a signature's or encrypted key's KeyInfo.
func issuerSerialIn(el *etree.Element) (pki.IssuerSerialRef, error) {
	is := el.FindElement(".//X509IssuerSerial")
	if is == nil {
		is = el.FindElement(".//*[local-name()='X509IssuerSerial']")
	}
	if is == nil {
		return pki.IssuerSerialRef{}, ErrNoKeyIdentifier
	}

	name := envelope.FindChild(is, "X509IssuerName")
	serial := envelope.FindChild(is, "X509SerialNumber")
	if name == nil || serial == nil {
		return pki.IssuerSerialRef{}, ErrNoKeyIdentifier
	}

	issuer := strings.TrimSpace(name.Text())
	number := strings.TrimSpace(serial.Text())
	if issuer == "" || number == "" {
		return pki.IssuerSerialRef{}, ErrNoKeyIdentifier
	}
	return pki.NewIssuerSerialRef(issuer, number), nil
}
