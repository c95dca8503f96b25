package xmlsec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml/xmlenc"

	"github.com/sirosfoundation/go-wsse/pkg/envelope"
	"github.com/sirosfoundation/go-wsse/pkg/pki"
)

// Encrypt replaces the selected parts with xenc:EncryptedData elements
// under a fresh content-encryption key and returns the xenc:EncryptedKey
// that wraps the key for the recipient. With content set, only each
// part's children are replaced and the element itself stays visible.
// The returned element is detached; placement is the caller's job.
func (x *XMLSec) Encrypt(env *envelope.Envelope, cert *pki.Certificate, parts []*etree.Element, transport KeyTransportAlgorithm, blockCipher BlockCipherAlgorithm, content bool) (*etree.Element, error) {
	if cert == nil {
		return nil, fmt.Errorf("recipient certificate is required")
	}
	if len(parts) == 0 {
		return nil, ErrNoParts
	}
	if transport == "" {
		transport = KeyTransportRSAOAEP
	}
	if blockCipher == "" {
		blockCipher = BlockCipherAES128CBC
	}

	root := env.Root()
	if root == nil {
		return nil, envelope.ErrNoRoot
	}
	ensureSecurityNamespaces(root)

	rsaPub, ok := cert.PublicKey().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("recipient certificate does not carry an RSA public key")
	}

	keySize := blockKeySize(blockCipher)
	if keySize == 0 {
		return nil, fmt.Errorf("%w: block cipher %s", ErrUnsupportedAlgorithm, blockCipher)
	}
	cek := make([]byte, keySize)
	if _, err := rand.Read(cek); err != nil {
		return nil, fmt.Errorf("failed to generate content encryption key: %w", err)
	}

	dataRefs := make([]string, 0, len(parts))
	for _, part := range parts {
		id := "ED-" + generateID()

		var plaintext []byte
		var err error
		if content {
			plaintext, err = serializeChildren(part)
		} else {
			plaintext, err = serializeElement(part)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to serialize %s: %w", part.Tag, err)
		}

		ciphertext, err := encryptBytes(cek, plaintext, blockCipher)
		if err != nil {
			return nil, err
		}

		ed := buildEncryptedData(id, blockCipher, ciphertext, content)
		if content {
			replaceChildren(part, ed)
		} else {
			parent := part.Parent()
			if parent == nil {
				return nil, fmt.Errorf("element %s has no parent to hold its ciphertext", part.Tag)
			}
			parent.InsertChildAt(part.Index(), ed)
			parent.RemoveChild(part)
		}
		dataRefs = append(dataRefs, "#"+id)
	}

	wrapped, err := wrapKey(rsaPub, cek, transport)
	if err != nil {
		return nil, err
	}
	return buildEncryptedKey("EK-"+generateID(), transport, cert.Ref(), wrapped, dataRefs), nil
}

// encryptBytes protects plaintext under the content-encryption key. GCM
// modes go through xmlenc, which prepends the nonce; CBC output is the
// IV followed by the ciphertext.
func encryptBytes(cek, plaintext []byte, blockCipher BlockCipherAlgorithm) ([]byte, error) {
	if isGCM(blockCipher) {
		ciphertext, err := xmlenc.AESGCMEncrypt(cek, plaintext, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt content: %w", err)
		}
		return ciphertext, nil
	}
	return cbcEncrypt(cek, plaintext)
}

func cbcEncrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	// XML Encryption block padding: the final byte holds the pad length
	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+padLen)
	copy(padded, plaintext)
	padded[len(padded)-1] = byte(padLen)

	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// wrapKey encrypts the content-encryption key for the recipient.
func wrapKey(pub *rsa.PublicKey, cek []byte, transport KeyTransportAlgorithm) ([]byte, error) {
	switch transport {
	case KeyTransportRSAOAEP:
		return rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, cek, nil)
	case KeyTransportRSAOAEP256:
		return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, cek, nil)
	case KeyTransportRSA15:
		return rsa.EncryptPKCS1v15(rand.Reader, pub, cek)
	}
	return nil, fmt.Errorf("%w: key transport %s", ErrUnsupportedAlgorithm, transport)
}

// serializeElement renders an element subtree on its own.
func serializeElement(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	return doc.WriteToBytes()
}

// serializeChildren renders an element's child nodes, text included,
// without the element's own tags. A throwaway wrapper keeps the
// fragment parseable while it is serialized.
func serializeChildren(el *etree.Element) ([]byte, error) {
	wrapper := etree.NewElement("c")
	copied := el.Copy()
	kids := append([]etree.Token(nil), copied.Child...)
	for _, tok := range kids {
		wrapper.AddChild(tok)
	}

	doc := etree.NewDocument()
	doc.SetRoot(wrapper)
	s, err := doc.WriteToString()
	if err != nil {
		return nil, err
	}
	s = strings.TrimPrefix(s, "<c>")
	s = strings.TrimSuffix(s, "</c>")
	if s == "<c/>" {
		s = ""
	}
	return []byte(s), nil
}

func replaceChildren(el *etree.Element, repl *etree.Element) {
	kids := append([]etree.Token(nil), el.Child...)
	for _, tok := range kids {
		el.RemoveChild(tok)
	}
	el.AddChild(repl)
}

func buildEncryptedData(id string, blockCipher BlockCipherAlgorithm, ciphertext []byte, content bool) *etree.Element {
	ed := etree.NewElement("xenc:EncryptedData")
	ed.CreateAttr("xmlns:xenc", NSXMLEnc)
	ed.CreateAttr("Id", id)
	if content {
		ed.CreateAttr("Type", TypeContent)
	} else {
		ed.CreateAttr("Type", TypeElement)
	}

	encMethod := ed.CreateElement("xenc:EncryptionMethod")
	encMethod.CreateAttr("Algorithm", string(blockCipher))

	cipherData := ed.CreateElement("xenc:CipherData")
	cipherValue := cipherData.CreateElement("xenc:CipherValue")
	cipherValue.SetText(base64.StdEncoding.EncodeToString(ciphertext))
	return ed
}

func buildEncryptedKey(id string, transport KeyTransportAlgorithm, ref pki.IssuerSerialRef, wrapped []byte, dataRefs []string) *etree.Element {
	ek := etree.NewElement("xenc:EncryptedKey")
	ek.CreateAttr("xmlns:xenc", NSXMLEnc)
	ek.CreateAttr("Id", id)

	encMethod := ek.CreateElement("xenc:EncryptionMethod")
	encMethod.CreateAttr("Algorithm", string(transport))
	switch transport {
	case KeyTransportRSAOAEP:
		dm := encMethod.CreateElement("ds:DigestMethod")
		dm.CreateAttr("xmlns:ds", NSXMLDSig)
		dm.CreateAttr("Algorithm", string(DigestSHA1))
	case KeyTransportRSAOAEP256:
		dm := encMethod.CreateElement("ds:DigestMethod")
		dm.CreateAttr("xmlns:ds", NSXMLDSig)
		dm.CreateAttr("Algorithm", string(DigestSHA256))
	}

	keyInfo := ek.CreateElement("ds:KeyInfo")
	keyInfo.CreateAttr("xmlns:ds", NSXMLDSig)
	secTokenRef := keyInfo.CreateElement("wsse:SecurityTokenReference")
	x509Data := secTokenRef.CreateElement("ds:X509Data")
	issuerSerial := x509Data.CreateElement("ds:X509IssuerSerial")
	issuerName := issuerSerial.CreateElement("ds:X509IssuerName")
	issuerName.SetText(ref.Issuer())
	serialNumber := issuerSerial.CreateElement("ds:X509SerialNumber")
	serialNumber.SetText(ref.Serial())

	cipherData := ek.CreateElement("xenc:CipherData")
	cipherValue := cipherData.CreateElement("xenc:CipherValue")
	cipherValue.SetText(base64.StdEncoding.EncodeToString(wrapped))

	refList := ek.CreateElement("xenc:ReferenceList")
	for _, uri := range dataRefs {
		dataRef := refList.CreateElement("xenc:DataReference")
		dataRef.CreateAttr("URI", uri)
	}
	return ek
}
