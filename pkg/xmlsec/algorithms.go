package xmlsec

import (
	"crypto"
	"crypto/ecdsa"
	"fmt"

	"github.com/leifj/signedxml/xmlenc"
)

// XML security namespaces.
const (
	NSSecurityExt  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NSSecurityUtil = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	NSXMLDSig      = "http://www.w3.org/2000/09/xmldsig#"
	NSXMLEnc       = "http://www.w3.org/2001/04/xmlenc#"
	NSXMLEnc11     = "http://www.w3.org/2009/xmlenc11#"
)

// Canonicalization and signature method URIs.
const (
	AlgorithmExcC14N = "http://www.w3.org/2001/10/xml-exc-c14n#"

	AlgorithmRSASHA1     = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgorithmRSASHA256   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgorithmRSASHA384   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha384"
	AlgorithmRSASHA512   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"
	AlgorithmECDSASHA1   = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha1"
	AlgorithmECDSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"
	AlgorithmECDSASHA384 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha384"
	AlgorithmECDSASHA512 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha512"
)

// EncryptedData Type URIs.
const (
	TypeElement = "http://www.w3.org/2001/04/xmlenc#Element"
	TypeContent = "http://www.w3.org/2001/04/xmlenc#Content"
)

// DigestAlgorithm identifies the digest method used for signature
// references.
type DigestAlgorithm string

// Supported reference digests. SHA-1 is the WS-Security 1.0 default and
// is kept for interoperability with legacy stacks.
const (
	DigestSHA1   DigestAlgorithm = "http://www.w3.org/2000/09/xmldsig#sha1"
	DigestSHA256 DigestAlgorithm = "http://www.w3.org/2001/04/xmlenc#sha256"
	DigestSHA384 DigestAlgorithm = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	DigestSHA512 DigestAlgorithm = "http://www.w3.org/2001/04/xmlenc#sha512"
)

// KeyTransportAlgorithm identifies how the content-encryption key is
// wrapped for the recipient.
type KeyTransportAlgorithm string

// Supported key transports.
const (
	KeyTransportRSAOAEP    KeyTransportAlgorithm = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
	KeyTransportRSAOAEP256 KeyTransportAlgorithm = "http://www.w3.org/2009/xmlenc11#rsa-oaep"
	KeyTransportRSA15      KeyTransportAlgorithm = "http://www.w3.org/2001/04/xmlenc#rsa-1_5"
)

// BlockCipherAlgorithm identifies the symmetric cipher protecting
// message content.
type BlockCipherAlgorithm string

// Supported block ciphers. The CBC modes match what most WS-Security
// peers emit; the GCM modes are the XML Encryption 1.1 replacements.
const (
	BlockCipherAES128CBC BlockCipherAlgorithm = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	BlockCipherAES192CBC BlockCipherAlgorithm = "http://www.w3.org/2001/04/xmlenc#aes192-cbc"
	BlockCipherAES256CBC BlockCipherAlgorithm = "http://www.w3.org/2001/04/xmlenc#aes256-cbc"
	BlockCipherAES128GCM BlockCipherAlgorithm = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	BlockCipherAES256GCM BlockCipherAlgorithm = "http://www.w3.org/2009/xmlenc11#aes256-gcm"
)

// signatureAlgorithmFor maps a key type and reference digest to the
// matching SignatureMethod URI.
func signatureAlgorithmFor(pub crypto.PublicKey, digest DigestAlgorithm) (string, error) {
	if _, ok := pub.(*ecdsa.PublicKey); ok {
		switch digest {
		case DigestSHA1:
			return AlgorithmECDSASHA1, nil
		case DigestSHA256:
			return AlgorithmECDSASHA256, nil
		case DigestSHA384:
			return AlgorithmECDSASHA384, nil
		case DigestSHA512:
			return AlgorithmECDSASHA512, nil
		}
		return "", fmt.Errorf("%w: no ECDSA signature method for digest %s", ErrUnsupportedAlgorithm, digest)
	}

	switch digest {
	case DigestSHA1:
		return AlgorithmRSASHA1, nil
	case DigestSHA256:
		return AlgorithmRSASHA256, nil
	case DigestSHA384:
		return AlgorithmRSASHA384, nil
	case DigestSHA512:
		return AlgorithmRSASHA512, nil
	}
	return "", fmt.Errorf("%w: no RSA signature method for digest %s", ErrUnsupportedAlgorithm, digest)
}

// blockKeySize returns the content-encryption key length in bytes for a
// block cipher, or 0 when the cipher is not supported.
func blockKeySize(cipher BlockCipherAlgorithm) int {
	switch cipher {
	case BlockCipherAES128CBC:
		return 16
	case BlockCipherAES192CBC:
		return 24
	case BlockCipherAES256CBC:
		return 32
	case BlockCipherAES128GCM, BlockCipherAES256GCM:
		return xmlenc.KeySize(string(cipher))
	}
	return 0
}

// isGCM reports whether the cipher is an AEAD mode handled by the
// xmlenc package rather than the CBC code path.
func isGCM(cipher BlockCipherAlgorithm) bool {
	return cipher == BlockCipherAES128GCM || cipher == BlockCipherAES256GCM
}
