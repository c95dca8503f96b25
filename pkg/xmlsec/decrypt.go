package xmlsec

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml/xmlenc"

	"github.com/sirosfoundation/go-wsse/pkg/envelope"
	"github.com/sirosfoundation/go-wsse/pkg/pki"
)

// Decrypt restores every part referenced by the security header's
// encrypted keys, resolving recipient keys from the keystore by issuer
// and serial. Consumed xenc:EncryptedKey elements are removed so a
// decrypted message reads like it was never encrypted. Messages without
// encrypted keys pass unchanged.
func (x *XMLSec) Decrypt(env *envelope.Envelope, store *pki.Keystore) error {
	root := env.Root()
	if root == nil {
		return envelope.ErrNoRoot
	}
	security := findSecurity(root)
	if security == nil {
		return nil
	}
	encryptedKeys := childrenNamed(security, "EncryptedKey")
	if len(encryptedKeys) == 0 {
		return nil
	}
	if store == nil {
		return fmt.Errorf("%w: no keystore to resolve recipient keys", ErrDecryption)
	}

	for _, ekElem := range encryptedKeys {
		if err := decryptForKey(root, security, ekElem, store); err != nil {
			return err
		}
	}
	return nil
}

func decryptForKey(root, security, ekElem *etree.Element, store *pki.Keystore) error {
	ref, err := issuerSerialIn(ekElem)
	if err != nil {
		return fmt.Errorf("%w: encrypted key carries %v", ErrDecryption, err)
	}
	cred, err := store.Lookup(ref)
	if err != nil {
		return err
	}
	key, ok := cred.(*pki.SigningKey)
	if !ok {
		return fmt.Errorf("%w: credential for %s has no private key", ErrDecryption, ref)
	}
	decrypter, ok := key.Signer().(crypto.Decrypter)
	if !ok {
		return fmt.Errorf("%w: private key for %s cannot decrypt", ErrDecryption, ref)
	}

	transport := KeyTransportAlgorithm(algorithmOf(ekElem))
	wrapped, err := cipherValueOf(ekElem)
	if err != nil {
		return err
	}
	cek, err := unwrapKey(decrypter, wrapped, transport)
	if err != nil {
		return err
	}

	uris := dataReferenceURIs(ekElem)
	if len(uris) == 0 {
		return fmt.Errorf("%w: encrypted key lists no data references", ErrDecryption)
	}
	for _, uri := range uris {
		id := strings.TrimPrefix(uri, "#")
		ed := findEncryptedData(root, id)
		if ed == nil {
			return fmt.Errorf("%w: EncryptedData %s not found", ErrDecryption, id)
		}
		if err := decryptData(ed, cek); err != nil {
			return err
		}
	}

	security.RemoveChild(ekElem)
	return nil
}

// decryptData restores the plaintext an EncryptedData element replaced.
// Element-typed data becomes an element again in the same position;
// content-typed data becomes the children of the enclosing element.
func decryptData(ed *etree.Element, cek []byte) error {
	blockCipher := BlockCipherAlgorithm(algorithmOf(ed))
	raw, err := cipherValueOf(ed)
	if err != nil {
		return err
	}
	plaintext, err := decryptBytes(cek, raw, blockCipher)
	if err != nil {
		return err
	}
	parent := ed.Parent()
	if parent == nil {
		return fmt.Errorf("%w: EncryptedData has no parent", ErrDecryption)
	}

	if ed.SelectAttrValue("Type", "") == TypeContent {
		doc := etree.NewDocument()
		if err := doc.ReadFromString("<c>" + string(plaintext) + "</c>"); err != nil {
			return fmt.Errorf("%w: decrypted content is not well formed: %v", ErrDecryption, err)
		}
		idx := ed.Index()
		parent.RemoveChild(ed)
		kids := append([]etree.Token(nil), doc.Root().Child...)
		for i, tok := range kids {
			parent.InsertChildAt(idx+i, tok)
		}
		return nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(plaintext); err != nil {
		return fmt.Errorf("%w: decrypted element is not well formed: %v", ErrDecryption, err)
	}
	restored := doc.Root()
	if restored == nil {
		return fmt.Errorf("%w: decrypted payload is empty", ErrDecryption)
	}
	parent.InsertChildAt(ed.Index(), restored)
	parent.RemoveChild(ed)
	return nil
}

func decryptBytes(cek, data []byte, blockCipher BlockCipherAlgorithm) ([]byte, error) {
	if blockKeySize(blockCipher) == 0 {
		return nil, fmt.Errorf("%w: block cipher %s", ErrUnsupportedAlgorithm, blockCipher)
	}
	if isGCM(blockCipher) {
		plaintext, err := xmlenc.AESGCMDecrypt(cek, data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
		}
		return plaintext, nil
	}
	return cbcDecrypt(cek, data)
}

func cbcDecrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data) < 2*aes.BlockSize || (len(data)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not block aligned", ErrDecryption)
	}

	iv, ct := data[:aes.BlockSize], data[aes.BlockSize:]
	plaintext := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ct)

	padLen := int(plaintext[len(plaintext)-1])
	if padLen < 1 || padLen > aes.BlockSize || padLen > len(plaintext) {
		return nil, fmt.Errorf("%w: invalid block padding", ErrDecryption)
	}
	return plaintext[:len(plaintext)-padLen], nil
}

// unwrapKey recovers the content-encryption key. Going through
// crypto.Decrypter keeps hardware-backed RSA keys usable here.
func unwrapKey(decrypter crypto.Decrypter, wrapped []byte, transport KeyTransportAlgorithm) ([]byte, error) {
	switch transport {
	case KeyTransportRSAOAEP:
		return decrypter.Decrypt(rand.Reader, wrapped, &rsa.OAEPOptions{Hash: crypto.SHA1})
	case KeyTransportRSAOAEP256:
		return decrypter.Decrypt(rand.Reader, wrapped, &rsa.OAEPOptions{Hash: crypto.SHA256})
	case KeyTransportRSA15:
		return decrypter.Decrypt(rand.Reader, wrapped, &rsa.PKCS1v15DecryptOptions{})
	}
	return nil, fmt.Errorf("%w: key transport %s", ErrUnsupportedAlgorithm, transport)
}

func algorithmOf(el *etree.Element) string {
	em := envelope.FindChild(el, "EncryptionMethod")
	if em == nil {
		return ""
	}
	return em.SelectAttrValue("Algorithm", "")
}

func cipherValueOf(el *etree.Element) ([]byte, error) {
	cd := envelope.FindChild(el, "CipherData")
	if cd == nil {
		return nil, fmt.Errorf("%w: missing CipherData", ErrDecryption)
	}
	cv := envelope.FindChild(cd, "CipherValue")
	if cv == nil {
		return nil, fmt.Errorf("%w: missing CipherValue", ErrDecryption)
	}
	// peers wrap base64 at arbitrary column widths
	text := strings.Join(strings.Fields(cv.Text()), "")
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: bad cipher value encoding: %v", ErrDecryption, err)
	}
	return raw, nil
}

func dataReferenceURIs(ekElem *etree.Element) []string {
	refList := envelope.FindChild(ekElem, "ReferenceList")
	if refList == nil {
		return nil
	}
	var uris []string
	for _, dataRef := range childrenNamed(refList, "DataReference") {
		if uri := dataRef.SelectAttrValue("URI", ""); uri != "" {
			uris = append(uris, uri)
		}
	}
	return uris
}

func findEncryptedData(root *etree.Element, id string) *etree.Element {
	for _, el := range root.FindElements("//*[local-name()='EncryptedData']") {
		if el.SelectAttrValue("Id", "") == id || el.SelectAttrValue("wsu:Id", "") == id {
			return el
		}
	}
	return nil
}
