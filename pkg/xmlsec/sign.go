package xmlsec

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml"

	"github.com/sirosfoundation/go-wsse/pkg/envelope"
	"github.com/sirosfoundation/go-wsse/pkg/pki"
)

// Sign produces a ds:Signature over the selected parts, identifying the
// signing certificate by issuer and serial. Each part gets a wsu:Id when
// it has none. The signature is computed on a working copy of the
// envelope so partially built templates never leak into the message; the
// completed element is returned detached for the caller to place.
func (x *XMLSec) Sign(env *envelope.Envelope, key *pki.SigningKey, ref pki.IssuerSerialRef, parts []*etree.Element, digest DigestAlgorithm) (*etree.Element, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	if len(parts) == 0 {
		return nil, ErrNoParts
	}
	if digest == "" {
		digest = DigestSHA1
	}

	root := env.Root()
	if root == nil {
		return nil, envelope.ErrNoRoot
	}
	ensureSecurityNamespaces(root)

	sigAlgorithm, err := signatureAlgorithmFor(key.Signer().Public(), digest)
	if err != nil {
		return nil, err
	}

	// Ids go on the live envelope so the copy below carries them too and
	// the reference digests stay valid after the signature moves back.
	ids := make([]string, len(parts))
	for i, part := range parts {
		ids[i] = getOrCreateID(part, "id-")
	}

	workDoc := env.Document().Copy()
	workRoot := workDoc.Root()

	header := envelope.FindChild(workRoot, "Header")
	if header == nil {
		return nil, ErrNoSOAPHeader
	}
	security := envelope.FindChild(header, "Security")
	if security == nil {
		security = header.CreateElement("wsse:Security")
	}

	// signedxml signs the first Signature element it finds, so clear out
	// any already placed ones and let the new template stand alone.
	for _, old := range childrenNamed(security, "Signature") {
		security.RemoveChild(old)
	}

	sigID := "SIG-" + generateID()
	buildSignatureTemplate(security, sigID, sigAlgorithm, ref, ids, digest)

	xmlStr, err := workDoc.WriteToString()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize envelope: %w", err)
	}

	signer, err := signedxml.NewSigner(xmlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}
	signer.SetReferenceIDAttribute("wsu:Id")

	signedXML, err := signer.Sign(key.Signer())
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	signedDoc := etree.NewDocument()
	if err := signedDoc.ReadFromString(signedXML); err != nil {
		return nil, fmt.Errorf("failed to parse signed envelope: %w", err)
	}

	completed := findSignatureByID(signedDoc.Root(), sigID)
	if completed == nil {
		return nil, fmt.Errorf("signed envelope is missing signature %s", sigID)
	}
	if parent := completed.Parent(); parent != nil {
		parent.RemoveChild(completed)
	}
	return completed, nil
}

// buildSignatureTemplate appends a signature template to the security
// element. Digest and signature values hold placeholders for signedxml
// to fill in.
func buildSignatureTemplate(security *etree.Element, sigID, sigAlgorithm string, ref pki.IssuerSerialRef, ids []string, digest DigestAlgorithm) {
	sig := security.CreateElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", NSXMLDSig)
	sig.CreateAttr("Id", sigID)

	signedInfo := sig.CreateElement("ds:SignedInfo")

	c14nMethod := signedInfo.CreateElement("ds:CanonicalizationMethod")
	c14nMethod.CreateAttr("Algorithm", AlgorithmExcC14N)

	sigMethod := signedInfo.CreateElement("ds:SignatureMethod")
	sigMethod.CreateAttr("Algorithm", sigAlgorithm)

	for _, id := range ids {
		addReference(signedInfo, id, digest)
	}

	sigValue := sig.CreateElement("ds:SignatureValue")
	sigValue.SetText("placeholder")

	keyInfo := sig.CreateElement("ds:KeyInfo")
	secTokenRef := keyInfo.CreateElement("wsse:SecurityTokenReference")
	x509Data := secTokenRef.CreateElement("ds:X509Data")
	issuerSerial := x509Data.CreateElement("ds:X509IssuerSerial")
	issuerName := issuerSerial.CreateElement("ds:X509IssuerName")
	issuerName.SetText(ref.Issuer())
	serialNumber := issuerSerial.CreateElement("ds:X509SerialNumber")
	serialNumber.SetText(ref.Serial())
}

func addReference(signedInfo *etree.Element, id string, digest DigestAlgorithm) {
	ref := signedInfo.CreateElement("ds:Reference")
	ref.CreateAttr("URI", "#"+id)

	transforms := ref.CreateElement("ds:Transforms")
	transform := transforms.CreateElement("ds:Transform")
	transform.CreateAttr("Algorithm", AlgorithmExcC14N)

	digestMethod := ref.CreateElement("ds:DigestMethod")
	digestMethod.CreateAttr("Algorithm", string(digest))

	// signedxml computes the value during Sign
	digestValue := ref.CreateElement("ds:DigestValue")
	digestValue.SetText("placeholder")
}

func findSignatureByID(root *etree.Element, id string) *etree.Element {
	if root == nil {
		return nil
	}
	for _, el := range root.FindElements("//*[local-name()='Signature']") {
		if el.SelectAttrValue("Id", "") == id {
			return el
		}
	}
	return nil
}
