// Package wss10 checks the wire profile against WS-Security 1.0 peers.
//
// Stacks like WSS4J, Metro, and suds agree on the 2004 OASIS namespaces
// and header layout but differ in prefixes and whitespace. These tests
// pin the exact URIs and structure our messages put on the wire, and
// check that headers produced with foreign prefix conventions still
// parse.
//
// Profile documents:
// https://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0.pdf
// https://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0.pdf
// https://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0.pdf
package wss10

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-wsse/pkg/envelope"
	"github.com/sirosfoundation/go-wsse/pkg/pki"
	"github.com/sirosfoundation/go-wsse/pkg/wsse"
	"github.com/sirosfoundation/go-wsse/pkg/xmlsec"
)

// WS-Security 1.0 wire profile URIs.
const (
	NSWSSE = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NSWSU  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"

	AlgorithmExcC14N     = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgorithmRSASHA1     = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgorithmSHA1        = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgorithmRSAOAEP     = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
	AlgorithmAES128CBC   = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	TypeEncryptedElem    = "http://www.w3.org/2001/04/xmlenc#Element"
	TypeEncryptedContent = "http://www.w3.org/2001/04/xmlenc#Content"
)

func TestProfileURIs(t *testing.T) {
	assert.Equal(t, NSWSSE, xmlsec.NSSecurityExt)
	assert.Equal(t, NSWSU, xmlsec.NSSecurityUtil)
	assert.Equal(t, AlgorithmExcC14N, xmlsec.AlgorithmExcC14N)
	assert.Equal(t, AlgorithmRSASHA1, xmlsec.AlgorithmRSASHA1)
	assert.Equal(t, AlgorithmSHA1, string(xmlsec.DigestSHA1))
	assert.Equal(t, AlgorithmRSAOAEP, string(xmlsec.KeyTransportRSAOAEP))
	assert.Equal(t, AlgorithmAES128CBC, string(xmlsec.BlockCipherAES128CBC))
	assert.Equal(t, TypeEncryptedElem, xmlsec.TypeElement)
	assert.Equal(t, TypeEncryptedContent, xmlsec.TypeContent)
}

func generateTestCredential(t *testing.T, cn string, serial int64) *pki.SigningKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn, Organization: []string{"SIROS Test"}, Country: []string{"SE"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return pki.NewSigningKeyWithCertificate(key, cert)
}

func securedWireDoc(t *testing.T) *etree.Document {
	t.Helper()
	sender := generateTestCredential(t, "sender", 3001)
	recipient := generateTestCredential(t, "recipient", 3002)

	key := wsse.NewKey(pki.NewCertificate(recipient.Certificate())).
		AddPart(wsse.SelectBody())
	key.Content = true

	policy := wsse.New()
	policy.AddToken(wsse.NewUsernameToken("alice", "secret"))
	policy.AddSignature(wsse.NewSignature(sender, pki.IssuerSerialRef{}).
		AddPart(wsse.SelectBody(), wsse.SelectTimestamp()))
	policy.AddKey(key)

	env, err := envelope.Parse([]byte(`<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope">
  <env:Body>
    <ord:Order xmlns:ord="urn:example:orders">
      <ord:OrderID>ORD-1</ord:OrderID>
    </ord:Order>
  </env:Body>
</env:Envelope>`))
	require.NoError(t, err)
	require.NoError(t, policy.ProcessOutgoing(env))

	wire, err := env.Bytes()
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(wire))
	return doc
}

// TestSecuredMessageLayout pins the structure a 2004-profile peer
// expects: header ordering, namespace bindings, and the key
// identification chain down to X509IssuerSerial.
func TestSecuredMessageLayout(t *testing.T) {
	doc := securedWireDoc(t)

	security := doc.FindElement("//*[local-name()='Security']")
	require.NotNil(t, security)
	assert.Equal(t, NSWSSE, security.SelectAttrValue("xmlns:wsse", ""))
	assert.Equal(t, NSWSU, security.SelectAttrValue("xmlns:wsu", ""))
	assert.Equal(t, "true", security.SelectAttrValue("mustUnderstand", ""))

	kids := security.ChildElements()
	require.Len(t, kids, 4)
	assert.Equal(t, "Timestamp", kids[0].Tag)
	assert.Equal(t, "UsernameToken", kids[1].Tag)
	assert.Equal(t, "EncryptedKey", kids[2].Tag)
	assert.Equal(t, "Signature", kids[3].Tag)

	created := kids[0].FindElement("./wsu:Created")
	require.NotNil(t, created)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, created.Text(),
		"timestamps carry no fractional seconds")

	signature := kids[3]
	c14n := signature.FindElement("./ds:SignedInfo/ds:CanonicalizationMethod")
	require.NotNil(t, c14n)
	assert.Equal(t, AlgorithmExcC14N, c14n.SelectAttrValue("Algorithm", ""))

	issuerSerial := signature.FindElement(".//ds:X509IssuerSerial")
	require.NotNil(t, issuerSerial)
	issuer := issuerSerial.FindElement("./ds:X509IssuerName")
	serial := issuerSerial.FindElement("./ds:X509SerialNumber")
	require.NotNil(t, issuer)
	require.NotNil(t, serial)
	assert.Contains(t, issuer.Text(), "CN=sender")
	assert.Equal(t, "3001", serial.Text())

	ek := kids[2]
	method := ek.FindElement("./xenc:EncryptionMethod")
	require.NotNil(t, method)
	assert.Equal(t, AlgorithmRSAOAEP, method.SelectAttrValue("Algorithm", ""))
	require.NotNil(t, ek.FindElement("./xenc:CipherData/xenc:CipherValue"))
	require.NotNil(t, ek.FindElement("./xenc:ReferenceList/xenc:DataReference"))

	body := doc.FindElement("//*[local-name()='Body']")
	require.NotNil(t, body, "content mode keeps the Body element in place")
	ed := body.FindElement("./xenc:EncryptedData")
	require.NotNil(t, ed)
	assert.Equal(t, TypeEncryptedContent, ed.SelectAttrValue("Type", ""))
	assert.Len(t, body.ChildElements(), 1, "the original content is gone from the wire")
}

// TestForeignPrefixHeader parses a header shaped the way suds and
// WSS4J emit theirs (SOAP-ENV and wsu prefixes on different elements,
// inclusive namespace declarations on the envelope).
func TestForeignPrefixHeader(t *testing.T) {
	const foreign = `<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/"
    xmlns:wsse="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
    xmlns:wsu="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd">
  <SOAP-ENV:Header>
    <wsse:Security mustUnderstand="true">
      <wsu:Timestamp>
        <wsu:Created>2025-03-14T09:26:53Z</wsu:Created>
        <wsu:Expires>2025-03-14T09:28:23Z</wsu:Expires>
      </wsu:Timestamp>
      <wsse:UsernameToken>
        <wsse:Username>alice</wsse:Username>
        <wsse:Password>secret</wsse:Password>
      </wsse:UsernameToken>
    </wsse:Security>
  </SOAP-ENV:Header>
  <SOAP-ENV:Body>
    <Ping/>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

	env, err := envelope.Parse([]byte(foreign))
	require.NoError(t, err)

	security := env.Security()
	require.NotNil(t, security, "foreign prefixes must not hide the header")

	timestamp := wsse.SelectTimestamp()(env)
	require.Len(t, timestamp, 1)
	assert.Equal(t, "Timestamp", timestamp[0].Tag)

	body := env.Body()
	require.NotNil(t, body)
	assert.NotNil(t, envelope.FindChild(body, "Ping"))
}

// TestTokenRenderingMatchesUsernameProfile checks the UsernameToken
// child ordering the profile fixes: Username, Password, Nonce, Created.
func TestTokenRenderingMatchesUsernameProfile(t *testing.T) {
	token := wsse.NewUsernameToken("alice", "secret")
	token.SetNonce("")
	token.SetCreated(time.Time{})

	kids := token.XML().ChildElements()
	require.Len(t, kids, 4)
	assert.Equal(t, []string{"Username", "Password", "Nonce", "Created"},
		[]string{kids[0].Tag, kids[1].Tag, kids[2].Tag, kids[3].Tag})
}
