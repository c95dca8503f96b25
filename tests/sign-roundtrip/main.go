package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/sirosfoundation/go-wsse/pkg/envelope"
	"github.com/sirosfoundation/go-wsse/pkg/pki"
	"github.com/sirosfoundation/go-wsse/pkg/wsse"
)

// Standalone program that produces a signed and encrypted WS-Security
// message plus the credentials needed to check it, for comparison with
// other stacks (WSS4J, suds). The verify-self program consumes its
// output.
func main() {
	outDir := "/tmp/wsse-fixtures"
	if len(os.Args) > 1 {
		outDir = os.Args[1]
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	sender, senderKey, err := generateCredential("wsse-sender", 1001)
	if err != nil {
		log.Fatalf("Failed to generate sender credential: %v", err)
	}
	recipient, recipientKey, err := generateCredential("wsse-recipient", 1002)
	if err != nil {
		log.Fatalf("Failed to generate recipient credential: %v", err)
	}

	policy := wsse.New()
	policy.AddToken(wsse.NewUsernameToken("alice", "secret"))
	policy.AddSignature(wsse.NewSignature(pki.NewSigningKeyWithCertificate(senderKey, sender), pki.IssuerSerialRef{}).
		AddPart(wsse.SelectBody(), wsse.SelectTimestamp()))

	// Body content is encrypted in place so the message keeps its SOAP
	// shape on the wire, the layout WSS4J and suds peers expect.
	encKey := wsse.NewKey(pki.NewCertificate(recipient)).AddPart(wsse.SelectBody())
	encKey.Content = true
	policy.AddKey(encKey)

	env, err := envelope.Parse([]byte(`<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope">
  <env:Body>
    <ord:Order xmlns:ord="urn:example:orders">
      <ord:OrderID>ORD-12345</ord:OrderID>
    </ord:Order>
  </env:Body>
</env:Envelope>`))
	if err != nil {
		log.Fatalf("Failed to parse envelope: %v", err)
	}

	if err := policy.ProcessOutgoing(env); err != nil {
		log.Fatalf("Failed to secure message: %v", err)
	}
	wire, err := env.Bytes()
	if err != nil {
		log.Fatalf("Failed to serialize message: %v", err)
	}

	// Self-check before writing anything out.
	check := wsse.New()
	check.Keystore.RegisterCertificate(sender)
	check.Keystore.RegisterSigningKey(recipientKey, recipient)
	reparsed, err := envelope.Parse(wire)
	if err != nil {
		log.Fatalf("Failed to re-parse message: %v", err)
	}
	if err := check.ProcessIncoming(reparsed); err != nil {
		log.Fatalf("Self-check failed: %v", err)
	}
	log.Println("✓ Self-check passed (decrypted and verified)")

	files := map[string][]byte{
		"message.xml":   wire,
		"sender.crt":    pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: sender.Raw}),
		"recipient.crt": pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: recipient.Raw}),
		"recipient.key": encodeKey(recipientKey),
	}
	for name, data := range files {
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
	}

	fmt.Printf("Fixtures written to: %s\n", outDir)
	fmt.Printf("Message size: %d bytes\n", len(wire))
}

func generateCredential(cn string, serial int64) (*x509.Certificate, *rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("generating key: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn, Organization: []string{"SIROS Test"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing certificate: %w", err)
	}
	return cert, key, nil
}

func encodeKey(key *rsa.PrivateKey) []byte {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		log.Fatalf("Failed to marshal key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}
