package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sirosfoundation/go-wsse/internal/config"
	"github.com/sirosfoundation/go-wsse/pkg/envelope"
	"github.com/sirosfoundation/go-wsse/pkg/pki"
	"github.com/sirosfoundation/go-wsse/pkg/wsse"
)

// Standalone checker for WS-Security fixtures: decrypts and verifies a
// secured message against the sender certificate and recipient key. By
// default it reads the layout sign-roundtrip writes; set WSSE_CONFIG to
// build the receiving policy from a YAML file instead.
func main() {
	dir := "/tmp/wsse-fixtures"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	wire, err := os.ReadFile(filepath.Join(dir, "message.xml"))
	if err != nil {
		fmt.Println("Usage: verify-self [fixture-dir]")
		log.Fatalf("Failed to read message: %v", err)
	}

	var policy *wsse.Security
	if cfgPath := os.Getenv("WSSE_CONFIG"); cfgPath != "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		policy, err = cfg.Build()
		if err != nil {
			log.Fatalf("Failed to build policy: %v", err)
		}
		log.Printf("Receiving policy built from %s", cfgPath)
	} else {
		policy = fixturePolicy(dir)
	}

	env, err := envelope.Parse(wire)
	if err != nil {
		log.Fatalf("Failed to parse message: %v", err)
	}

	if err := policy.ProcessIncoming(env); err != nil {
		log.Fatalf("✗ Validation FAILED: %v", err)
	}

	log.Println("✓ Validation PASSED (decrypted and verified)")

	if restored, err := env.Bytes(); err == nil {
		fmt.Printf("Restored message size: %d bytes\n", len(restored))
	}
}

// fixturePolicy assembles the receiving policy from the certificate and
// key files next to the message.
func fixturePolicy(dir string) *wsse.Security {
	senderCert, err := pki.LoadCertificate(filepath.Join(dir, "sender.crt"))
	if err != nil {
		log.Fatalf("Failed to load sender certificate: %v", err)
	}

	policy := wsse.New()
	policy.Keystore.Register(senderCert.Ref(), senderCert)

	// The recipient key is only needed when the message is encrypted.
	recipientKey, err := pki.LoadSigningKey(
		filepath.Join(dir, "recipient.key"),
		filepath.Join(dir, "recipient.crt"),
	)
	if err == nil {
		policy.Keystore.Register(recipientKey.Ref(), recipientKey)
	} else {
		log.Printf("No recipient key (%v); verifying signature only", err)
	}
	return policy
}
