// Package config handles configuration loading for WS-Security policies.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows sensitive values
// like passwords and HSM PINs to be injected at runtime.
//
// # Configuration Sections
//
//   - policy: header flags (mustUnderstand, timestamp, operation order)
//   - tokens: username tokens carried by outgoing messages
//   - signing: signing credential (PEM files or PKCS#11) and signed parts
//   - encryption: recipient certificate, algorithms, and encrypted parts
//   - peers: certificates trusted to sign incoming messages
//
// # Example Configuration
//
//	policy:
//	  mustUnderstand: true
//	  includeTimestamp: true
//	  timestampValidity: 90s
//
//	tokens:
//	  - username: alice
//	    password: ${WSSE_PASSWORD}
//	    nonce: true
//	    created: true
//
//	signing:
//	  mode: file
//	  digest: sha256
//	  parts: [body, timestamp]
//	  file:
//	    keyFile: /etc/wsse/client.key
//	    certFile: /etc/wsse/client.crt
//
//	encryption:
//	  certFile: /etc/wsse/peer.crt
//	  keyTransport: rsa-oaep
//	  blockCipher: aes128-cbc
//	  parts: [body]
//
//	peers:
//	  - /etc/wsse/peer.crt
//
// See [Load] for loading configuration from a file and [Config.Build]
// for turning it into a ready policy.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-wsse/pkg/pki"
	"github.com/sirosfoundation/go-wsse/pkg/wsse"
	"github.com/sirosfoundation/go-wsse/pkg/xmlsec"
)

// Config is the root configuration structure
type Config struct {
	Policy     PolicyConfig     `yaml:"policy"`
	Tokens     []TokenConfig    `yaml:"tokens"`
	Signing    SigningConfig    `yaml:"signing"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Peers      []string         `yaml:"peers"`
}

// PolicyConfig holds the header flags and operation order
type PolicyConfig struct {
	MustUnderstand    *bool         `yaml:"mustUnderstand"`
	IncludeTimestamp  *bool         `yaml:"includeTimestamp"`
	TimestampValidity time.Duration `yaml:"timestampValidity"`
	EncryptThenSign   bool          `yaml:"encryptThenSign"`
}

// TokenConfig declares one username token
type TokenConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Nonce adds a derived nonce to the token
	Nonce bool `yaml:"nonce"`
	// Created stamps the token with the build time
	Created bool `yaml:"created"`
}

// SigningConfig holds the signing credential and the signed parts
type SigningConfig struct {
	// Mode determines how the signing key is managed
	// - "file": key and certificate loaded from PEM files
	// - "pkcs11": key held in a PKCS#11 token (HSM/smart card)
	Mode string `yaml:"mode"`

	// Digest selects the reference digest: sha1, sha256, sha384, sha512
	Digest string `yaml:"digest"`

	// Parts lists what gets signed: "body", "timestamp", or an XPath
	Parts []string `yaml:"parts"`

	// File mode settings
	File FileKeyConfig `yaml:"file"`

	// PKCS11 mode settings
	PKCS11 PKCS11Config `yaml:"pkcs11"`
}

// FileKeyConfig holds PEM file paths
type FileKeyConfig struct {
	KeyFile  string `yaml:"keyFile"`
	CertFile string `yaml:"certFile"`
}

// PKCS11Config holds PKCS#11 HSM settings
type PKCS11Config struct {
	// Path to the PKCS#11 library (.so/.dylib/.dll)
	ModulePath string `yaml:"modulePath"`
	// Slot ID or token label to use
	SlotID     *int   `yaml:"slotId"`
	TokenLabel string `yaml:"tokenLabel"`
	// PIN for authentication (can be env var reference like ${HSM_PIN})
	PIN string `yaml:"pin"`
	// Label of the key pair and certificate on the token
	KeyLabel string `yaml:"keyLabel"`
}

// EncryptionConfig holds the recipient and algorithm choices
type EncryptionConfig struct {
	CertFile string `yaml:"certFile"`
	// KeyTransport: rsa-oaep, rsa-oaep-256, rsa-1_5
	KeyTransport string `yaml:"keyTransport"`
	// BlockCipher: aes128-cbc, aes192-cbc, aes256-cbc, aes128-gcm, aes256-gcm
	BlockCipher string `yaml:"blockCipher"`
	// Content encrypts element content instead of whole elements
	Content bool     `yaml:"content"`
	Parts   []string `yaml:"parts"`
}

var digestNames = map[string]xmlsec.DigestAlgorithm{
	"sha1":   xmlsec.DigestSHA1,
	"sha256": xmlsec.DigestSHA256,
	"sha384": xmlsec.DigestSHA384,
	"sha512": xmlsec.DigestSHA512,
}

var keyTransportNames = map[string]xmlsec.KeyTransportAlgorithm{
	"rsa-oaep":     xmlsec.KeyTransportRSAOAEP,
	"rsa-oaep-256": xmlsec.KeyTransportRSAOAEP256,
	"rsa-1_5":      xmlsec.KeyTransportRSA15,
}

var blockCipherNames = map[string]xmlsec.BlockCipherAlgorithm{
	"aes128-cbc": xmlsec.BlockCipherAES128CBC,
	"aes192-cbc": xmlsec.BlockCipherAES192CBC,
	"aes256-cbc": xmlsec.BlockCipherAES256CBC,
	"aes128-gcm": xmlsec.BlockCipherAES128GCM,
	"aes256-gcm": xmlsec.BlockCipherAES256GCM,
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Policy.TimestampValidity == 0 {
		c.Policy.TimestampValidity = wsse.DefaultTimestampValidity
	}
	if c.Signing.Mode == "" {
		c.Signing.Mode = "file"
	}
	if c.Signing.Digest == "" {
		c.Signing.Digest = "sha1"
	}
	if len(c.Signing.Parts) == 0 {
		c.Signing.Parts = []string{"body"}
	}
	if c.Encryption.KeyTransport == "" {
		c.Encryption.KeyTransport = "rsa-oaep"
	}
	if c.Encryption.BlockCipher == "" {
		c.Encryption.BlockCipher = "aes128-cbc"
	}
	if len(c.Encryption.Parts) == 0 {
		c.Encryption.Parts = []string{"body"}
	}
}

func (c *Config) validate() error {
	for i, token := range c.Tokens {
		if token.Username == "" {
			return fmt.Errorf("tokens[%d].username is required", i)
		}
	}

	switch c.Signing.Mode {
	case "file", "pkcs11":
		// Valid modes
	default:
		return fmt.Errorf("signing.mode must be 'file' or 'pkcs11', got '%s'", c.Signing.Mode)
	}

	if c.Signing.Mode == "pkcs11" && c.signingConfigured() {
		if c.Signing.PKCS11.ModulePath == "" {
			return fmt.Errorf("signing.pkcs11.modulePath is required when mode is 'pkcs11'")
		}
		if c.Signing.PKCS11.KeyLabel == "" {
			return fmt.Errorf("signing.pkcs11.keyLabel is required when mode is 'pkcs11'")
		}
	}

	if _, ok := digestNames[c.Signing.Digest]; !ok {
		return fmt.Errorf("signing.digest must be one of sha1, sha256, sha384, sha512, got '%s'", c.Signing.Digest)
	}
	if _, ok := keyTransportNames[c.Encryption.KeyTransport]; !ok {
		return fmt.Errorf("encryption.keyTransport must be one of rsa-oaep, rsa-oaep-256, rsa-1_5, got '%s'", c.Encryption.KeyTransport)
	}
	if _, ok := blockCipherNames[c.Encryption.BlockCipher]; !ok {
		return fmt.Errorf("encryption.blockCipher must be a supported AES cipher, got '%s'", c.Encryption.BlockCipher)
	}

	return nil
}

// signingConfigured reports whether the config declares a signing
// credential at all. A policy without one simply does not sign.
func (c *Config) signingConfigured() bool {
	switch c.Signing.Mode {
	case "pkcs11":
		return c.Signing.PKCS11.ModulePath != "" || c.Signing.PKCS11.KeyLabel != ""
	default:
		return c.Signing.File.KeyFile != "" || c.Signing.File.CertFile != ""
	}
}

// Build assembles the configured policy: tokens, signing and encryption
// operations, and a keystore populated with the signing credential and
// the peer certificates.
func (c *Config) Build() (*wsse.Security, error) {
	opts := []wsse.Option{
		wsse.WithTimestampValidity(c.Policy.TimestampValidity),
		wsse.WithEncryptThenSign(c.Policy.EncryptThenSign),
	}
	if c.Policy.MustUnderstand != nil {
		opts = append(opts, wsse.WithMustUnderstand(*c.Policy.MustUnderstand))
	}
	if c.Policy.IncludeTimestamp != nil {
		opts = append(opts, wsse.WithTimestamp(*c.Policy.IncludeTimestamp))
	}
	sec := wsse.New(opts...)

	for _, tc := range c.Tokens {
		token := wsse.NewUsernameToken(tc.Username, tc.Password)
		if tc.Nonce {
			token.SetNonce("")
		}
		if tc.Created {
			token.SetCreated(time.Time{})
		}
		sec.AddToken(token)
	}

	if c.signingConfigured() {
		key, err := c.loadSigningKey()
		if err != nil {
			return nil, fmt.Errorf("loading signing credential: %w", err)
		}
		sig := wsse.NewSignature(key, pki.IssuerSerialRef{})
		sig.Digest = digestNames[c.Signing.Digest]
		sig.AddPart(selectorsFor(c.Signing.Parts)...)
		sec.AddSignature(sig)

		// The keystore also holds the policy's own credential so that
		// incoming EncryptedKeys addressed to it can be unwrapped.
		sec.Keystore.Register(key.Ref(), key)
	}

	if c.Encryption.CertFile != "" {
		cert, err := pki.LoadCertificate(c.Encryption.CertFile)
		if err != nil {
			return nil, fmt.Errorf("loading encryption certificate: %w", err)
		}
		key := wsse.NewKey(cert)
		key.KeyTransport = keyTransportNames[c.Encryption.KeyTransport]
		key.BlockCipher = blockCipherNames[c.Encryption.BlockCipher]
		key.Content = c.Encryption.Content
		key.AddPart(selectorsFor(c.Encryption.Parts)...)
		sec.AddKey(key)
	}

	for _, path := range c.Peers {
		cert, err := pki.LoadCertificate(path)
		if err != nil {
			return nil, fmt.Errorf("loading peer certificate %s: %w", path, err)
		}
		sec.Keystore.Register(cert.Ref(), cert)
	}

	return sec, nil
}

func (c *Config) loadSigningKey() (*pki.SigningKey, error) {
	switch c.Signing.Mode {
	case "pkcs11":
		module, err := pki.OpenPKCS11(&pki.PKCS11Config{
			ModulePath: c.Signing.PKCS11.ModulePath,
			SlotID:     c.Signing.PKCS11.SlotID,
			TokenLabel: c.Signing.PKCS11.TokenLabel,
			PIN:        c.Signing.PKCS11.PIN,
		})
		if err != nil {
			return nil, err
		}
		return module.SigningKey(c.Signing.PKCS11.KeyLabel)
	default:
		return pki.LoadSigningKey(c.Signing.File.KeyFile, c.Signing.File.CertFile)
	}
}

func selectorsFor(parts []string) []wsse.Selector {
	selectors := make([]wsse.Selector, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "body":
			selectors = append(selectors, wsse.SelectBody())
		case "timestamp":
			selectors = append(selectors, wsse.SelectTimestamp())
		default:
			selectors = append(selectors, wsse.SelectPath(part))
		}
	}
	return selectors
}
