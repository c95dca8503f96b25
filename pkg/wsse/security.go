// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package wsse

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wsse/pkg/envelope"
	"github.com/sirosfoundation/go-wsse/pkg/pki"
	"github.com/sirosfoundation/go-wsse/pkg/xmlsec"
)

// Security is the policy aggregate: the tokens a message carries, the
// signing and encryption operations applied to it, and the keystore
// that resolves peer credentials on the way in.
//
// Configure-then-freeze: populate the fields before the first message,
// then treat the policy as read-only. Processing never mutates it, so a
// frozen policy is safe for concurrent use across goroutines.
type Security struct {
	// MustUnderstand is emitted on the Security header.
	MustUnderstand bool

	// IncludeTimestamp renders a fresh wsu:Timestamp at the head of the
	// Security header of each outgoing message.
	IncludeTimestamp bool

	// EncryptThenSign flips the outgoing order from the default
	// sign-then-encrypt, and with it the incoming inverse.
	EncryptThenSign bool

	// TimestampValidity bounds rendered timestamps.
	TimestampValidity time.Duration

	Tokens     []Token
	Signatures []*Signature
	Keys       []*Key

	Keystore *pki.Keystore
	Provider xmlsec.Provider

	logger *slog.Logger
}

// Option configures a Security policy.
type Option func(*Security)

// WithMustUnderstand sets the header's mustUnderstand flag.
func WithMustUnderstand(v bool) Option {
	return func(s *Security) { s.MustUnderstand = v }
}

// WithTimestamp controls whether outgoing headers carry a timestamp.
func WithTimestamp(v bool) Option {
	return func(s *Security) { s.IncludeTimestamp = v }
}

// WithTimestampValidity sets how long rendered timestamps stay fresh.
func WithTimestampValidity(d time.Duration) Option {
	return func(s *Security) { s.TimestampValidity = d }
}

// WithEncryptThenSign applies encryption before signing on outgoing
// messages, and verifies before decrypting on incoming ones.
func WithEncryptThenSign(v bool) Option {
	return func(s *Security) { s.EncryptThenSign = v }
}

// WithKeystore supplies the credential store used to resolve peers.
func WithKeystore(store *pki.Keystore) Option {
	return func(s *Security) { s.Keystore = store }
}

// WithProvider swaps the crypto provider.
func WithProvider(p xmlsec.Provider) Option {
	return func(s *Security) { s.Provider = p }
}

// WithLogger sets the policy's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Security) { s.logger = logger }
}

// New returns a policy with the WS-Security defaults: mustUnderstand
// on, timestamp on, sign-then-encrypt, an empty keystore, and the stock
// provider.
func New(opts ...Option) *Security {
	s := &Security{
		MustUnderstand:    true,
		IncludeTimestamp:  true,
		TimestampValidity: DefaultTimestampValidity,
		Keystore:          pki.NewKeystore(),
		Provider:          xmlsec.New(),
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// AddToken appends security tokens.
func (s *Security) AddToken(tokens ...Token) *Security {
	s.Tokens = append(s.Tokens, tokens...)
	return s
}

// AddSignature appends signing operations.
func (s *Security) AddSignature(sigs ...*Signature) *Security {
	s.Signatures = append(s.Signatures, sigs...)
	return s
}

// AddKey appends encryption operations.
func (s *Security) AddKey(keys ...*Key) *Security {
	s.Keys = append(s.Keys, keys...)
	return s
}

// XML renders the Security header: the header element, a fresh
// timestamp when enabled, then the declared tokens in order. Signature
// and encrypted-key elements are added during ProcessOutgoing.
func (s *Security) XML() *etree.Element {
	root := etree.NewElement("wsse:Security")
	root.CreateAttr("xmlns:wsse", xmlsec.NSSecurityExt)
	root.CreateAttr("xmlns:wsu", xmlsec.NSSecurityUtil)
	root.CreateAttr("mustUnderstand", strconv.FormatBool(s.MustUnderstand))

	if s.IncludeTimestamp {
		root.AddChild(NewTimestamp(s.TimestampValidity).XML())
	}
	for _, t := range s.Tokens {
		root.AddChild(t.XML())
	}
	return root
}

// insertIndex is where signature and encrypted-key elements land in the
// Security header: after all tokens, and after the timestamp when one
// is included.
func (s *Security) insertIndex() int {
	index := len(s.Tokens)
	if s.IncludeTimestamp {
		index++
	}
	return index
}

// ProcessOutgoing applies the policy to an outgoing message: the
// Security header with its tokens is attached first, then the message
// is signed and encrypted, sign-then-encrypt by default and the
// reverse with EncryptThenSign. The envelope is mutated in place;
// applying a policy twice to the same message duplicates its security
// elements.
func (s *Security) ProcessOutgoing(env *envelope.Envelope) error {
	if _, err := s.ensureSecurity(env); err != nil {
		return err
	}
	if s.EncryptThenSign {
		if err := s.encryptMessage(env); err != nil {
			return err
		}
		return s.signMessage(env)
	}
	if err := s.signMessage(env); err != nil {
		return err
	}
	return s.encryptMessage(env)
}

// ProcessIncoming undoes the peer's outgoing processing in inverse
// order: decrypt-then-verify for the default sign-then-encrypt policy,
// verify-then-decrypt when EncryptThenSign is set. The first failing
// step rejects the message.
func (s *Security) ProcessIncoming(env *envelope.Envelope) error {
	if s.EncryptThenSign {
		if err := s.verify(env); err != nil {
			return err
		}
		return s.decrypt(env)
	}
	if err := s.decrypt(env); err != nil {
		return err
	}
	return s.verify(env)
}

func (s *Security) signMessage(env *envelope.Envelope) error {
	if len(s.Signatures) == 0 {
		return nil
	}
	security, err := s.ensureSecurity(env)
	if err != nil {
		return err
	}

	produced := make([]*etree.Element, 0, len(s.Signatures))
	for _, spec := range s.Signatures {
		parts := resolveParts(env, spec.Parts)
		sig, err := s.Provider.Sign(env, spec.Key, spec.Ref, parts, spec.Digest)
		if err != nil {
			return fmt.Errorf("failed to sign message: %w", err)
		}
		produced = append(produced, sig)
	}

	insertElements(security, s.insertIndex(), produced)
	s.logger.Debug("message signed", "signatures", len(produced))
	return nil
}

func (s *Security) encryptMessage(env *envelope.Envelope) error {
	if len(s.Keys) == 0 {
		return nil
	}
	security, err := s.ensureSecurity(env)
	if err != nil {
		return err
	}

	produced := make([]*etree.Element, 0, len(s.Keys))
	for _, spec := range s.Keys {
		parts := resolveParts(env, spec.Parts)
		ek, err := s.Provider.Encrypt(env, spec.Cert, parts, spec.KeyTransport, spec.BlockCipher, spec.Content)
		if err != nil {
			return fmt.Errorf("failed to encrypt message: %w", err)
		}
		produced = append(produced, ek)
	}

	insertElements(security, s.insertIndex(), produced)
	s.logger.Debug("message encrypted", "keys", len(produced))
	return nil
}

func (s *Security) verify(env *envelope.Envelope) error {
	if err := s.Provider.Verify(env, s.Keystore); err != nil {
		s.logger.Warn("message rejected", "step", "verify", "error", err)
		return &ValidationError{Op: "verify", Err: err}
	}
	return nil
}

func (s *Security) decrypt(env *envelope.Envelope) error {
	if err := s.Provider.Decrypt(env, s.Keystore); err != nil {
		s.logger.Warn("message rejected", "step", "decrypt", "error", err)
		return &ValidationError{Op: "decrypt", Err: err}
	}
	return nil
}

// ensureSecurity returns the message's Security header, rendering and
// attaching this policy's header when the message has none yet.
func (s *Security) ensureSecurity(env *envelope.Envelope) (*etree.Element, error) {
	if security := env.Security(); security != nil {
		return security, nil
	}
	header := env.Header()
	if header == nil {
		return nil, envelope.ErrNoRoot
	}
	security := s.XML()
	header.AddChild(security)
	return security, nil
}

// insertElements places els at the given element index of parent,
// keeping their order. etree child indexes count text tokens too, so
// the position is resolved against the element children only.
func insertElements(parent *etree.Element, index int, els []*etree.Element) {
	kids := parent.ChildElements()
	if index >= len(kids) {
		for _, el := range els {
			parent.AddChild(el)
		}
		return
	}
	anchor := kids[index]
	for _, el := range els {
		parent.InsertChildAt(anchor.Index(), el)
	}
}
