// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package wsse

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-wsse/pkg/envelope"
	"github.com/sirosfoundation/go-wsse/pkg/pki"
	"github.com/sirosfoundation/go-wsse/pkg/xmlsec"
)

const policyMessage = `<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope">
  <env:Body>
    <p:Payment xmlns:p="urn:example:payments">
      <p:Account>4711</p:Account>
      <p:Amount>129.95</p:Amount>
    </p:Payment>
  </env:Body>
</env:Envelope>`

func policyEnvelope(t *testing.T) *envelope.Envelope {
	t.Helper()
	env, err := envelope.Parse([]byte(policyMessage))
	require.NoError(t, err)
	return env
}

// fakeProvider records the order of provider calls and plants marker
// elements so header layout can be asserted without key material.
type fakeProvider struct {
	calls      []string
	signErr    error
	encryptErr error
	verifyErr  error
	decryptErr error
	signParts  [][]*etree.Element
}

func (f *fakeProvider) Sign(env *envelope.Envelope, key *pki.SigningKey, ref pki.IssuerSerialRef, parts []*etree.Element, digest xmlsec.DigestAlgorithm) (*etree.Element, error) {
	f.calls = append(f.calls, "sign")
	f.signParts = append(f.signParts, parts)
	if f.signErr != nil {
		return nil, f.signErr
	}
	return etree.NewElement("ds:Signature"), nil
}

func (f *fakeProvider) Verify(env *envelope.Envelope, store *pki.Keystore) error {
	f.calls = append(f.calls, "verify")
	return f.verifyErr
}

func (f *fakeProvider) Encrypt(env *envelope.Envelope, cert *pki.Certificate, parts []*etree.Element, transport xmlsec.KeyTransportAlgorithm, cipher xmlsec.BlockCipherAlgorithm, content bool) (*etree.Element, error) {
	f.calls = append(f.calls, "encrypt")
	if f.encryptErr != nil {
		return nil, f.encryptErr
	}
	return etree.NewElement("xenc:EncryptedKey"), nil
}

func (f *fakeProvider) Decrypt(env *envelope.Envelope, store *pki.Keystore) error {
	f.calls = append(f.calls, "decrypt")
	return f.decryptErr
}

func policyCredential(t *testing.T, cn string, serial int64) *pki.SigningKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject: pkix.Name{
			CommonName:   cn,
			Organization: []string{"SIROS Test"},
			Country:      []string{"SE"},
		},
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(24 * time.Hour),
		KeyUsage:  x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return pki.NewSigningKeyWithCertificate(key, cert)
}

func TestProcessOutgoingHeaderLayout(t *testing.T) {
	fake := &fakeProvider{}
	sec := New(WithProvider(fake))
	sec.AddToken(NewUsernameToken("alice", "secret"), NewUsernameToken("bob", "hunter2"))
	sec.AddSignature(NewSignature(nil, pki.IssuerSerialRef{}).AddPart(SelectBody()))

	env := policyEnvelope(t)
	require.NoError(t, sec.ProcessOutgoing(env))

	security := env.Security()
	require.NotNil(t, security)
	assert.Equal(t, "true", security.SelectAttrValue("mustUnderstand", ""))

	kids := security.ChildElements()
	require.Len(t, kids, 4)
	assert.Equal(t, "Timestamp", kids[0].Tag)
	assert.Equal(t, "UsernameToken", kids[1].Tag)
	assert.Equal(t, "alice", kids[1].FindElement("./wsse:Username").Text())
	assert.Equal(t, "UsernameToken", kids[2].Tag)
	assert.Equal(t, "Signature", kids[3].Tag, "signatures land after the tokens")

	require.Len(t, fake.signParts, 1)
	require.Len(t, fake.signParts[0], 1)
	assert.Equal(t, "Body", fake.signParts[0][0].Tag)
}

func TestProcessOutgoingTokensOnly(t *testing.T) {
	fake := &fakeProvider{}
	sec := New(WithProvider(fake))
	sec.AddToken(NewUsernameToken("alice", "secret"))

	env := policyEnvelope(t)
	require.NoError(t, sec.ProcessOutgoing(env))

	security := env.Security()
	require.NotNil(t, security, "the header is attached even without signatures or keys")
	kids := security.ChildElements()
	require.Len(t, kids, 2)
	assert.Equal(t, "Timestamp", kids[0].Tag)
	assert.Equal(t, "UsernameToken", kids[1].Tag)
	assert.Empty(t, fake.calls)
}

func TestProcessOutgoingWithoutTimestamp(t *testing.T) {
	sec := New(WithProvider(&fakeProvider{}), WithTimestamp(false), WithMustUnderstand(false))
	sec.AddToken(NewUsernameToken("alice", "secret"))

	env := policyEnvelope(t)
	require.NoError(t, sec.ProcessOutgoing(env))

	security := env.Security()
	require.NotNil(t, security)
	assert.Equal(t, "false", security.SelectAttrValue("mustUnderstand", ""))

	kids := security.ChildElements()
	require.Len(t, kids, 1)
	assert.Equal(t, "UsernameToken", kids[0].Tag)
}

func TestProcessOutgoingSignThenEncrypt(t *testing.T) {
	fake := &fakeProvider{}
	sec := New(WithProvider(fake))
	sec.AddSignature(NewSignature(nil, pki.IssuerSerialRef{}).AddPart(SelectBody()))
	sec.AddKey(NewKey(nil).AddPart(SelectBody()))

	env := policyEnvelope(t)
	require.NoError(t, sec.ProcessOutgoing(env))

	assert.Equal(t, []string{"sign", "encrypt"}, fake.calls)

	kids := env.Security().ChildElements()
	require.Len(t, kids, 3)
	assert.Equal(t, "Timestamp", kids[0].Tag)
	assert.Equal(t, "EncryptedKey", kids[1].Tag, "the last operation applied is read first")
	assert.Equal(t, "Signature", kids[2].Tag)
}

func TestProcessOutgoingEncryptThenSign(t *testing.T) {
	fake := &fakeProvider{}
	sec := New(WithProvider(fake), WithEncryptThenSign(true))
	sec.AddSignature(NewSignature(nil, pki.IssuerSerialRef{}).AddPart(SelectBody()))
	sec.AddKey(NewKey(nil).AddPart(SelectBody()))

	env := policyEnvelope(t)
	require.NoError(t, sec.ProcessOutgoing(env))

	assert.Equal(t, []string{"encrypt", "sign"}, fake.calls)

	kids := env.Security().ChildElements()
	require.Len(t, kids, 3)
	assert.Equal(t, "Timestamp", kids[0].Tag)
	assert.Equal(t, "Signature", kids[1].Tag)
	assert.Equal(t, "EncryptedKey", kids[2].Tag)
}

func TestProcessOutgoingSignFailure(t *testing.T) {
	sentinel := errors.New("key unavailable")
	fake := &fakeProvider{signErr: sentinel}
	sec := New(WithProvider(fake))
	sec.AddSignature(NewSignature(nil, pki.IssuerSerialRef{}).AddPart(SelectBody()))
	sec.AddKey(NewKey(nil).AddPart(SelectBody()))

	err := sec.ProcessOutgoing(policyEnvelope(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "failed to sign message")

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr), "outgoing failures are not validation errors")
	assert.Equal(t, []string{"sign"}, fake.calls, "encryption is not attempted after a failed signature")
}

func TestProcessIncomingOrder(t *testing.T) {
	fake := &fakeProvider{}
	sec := New(WithProvider(fake))
	require.NoError(t, sec.ProcessIncoming(policyEnvelope(t)))
	assert.Equal(t, []string{"decrypt", "verify"}, fake.calls)

	fake = &fakeProvider{}
	sec = New(WithProvider(fake), WithEncryptThenSign(true))
	require.NoError(t, sec.ProcessIncoming(policyEnvelope(t)))
	assert.Equal(t, []string{"verify", "decrypt"}, fake.calls)
}

func TestProcessIncomingVerifyFailure(t *testing.T) {
	sentinel := errors.New("digest mismatch")
	fake := &fakeProvider{verifyErr: sentinel}
	sec := New(WithProvider(fake))

	err := sec.ProcessIncoming(policyEnvelope(t))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "verify", verr.Op)
	assert.ErrorIs(t, err, sentinel)
}

func TestProcessIncomingDecryptFailure(t *testing.T) {
	sentinel := errors.New("wrong recipient")
	fake := &fakeProvider{decryptErr: sentinel}
	sec := New(WithProvider(fake))

	err := sec.ProcessIncoming(policyEnvelope(t))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "decrypt", verr.Op)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, []string{"decrypt"}, fake.calls, "verification is not attempted on an undecryptable message")
}

func TestProcessOutgoingReusesExistingHeader(t *testing.T) {
	fake := &fakeProvider{}
	sec := New(WithProvider(fake), WithTimestamp(false))
	sec.AddSignature(NewSignature(nil, pki.IssuerSerialRef{}).AddPart(SelectBody()))

	env := policyEnvelope(t)
	existing := env.Header().CreateElement("wsse:Security")
	existing.CreateAttr("xmlns:wsse", xmlsec.NSSecurityExt)

	require.NoError(t, sec.ProcessOutgoing(env))

	securities := env.Header().FindElements("./wsse:Security")
	require.Len(t, securities, 1, "an existing security header is extended, not duplicated")
	assert.Same(t, existing, securities[0])
}

func TestSecurityXMLFreshTimestamp(t *testing.T) {
	sec := New()

	first := sec.XML().FindElement("./wsu:Timestamp")
	second := sec.XML().FindElement("./wsu:Timestamp")
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t,
		first.SelectAttrValue("wsu:Id", ""),
		second.SelectAttrValue("wsu:Id", ""),
		"each rendering mints a new timestamp")
}

// TestPolicyRoundTrip drives a message through two real policies the way
// two peers would: the sender signs the body and timestamp and encrypts
// the body content, the receiver decrypts and verifies the re-parsed
// wire bytes.
func TestPolicyRoundTrip(t *testing.T) {
	sender := policyCredential(t, "sender", 2001)
	receiver := policyCredential(t, "receiver", 2002)

	key := NewKey(pki.NewCertificate(receiver.Certificate())).AddPart(SelectBody())
	key.Content = true

	out := New()
	out.AddToken(NewUsernameToken("alice", "secret"))
	out.AddSignature(NewSignature(sender, pki.IssuerSerialRef{}).
		AddPart(SelectBody(), SelectTimestamp()))
	out.AddKey(key)

	env := policyEnvelope(t)
	require.NoError(t, out.ProcessOutgoing(env))

	wire, err := env.Bytes()
	require.NoError(t, err)
	assert.NotContains(t, string(wire), "129.95", "the amount travels encrypted")

	in := New()
	in.Keystore.RegisterCertificate(sender.Certificate())
	in.Keystore.RegisterSigningKey(receiver.Signer(), receiver.Certificate())

	received, err := envelope.Parse(wire)
	require.NoError(t, err)
	require.NoError(t, in.ProcessIncoming(received))

	amount := received.Root().FindElement("//p:Amount")
	require.NotNil(t, amount)
	assert.Equal(t, "129.95", amount.Text())
}

// TestPolicyRoundTripRejectsTampering flips a digit after signing and
// expects the receiving policy to reject the message.
func TestPolicyRoundTripRejectsTampering(t *testing.T) {
	sender := policyCredential(t, "sender", 2003)

	out := New()
	out.AddSignature(NewSignature(sender, pki.IssuerSerialRef{}).AddPart(SelectBody()))

	env := policyEnvelope(t)
	require.NoError(t, out.ProcessOutgoing(env))

	wire, err := env.Bytes()
	require.NoError(t, err)

	received, err := envelope.Parse(wire)
	require.NoError(t, err)
	received.Root().FindElement("//p:Amount").SetText("999999.00")

	in := New()
	in.Keystore.RegisterCertificate(sender.Certificate())

	err = in.ProcessIncoming(received)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "verify", verr.Op)
}
