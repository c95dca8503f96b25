// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package wsse applies WS-Security 1.0 policies to SOAP messages.

A Security value is the policy: the tokens every outgoing message
carries, the signing and encryption operations applied to it, and the
keystore that resolves peer credentials on incoming messages.

# Outgoing messages

Declare the policy once, then run each message through it:

	sec := wsse.New()
	sec.AddToken(wsse.NewUsernameToken("alice", "secret"))
	sec.AddSignature(wsse.NewSignature(key, pki.IssuerSerialRef{}).
	    AddPart(wsse.SelectBody(), wsse.SelectTimestamp()))
	sec.AddKey(wsse.NewKey(peerCert).AddPart(wsse.SelectBody()))

	if err := sec.ProcessOutgoing(env); err != nil {
	    return err
	}

ProcessOutgoing renders the Security header with a fresh timestamp and
the declared tokens, then signs and encrypts. The default order is
sign-then-encrypt; WithEncryptThenSign flips it. Signature and
EncryptedKey elements land in the header after the tokens.

# Incoming messages

ProcessIncoming runs the inverse order: decrypt-then-verify by default,
verify-then-decrypt under WithEncryptThenSign. Peer credentials are
resolved through the policy's keystore by the issuer-serial reference
each Signature and EncryptedKey carries. Any failure is reported as a
*ValidationError and the message must be rejected.

# Message parts

Signatures and keys select the parts they cover with Selector
functions. SelectBody covers the SOAP Body, SelectTimestamp the header
timestamp; SelectPath and SelectLocalName address arbitrary elements.
Duplicate selections collapse to the first occurrence.

# Tokens

UsernameToken and Timestamp implement the Token interface. Timestamps
rendered by the policy are created per message with the configured
validity window.

# References

  - WS-Security 1.0: https://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0.pdf
  - Username Token Profile: https://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0.pdf
  - X.509 Token Profile: https://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0.pdf
*/
package wsse
