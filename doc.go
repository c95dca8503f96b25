// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package gowsse implements WS-Security 1.0 message processing for
SOAP-style messaging: declarative policies that sign and encrypt
outgoing envelopes and verify and decrypt incoming ones.

# Overview

go-wsse is the message-security core of a SOAP messaging stack. A
policy declares which parts of an envelope get signed and/or encrypted,
in what order, and with which credential; the same policy re-assembles
the inverse verification/decryption order for incoming messages.
Credentials are resolved by X.509 issuer-and-serial identity, so
messages never need to carry certificates inline.

# Specifications Implemented

This library implements the following specifications:

  - WS-Security 1.0: https://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0.pdf
  - Username Token Profile 1.0: https://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0.pdf
  - X.509 Certificate Token Profile 1.0: https://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0.pdf
  - XML Signature Syntax and Processing: https://www.w3.org/TR/xmldsig-core1/
  - XML Encryption Syntax and Processing: https://www.w3.org/TR/xmlenc-core1/

# Package Structure

The library is organized into the following packages:

	github.com/sirosfoundation/go-wsse/pkg/wsse     - Security policies, tokens, and part selection
	github.com/sirosfoundation/go-wsse/pkg/pki      - Credentials, keystore, PEM and PKCS#11 loading
	github.com/sirosfoundation/go-wsse/pkg/envelope - SOAP envelope model over etree
	github.com/sirosfoundation/go-wsse/pkg/xmlsec   - XML-DSig and XML-ENC provider

# Quick Start

To secure an outgoing message:

	import (
	    "github.com/sirosfoundation/go-wsse/pkg/envelope"
	    "github.com/sirosfoundation/go-wsse/pkg/pki"
	    "github.com/sirosfoundation/go-wsse/pkg/wsse"
	)

	// Load the signing credential
	key, _ := pki.LoadSigningKey("client.key", "client.crt")

	// Declare the policy
	sec := wsse.New()
	sec.AddToken(wsse.NewUsernameToken("alice", "secret"))
	sec.AddSignature(wsse.NewSignature(key, pki.IssuerSerialRef{}).
	    AddPart(wsse.SelectBody(), wsse.SelectTimestamp()))

	// Apply it to a message
	env, _ := envelope.Parse(soapBytes)
	if err := sec.ProcessOutgoing(env); err != nil {
	    // handle
	}
	wire, _ := env.Bytes()

Incoming messages run the same policy the other way:

	sec.Keystore.RegisterCertificate(peerCert)
	if err := sec.ProcessIncoming(env); err != nil {
	    // reject the message
	}

# Security Features

## Digital Signatures

  - RSA (SHA-1/SHA-256/SHA-384/SHA-512) and ECDSA signatures
  - Canonicalization: Exclusive XML Canonicalization
  - Reference-based signing of selected message parts

## Encryption

  - AES-CBC and AES-GCM data encryption
  - RSA-OAEP (SHA-1/SHA-256) and RSA-1.5 key transport
  - Whole-element and element-content encryption

## Key Identification

Signatures and encrypted keys identify certificates by
X509IssuerSerial, the reference method with universal compatibility
across WS-Security stacks.

# Interoperability

The wire profile is tested for compatibility with the 2004 OASIS
namespaces and header layout used by:

  - WSS4J / Apache CXF
  - suds (Python)
  - Metro / WSIT

# References

  - OASIS WSS TC: https://www.oasis-open.org/committees/wss/
  - XML Signature: https://www.w3.org/TR/xmldsig-core1/
  - XML Encryption: https://www.w3.org/TR/xmlenc-core1/

# License

BSD-2-Clause License
*/
package gowsse
