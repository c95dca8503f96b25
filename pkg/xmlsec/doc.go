// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package xmlsec provides the XML signature and encryption primitives used
by WS-Security processing.

The Provider interface covers the four operations the policy layer
needs. Sign and Encrypt produce detached ds:Signature and
xenc:EncryptedKey elements and leave their placement in the security
header to the caller, because WS-Security prescribes where results land
relative to tokens and to each other. Verify and Decrypt consume
whatever the security header carries and succeed quietly on messages
that carry nothing.

# Key identification

Certificates and keys are always identified by X509IssuerSerial. Both
verification and decryption extract the issuer and serial from the
message and resolve the matching credential in the pki.Keystore, so no
certificates travel inside messages.

# Default provider

XMLSec is the stock implementation. Signatures go through the signedxml
library with wsu:Id reference resolution; the AES-GCM content ciphers go
through the xmlenc package, the CBC ciphers through the standard crypto
suite.

	provider := xmlsec.New()
	sig, err := provider.Sign(env, key, ref, parts, xmlsec.DigestSHA1)

# Algorithms

Reference digests span SHA-1 through SHA-512, with SHA-1 the
WS-Security 1.0 default. Content encryption supports the xmlenc CBC
modes and the XML Encryption 1.1 GCM modes; key transport supports
RSA-OAEP (SHA-1 and SHA-256) and RSA PKCS#1 v1.5.
*/
package xmlsec
