// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package pki manages the key material used by WS-Security message processing.

Certificates and private keys are identified by the issuer distinguished
name and serial number of the certificate they belong to, the same pair a
message carries inside a ds:X509IssuerSerial reference. The Keystore maps
that identity to a registered credential; loaders read PEM files into
credentials and derive their references.

# Credentials

Credential is a closed set of two variants:

  - SigningKey: a private key, used to produce signatures and to unwrap
    encrypted session keys addressed to us.
  - Certificate: a public certificate, used to verify signatures and to
    wrap session keys for a recipient.

Load them from PEM files and register them:

	store := pki.NewKeystore()

	key, err := pki.LoadSigningKey("server.key", "server.crt")
	if err != nil {
		log.Fatal(err)
	}
	store.Register(key.Ref(), key)

	cert, err := pki.LoadCertificate("partner.crt")
	if err != nil {
		log.Fatal(err)
	}
	store.Register(cert.Ref(), cert)

# Issuer-serial identity

References are normalized so that cosmetic whitespace differences in a
distinguished name do not break resolution:

	a := pki.NewIssuerSerialRef("CN=ca, OU=unit", "123")
	b := pki.NewIssuerSerialRef("CN=ca,OU=unit", "123")
	// a == b

# Certificate validation

CertificateValidator checks a certificate against a trust model before it
is accepted. ChainValidator implements traditional PKI path validation;
OCSPChecker adds revocation checking with CRL fallback and can be layered
on top via NewRevocationAwareValidator.

# Hardware keys

With the pkcs11 build tag, LoadPKCS11SigningKey opens a private key held
in an HSM or smart card through the PKCS#11 interface. Without the tag it
returns ErrPKCS11NotSupported.
*/
package pki
