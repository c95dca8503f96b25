package pki

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"strings"
	"unicode"
)

// IssuerSerialRef identifies an X.509 certificate by the distinguished name
// of its issuer and its serial number, independent of how the certificate
// itself is encoded. It is a comparable value type and is used as the
// Keystore key, so two references built from differently formatted issuer
// strings must compare equal once normalized.
type IssuerSerialRef struct {
	issuer string
	serial string
}

// NewIssuerSerialRef builds a reference from an issuer distinguished name
// and a serial number. The issuer is normalized; the serial is taken as-is
// (certificate serials use the decimal form, see IssuerSerialFromCertificate).
func NewIssuerSerialRef(issuer, serial string) IssuerSerialRef {
	return IssuerSerialRef{
		issuer: NormalizeIssuer(issuer),
		serial: serial,
	}
}

// IssuerSerialFromCertificate derives the reference under which a
// certificate is known: its issuer DN and its serial number in decimal form,
// the same representation ds:X509SerialNumber uses on the wire.
func IssuerSerialFromCertificate(cert *x509.Certificate) IssuerSerialRef {
	return IssuerSerialRef{
		issuer: buildDN(cert.Issuer),
		serial: cert.SerialNumber.String(),
	}
}

// Issuer returns the normalized issuer distinguished name.
func (r IssuerSerialRef) Issuer() string { return r.issuer }

// Serial returns the serial number string.
func (r IssuerSerialRef) Serial() string { return r.serial }

// IsZero reports whether the reference is empty.
func (r IssuerSerialRef) IsZero() bool { return r == IssuerSerialRef{} }

func (r IssuerSerialRef) String() string {
	return r.issuer + " serial=" + r.serial
}

// NormalizeIssuer canonicalizes a distinguished name: the name is split on
// commas, leading whitespace is stripped from each component, and the
// components are rejoined with bare commas. "CN=a, OU=b" and "CN=a,OU=b"
// therefore normalize to the same identity.
func NormalizeIssuer(issuer string) string {
	parts := strings.Split(issuer, ",")
	for i, p := range parts {
		parts[i] = strings.TrimLeftFunc(p, unicode.IsSpace)
	}
	return strings.Join(parts, ",")
}

// buildDN renders a distinguished name from its RDN components in the fixed
// order CN, OU, O, L, ST, C, omitting components the name does not carry.
// The result is already in normalized form.
func buildDN(name pkix.Name) string {
	parts := make([]string, 0, 6)
	if name.CommonName != "" {
		parts = append(parts, "CN="+name.CommonName)
	}
	for _, ou := range name.OrganizationalUnit {
		parts = append(parts, "OU="+ou)
	}
	for _, o := range name.Organization {
		parts = append(parts, "O="+o)
	}
	for _, l := range name.Locality {
		parts = append(parts, "L="+l)
	}
	for _, st := range name.Province {
		parts = append(parts, "ST="+st)
	}
	for _, c := range name.Country {
		parts = append(parts, "C="+c)
	}
	return strings.Join(parts, ",")
}
