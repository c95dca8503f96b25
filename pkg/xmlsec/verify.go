package xmlsec

import (
	"fmt"

	"github.com/leifj/signedxml"

	"github.com/sirosfoundation/go-wsse/pkg/envelope"
	"github.com/sirosfoundation/go-wsse/pkg/pki"
)

// Verify checks every signature in the security header against
// certificates resolved from the keystore by issuer and serial. Messages
// without a security header or without signatures pass unchanged; an
// unresolvable signer or a failed reference check is an error.
func (x *XMLSec) Verify(env *envelope.Envelope, store *pki.Keystore) error {
	root := env.Root()
	if root == nil {
		return envelope.ErrNoRoot
	}
	security := findSecurity(root)
	if security == nil {
		return nil
	}
	signatures := childrenNamed(security, "Signature")
	if len(signatures) == 0 {
		return nil
	}
	if store == nil {
		return fmt.Errorf("%w: no keystore to resolve signers", ErrVerification)
	}

	xmlStr, err := env.String()
	if err != nil {
		return fmt.Errorf("failed to serialize envelope: %w", err)
	}
	validator, err := signedxml.NewValidator(xmlStr)
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}
	validator.SetReferenceIDAttribute("wsu:Id")

	for _, sig := range signatures {
		ref, err := issuerSerialIn(sig)
		if err != nil {
			return fmt.Errorf("%w: signature carries %v", ErrVerification, err)
		}
		cred, err := store.Lookup(ref)
		if err != nil {
			return err
		}
		cert, err := pki.CertificateFor(cred)
		if err != nil {
			return err
		}
		if x.validator != nil {
			if err := x.validator.ValidateCertificate(cert, nil, "signing"); err != nil {
				return fmt.Errorf("signer certificate rejected: %w", err)
			}
		}
		validator.Certificates = append(validator.Certificates, *cert)
	}

	if _, err := validator.ValidateReferences(); err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	return nil
}
