package pki

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/crypto/ocsp"
)

// RevocationChecker checks whether a certificate has been revoked.
type RevocationChecker interface {
	// CheckRevocation returns nil when the certificate is not revoked,
	// ErrCertificateRevoked when it is, and another error when the status
	// could not be determined.
	CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error
}

// RevocationOptions configures an OCSPChecker.
type RevocationOptions struct {
	// HTTPClient used for OCSP and CRL requests. Defaults to a client with
	// Timeout applied.
	HTTPClient *http.Client
	// Timeout for responder requests.
	Timeout time.Duration
	// CRLFallback enables CRL checking when OCSP is unavailable.
	CRLFallback bool
	// CacheTTL bounds how long responder results are reused.
	CacheTTL time.Duration
	// Strict makes an undeterminable status an error instead of a pass.
	Strict bool
}

// DefaultRevocationOptions returns the defaults: 10s timeout, CRL fallback
// enabled, one hour cache, non-strict.
func DefaultRevocationOptions() *RevocationOptions {
	return &RevocationOptions{
		Timeout:     10 * time.Second,
		CRLFallback: true,
		CacheTTL:    time.Hour,
		Strict:      false,
	}
}

// OCSPChecker implements RevocationChecker using OCSP with optional CRL
// fallback. Responder results and fetched CRLs are cached with a TTL.
type OCSPChecker struct {
	opts   RevocationOptions
	client *http.Client

	mu      sync.Mutex
	results map[string]cachedResult
	crls    map[string]cachedCRL
}

type cachedResult struct {
	err error
	at  time.Time
}

type cachedCRL struct {
	crl *x509.RevocationList
	at  time.Time
}

// NewOCSPChecker creates a revocation checker. A nil opts uses
// DefaultRevocationOptions.
func NewOCSPChecker(opts *RevocationOptions) *OCSPChecker {
	if opts == nil {
		opts = DefaultRevocationOptions()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &OCSPChecker{
		opts:    *opts,
		client:  client,
		results: make(map[string]cachedResult),
		crls:    make(map[string]cachedCRL),
	}
}

// CheckRevocation checks the certificate against its issuer's OCSP
// responder, falling back to CRL distribution points when configured.
func (c *OCSPChecker) CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error {
	if cert == nil || issuer == nil {
		return fmt.Errorf("%w: nil certificate", ErrInvalidCertificate)
	}

	ocspErr := c.checkOCSP(ctx, cert, issuer)
	if ocspErr == nil {
		return nil
	}
	if ocspErr == ErrCertificateRevoked {
		return ocspErr
	}

	if c.opts.CRLFallback {
		crlErr := c.checkCRL(ctx, cert)
		if crlErr == nil {
			return nil
		}
		if crlErr == ErrCertificateRevoked {
			return crlErr
		}
		if c.opts.Strict {
			return fmt.Errorf("revocation status undetermined: OCSP: %v, CRL: %v", ocspErr, crlErr)
		}
		return nil
	}

	if c.opts.Strict {
		return fmt.Errorf("OCSP check failed: %w", ocspErr)
	}
	return nil
}

func (c *OCSPChecker) checkOCSP(ctx context.Context, cert, issuer *x509.Certificate) error {
	serial := cert.SerialNumber.String()
	if cached, ok := c.cachedResult(serial); ok {
		return cached
	}

	if len(cert.OCSPServer) == 0 {
		return fmt.Errorf("no OCSP server URL in certificate")
	}

	request, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return fmt.Errorf("creating OCSP request: %w", err)
	}

	raw, err := c.doOCSPRequest(ctx, cert.OCSPServer[0], request)
	if err != nil {
		return fmt.Errorf("OCSP request failed: %w", err)
	}

	resp, err := ocsp.ParseResponse(raw, issuer)
	if err != nil {
		return fmt.Errorf("parsing OCSP response: %w", err)
	}

	var result error
	switch resp.Status {
	case ocsp.Good:
		result = nil
	case ocsp.Revoked:
		result = ErrCertificateRevoked
	default:
		result = fmt.Errorf("OCSP status unknown")
	}

	c.storeResult(serial, result)
	return result
}

// doOCSPRequest tries HTTP POST first, then the GET encoding.
func (c *OCSPChecker) doOCSPRequest(ctx context.Context, responder string, request []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responder, bytes.NewReader(request))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.client.Do(req)
	if err != nil {
		return c.doOCSPGet(ctx, responder, request)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.doOCSPGet(ctx, responder, request)
	}
	return io.ReadAll(resp.Body)
}

func (c *OCSPChecker) doOCSPGet(ctx context.Context, responder string, request []byte) ([]byte, error) {
	encoded := base64.StdEncoding.EncodeToString(request)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, responder+"/"+url.PathEscape(encoded), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCSP responder returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *OCSPChecker) checkCRL(ctx context.Context, cert *x509.Certificate) error {
	if len(cert.CRLDistributionPoints) == 0 {
		return fmt.Errorf("no CRL distribution points in certificate")
	}

	var lastErr error
	for _, dp := range cert.CRLDistributionPoints {
		crl, err := c.fetchCRL(ctx, dp)
		if err != nil {
			lastErr = err
			continue
		}
		for _, revoked := range crl.RevokedCertificateEntries {
			if revoked.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				return ErrCertificateRevoked
			}
		}
		return nil
	}
	return fmt.Errorf("fetching CRL: %w", lastErr)
}

func (c *OCSPChecker) fetchCRL(ctx context.Context, dp string) (*x509.RevocationList, error) {
	c.mu.Lock()
	entry, ok := c.crls[dp]
	c.mu.Unlock()
	if ok && time.Since(entry.at) <= c.opts.CacheTTL {
		return entry.crl, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dp, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CRL server returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	crl, err := x509.ParseRevocationList(body)
	if err != nil {
		return nil, fmt.Errorf("parsing CRL: %w", err)
	}

	c.mu.Lock()
	c.crls[dp] = cachedCRL{crl: crl, at: time.Now()}
	c.mu.Unlock()
	return crl, nil
}

func (c *OCSPChecker) cachedResult(serial string) (error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.results[serial]
	if !ok || time.Since(entry.at) > c.opts.CacheTTL {
		return nil, false
	}
	return entry.err, true
}

func (c *OCSPChecker) storeResult(serial string, err error) {
	c.mu.Lock()
	c.results[serial] = cachedResult{err: err, at: time.Now()}
	c.mu.Unlock()
}

// RevocationAwareValidator layers revocation checking on top of another
// CertificateValidator.
type RevocationAwareValidator struct {
	base    CertificateValidator
	checker RevocationChecker
}

// NewRevocationAwareValidator wraps base so that every certificate passing
// base validation is additionally checked for revocation against the first
// intermediate as its issuer.
func NewRevocationAwareValidator(base CertificateValidator, checker RevocationChecker) *RevocationAwareValidator {
	return &RevocationAwareValidator{base: base, checker: checker}
}

// ValidateCertificate validates the certificate and then its revocation
// status.
func (v *RevocationAwareValidator) ValidateCertificate(cert *x509.Certificate, intermediates []*x509.Certificate, purpose string) error {
	if err := v.base.ValidateCertificate(cert, intermediates, purpose); err != nil {
		return err
	}
	if v.checker != nil && len(intermediates) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := v.checker.CheckRevocation(ctx, cert, intermediates[0]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCertificateChain validates a complete chain.
func (v *RevocationAwareValidator) ValidateCertificateChain(chain []*x509.Certificate, purpose string) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty chain", ErrInvalidCertificate)
	}
	return v.ValidateCertificate(chain[0], chain[1:], purpose)
}
