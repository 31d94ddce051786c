// Package crloracle implements disk-cached, IDP-extension-verified,
// replay-guarded CRL validation as a standalone validator usable as a
// realistic revocation oracle in tests. Nothing in the shipped
// cache/orchestrator surface imports this package: it exists so the
// orchestrator's own test suite can exercise the CRL-fallback strategies
// against something more convincing than a hand-stubbed yes/no double.
package crloracle

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

var idpOID = asn1.ObjectIdentifier{2, 5, 29, 28}

type distributionPointName struct {
	FullName []asn1.RawValue `asn1:"optional,tag:0"`
}

type issuingDistributionPoint struct {
	DistributionPoint distributionPointName `asn1:"optional,tag:0"`
}

// ErrRevoked is wrapped into the error CheckChain returns when a certificate
// in the chain appears on a distribution point's revocation list.
var ErrRevoked = errors.New("crloracle: certificate revoked")

type cacheKey struct {
	issuerName string
	skidBase64 string
	serialB64  string
}

type cacheValue struct {
	revoked   bool
	checkedAt time.Time
}

// Validator walks a certificate chain and consults each non-root
// certificate's CRL distribution points, the way this stack's transport
// layer validates peer chains on its own TLS connections. FailClosed governs
// whether a CRL that can't be obtained or parsed is treated as a validation
// failure (true) or silently skipped (false).
type Validator struct {
	FailClosed   bool
	HTTPClient   *http.Client
	CacheDir     string
	DiskCacheTTL time.Duration

	memTTL time.Duration
	mem    map[cacheKey]cacheValue
}

// NewValidator returns a Validator that caches downloaded CRLs under
// cacheDir and in memory for four hours, matching the teacher stack's
// defaults.
func NewValidator(failClosed bool, httpClient *http.Client, cacheDir string) *Validator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Validator{
		FailClosed:   failClosed,
		HTTPClient:   httpClient,
		CacheDir:     cacheDir,
		DiskCacheTTL: 4 * time.Hour,
		memTTL:       4 * time.Hour,
		mem:          make(map[cacheKey]cacheValue),
	}
}

// CheckChain validates every non-terminal certificate in chain (leaf first,
// root last) against its issuer, returning nil iff none are revoked.
func (v *Validator) CheckChain(chain []*x509.Certificate) error {
	for i := 0; i < len(chain)-1; i++ {
		if err := v.checkCertificate(chain[i], chain[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) checkCertificate(cert, issuer *x509.Certificate) error {
	key := cacheKey{
		issuerName: cert.Issuer.String(),
		skidBase64: base64.StdEncoding.EncodeToString(cert.SubjectKeyId),
		serialB64:  base64.StdEncoding.EncodeToString(cert.SerialNumber.Bytes()),
	}
	if cached, ok := v.mem[key]; ok {
		if cached.checkedAt.Add(v.memTTL).Before(time.Now()) {
			delete(v.mem, key)
		} else if cached.revoked {
			return fmt.Errorf("%w: %v (cached)", ErrRevoked, cert.Subject)
		} else {
			return nil
		}
	}

	if len(cert.CRLDistributionPoints) == 0 {
		if v.FailClosed {
			return fmt.Errorf("crloracle: %v has no CRL distribution points", cert.Subject)
		}
		return nil
	}

	for _, dp := range cert.CRLDistributionPoints {
		crl, err := v.crlForDistributionPoint(cert, issuer, dp)
		if err != nil {
			if v.FailClosed {
				return fmt.Errorf("crloracle: fetching CRL from %v: %w", dp, err)
			}
			continue
		}
		for _, entry := range crl.RevokedCertificateEntries {
			if cert.SerialNumber.Cmp(entry.SerialNumber) == 0 {
				v.mem[key] = cacheValue{revoked: true, checkedAt: time.Now()}
				return fmt.Errorf("%w: %v", ErrRevoked, cert.Subject)
			}
		}
	}
	v.mem[key] = cacheValue{revoked: false, checkedAt: time.Now()}
	return nil
}

// crlForDistributionPoint returns a verified, IDP-matched CRL for dp,
// preferring a fresh disk-cached copy and refusing to regress to an older
// CRL Number than what is already cached (replay guard).
func (v *Validator) crlForDistributionPoint(cert, issuer *x509.Certificate, dp string) (*x509.RevocationList, error) {
	cachedBytes, downloadedAt, _ := v.readDiskCache(dp)
	var cached *x509.RevocationList
	if cachedBytes != nil {
		cached, _ = x509.ParseRevocationList(cachedBytes)
	}

	stale := downloadedAt == nil ||
		downloadedAt.Add(v.DiskCacheTTL).Before(time.Now()) ||
		(cached != nil && cached.NextUpdate.Before(time.Now()))

	crl := cached
	if stale {
		fresh, err := v.download(dp)
		if err != nil {
			if crl == nil {
				return nil, err
			}
		} else if fresh.NextUpdate.Before(time.Now()) {
			if crl == nil {
				return nil, errors.New("crloracle: downloaded CRL is already expired")
			}
		} else if crl == nil || fresh.Number.Cmp(crl.Number) > 0 {
			crl = fresh
			if v.CacheDir != "" {
				_ = v.writeDiskCache(dp, fresh)
			}
		} else if fresh.Number.Cmp(crl.Number) < 0 {
			return nil, errors.New("crloracle: downloaded CRL is older than cached copy, possible replay")
		}
	}
	if crl == nil {
		return nil, fmt.Errorf("crloracle: no CRL available for %v", dp)
	}
	if err := crl.CheckSignatureFrom(issuer); err != nil {
		return nil, fmt.Errorf("crloracle: signature check failed: %w", err)
	}
	if !bytes.Equal(crl.RawIssuer, cert.RawIssuer) {
		return nil, errors.New("crloracle: CRL issuer does not match certificate issuer")
	}
	if err := verifyIdpExtension(crl, dp); err != nil {
		return nil, err
	}
	return crl, nil
}

func (v *Validator) download(url string) (*x509.RevocationList, error) {
	resp, err := v.HTTPClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("crloracle: status %v fetching %v", resp.StatusCode, url)
	}
	der, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return x509.ParseRevocationList(der)
}

func verifyIdpExtension(crl *x509.RevocationList, dp string) error {
	for _, ext := range append(crl.Extensions, crl.ExtraExtensions...) {
		if !ext.Id.Equal(idpOID) {
			continue
		}
		var idp issuingDistributionPoint
		if _, err := asn1.Unmarshal(ext.Value, &idp); err != nil {
			return fmt.Errorf("crloracle: unmarshaling IDP extension: %w", err)
		}
		for _, name := range idp.DistributionPoint.FullName {
			if string(name.Bytes) == dp {
				return nil
			}
		}
		return fmt.Errorf("crloracle: distribution point %v absent from CRL IDP extension", dp)
	}
	return nil
}

func (v *Validator) cacheFileName(dp string) string {
	return base64.URLEncoding.EncodeToString([]byte(dp))
}

func (v *Validator) writeDiskCache(dp string, crl *x509.RevocationList) error {
	return os.WriteFile(filepath.Join(v.CacheDir, v.cacheFileName(dp)), crl.Raw, 0600)
}

func (v *Validator) readDiskCache(dp string) ([]byte, *time.Time, error) {
	if v.CacheDir == "" {
		return nil, nil, nil
	}
	path := filepath.Join(v.CacheDir, v.cacheFileName(dp))
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	modTime := info.ModTime()
	return data, &modTime, nil
}
