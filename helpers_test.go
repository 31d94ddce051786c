package ocspguard

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"
)

// ocspGood/ocspRevoked mirror the status constants from golang.org/x/crypto/ocsp
// so test tables read naturally without importing the package everywhere.
const (
	ocspGood    = ocsp.Good
	ocspRevoked = ocsp.Revoked
)

// testChain bundles a generated CA/leaf pair with the CA's private key, since
// the issuer doubles as OCSP responder in every test in this package (we
// never verify the responder signature ourselves, so a self-signed response
// is sufficient fixture data).
type testChain struct {
	leaf      *x509.Certificate
	issuer    *x509.Certificate
	issuerKey *rsa.PrivateKey
}

// testLeafAndIssuer builds a throwaway two-certificate chain (self-signed CA
// plus a leaf it issues) for use in codec and trust tests. Generated
// fresh per call so tests don't share mutable state through a package-level
// certificate.
func testLeafAndIssuer(t *testing.T) (leaf, issuer *x509.Certificate) {
	t.Helper()
	c := testNewChain(t, "http://ocsp.example.test/")
	return c.leaf, c.issuer
}

func testNewChain(t *testing.T, ocspURLs ...string) *testChain {
	t.Helper()

	issuerKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate issuer key: %v", err)
	}
	issuerTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test issuer"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	issuerDER, err := x509.CreateCertificate(rand.Reader, issuerTemplate, issuerTemplate, &issuerKey.PublicKey, issuerKey)
	if err != nil {
		t.Fatalf("create issuer cert: %v", err)
	}
	issuer, err := x509.ParseCertificate(issuerDER)
	if err != nil {
		t.Fatalf("parse issuer cert: %v", err)
	}

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate leaf key: %v", err)
	}
	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "test leaf"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	if len(ocspURLs) > 0 {
		der, err := marshalAIAExtension(ocspURLs)
		if err != nil {
			t.Fatalf("marshal AIA extension: %v", err)
		}
		leafTemplate.ExtraExtensions = []pkix.Extension{{Id: oidAuthorityInfoAccess, Value: der}}
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, issuer, &leafKey.PublicKey, issuerKey)
	if err != nil {
		t.Fatalf("create leaf cert: %v", err)
	}
	leaf, err := x509.ParseCertificate(leafDER)
	if err != nil {
		t.Fatalf("parse leaf cert: %v", err)
	}
	return &testChain{leaf: leaf, issuer: issuer, issuerKey: issuerKey}
}

// sign builds a signed, DER-encoded OCSPResponse asserting status for the
// chain's leaf, with c.issuer acting as its own OCSP responder.
func (c *testChain) sign(t *testing.T, status int, thisUpdate, nextUpdate time.Time) []byte {
	t.Helper()
	tmpl := ocsp.Response{
		Status:       status,
		SerialNumber: c.leaf.SerialNumber,
		ThisUpdate:   thisUpdate,
		NextUpdate:   nextUpdate,
	}
	der, err := ocsp.CreateResponse(c.issuer, c.issuer, tmpl, c.issuerKey)
	if err != nil {
		t.Fatalf("create ocsp response: %v", err)
	}
	return der
}

// ocspProtocolStatusOnly DER-encodes a bare OCSPResponse carrying only a
// non-success responseStatus (RFC 6960 §4.2.1), with responseBytes absent as
// the grammar requires for that case. Used to exercise the codec's handling
// of malformedRequest/tryLater/internalError/sigRequired/unauthorized, none
// of which ocsp.CreateResponse can itself produce.
func ocspProtocolStatusOnly(t *testing.T, status int) []byte {
	t.Helper()
	der, err := asn1.Marshal(struct {
		Status asn1.Enumerated
	}{Status: asn1.Enumerated(status)})
	if err != nil {
		t.Fatalf("marshal bare OCSPResponse: %v", err)
	}
	return der
}

