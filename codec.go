package ocspguard

import (
	"crypto"
	"crypto/x509"
	"errors"
	"time"

	"golang.org/x/crypto/ocsp"
)

// defaultHashAlgorithm is the CertID hash algorithm used to build requests,
// per RFC 6960 §4.1 and spec: SHA-1 of issuer name and key.
const defaultHashAlgorithm = crypto.SHA1

var errNilCertificate = errors.New("nil certificate")

// SingleResponse is the decoded view of one OCSP SingleResponse entry.
type SingleResponse struct {
	ThisUpdate time.Time
	NextUpdate time.Time // zero value means "no nextUpdate present"
}

// HasNextUpdate reports whether the response carries a nextUpdate field.
func (s SingleResponse) HasNextUpdate() bool {
	return !s.NextUpdate.IsZero()
}

// expired reports whether s is expired as of now: nextUpdate is present and
// nextUpdate <= now. Absent nextUpdate, a SingleResponse never expires here
// for cache-retention purposes; the platform enforces freshness separately.
func (s SingleResponse) expired(now time.Time) bool {
	return s.HasNextUpdate() && !s.NextUpdate.After(now)
}

// Response is the decoded view of an OCSP response: raw DER bytes plus the
// fields the cache and orchestrator need to make a decision.
type Response struct {
	Raw             []byte
	Status          int // RFC 6960 §4.2.1: 0 successful, 1-6 otherwise
	SingleResponses []SingleResponse
}

// Successful reports whether the response status is "successful" (0).
func (r *Response) Successful() bool {
	return r.Status == ocsp.Success
}

// Expired reports whether r is expired: non-successful responses are always
// considered expired; a successful response is expired if any contained
// SingleResponse is expired as of now. now should be sampled once per
// caller-level operation to avoid drift across a batch of comparisons.
func (r *Response) Expired(now time.Time) bool {
	if !r.Successful() {
		return true
	}
	for _, sr := range r.SingleResponses {
		if sr.expired(now) {
			return true
		}
	}
	return false
}

// buildRequest constructs a one-entry DER-encoded OCSPRequest per RFC 6960
// §4.1 for leaf, signed by issuer: CertID = SHA-1 of the issuer's subject
// name and SubjectPublicKeyInfo, plus leaf's serial number. No nonce is
// added and the request itself is not signed, matching the source.
func buildRequest(leaf, issuer *x509.Certificate) ([]byte, error) {
	if leaf == nil || issuer == nil {
		return nil, newError(ErrConstructingRequest, "build_request", errNilCertificate)
	}
	der, err := ocsp.CreateRequest(leaf, issuer, &ocsp.RequestOptions{Hash: defaultHashAlgorithm})
	if err != nil {
		return nil, newError(ErrConstructingRequest, "build_request", err)
	}
	return der, nil
}

// parseResponse decodes a DER OCSPResponse into our Response view.
//
// golang.org/x/crypto/ocsp.ParseResponse only returns a usable *ocsp.Response
// when the RFC 6960 §4.2.1 top-level responseStatus is successful; any other
// responseStatus (malformedRequest, tryLater, ...) comes back as an
// ocsp.ResponseError instead, and the *ocsp.Response.Status field it does
// return on success is the per-certificate CertStatus (good/revoked/unknown),
// not the protocol status. We report the protocol status spec §3/§4.A
// requires, recovering it from ocsp.ResponseError for the non-success case
// rather than conflating it with CertStatus.
//
// We deliberately do not supply an issuer certificate to the underlying
// codec: verifying the responder's signature is explicitly out of scope
// (Non-goal, §1) and not required by any caller of this package. The
// codec's own ASN.1 decoding is the only thing we rely on.
func parseResponse(der []byte) (*Response, error) {
	raw, err := ocsp.ParseResponse(der, nil)
	if err != nil {
		var respErr ocsp.ResponseError
		if errors.As(err, &respErr) {
			return &Response{Raw: der, Status: int(respErr.Status)}, nil
		}
		return nil, newError(ErrInvalidResponseData, "parse_response", err)
	}
	resp := &Response{
		Raw:    der,
		Status: int(ocsp.Success),
		SingleResponses: []SingleResponse{{
			ThisUpdate: raw.ThisUpdate,
			NextUpdate: raw.NextUpdate,
		}},
	}
	return resp, nil
}
