package ocspguard

import (
	"crypto/x509"
	"encoding/asn1"
)

// oidAuthorityInfoAccess is the X.509v3 Authority Information Access
// extension OID (1.3.6.1.5.5.7.1.1).
var oidAuthorityInfoAccess = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 1}

// oidOCSPAccessMethod is the accessMethod OID identifying an OCSP responder
// within an AccessDescription (1.3.6.1.5.5.7.48.1).
var oidOCSPAccessMethod = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1}

// generalNameURITag is the context-specific tag for the uniformResourceIdentifier
// choice of GeneralName (RFC 5280 §4.2.1.6).
const generalNameURITag = 6

// accessDescription mirrors RFC 5280 §4.2.2.1's AccessDescription, decoded
// with accessLocation left as a raw value so we can filter on its GeneralName
// tag before deciding whether it is a URI.
type accessDescription struct {
	AccessMethod   asn1.ObjectIdentifier
	AccessLocation asn1.RawValue
}

// ocspURLs extracts OCSP responder URLs from cert's Authority Information
// Access extension, in the order they appear. Mirrors the teacher's style of
// hand-decoding a named extension by OID (see the CRL Issuing Distribution
// Point handling this package's orchestrator test double uses) rather than
// relying on the stdlib's already-filtered x509.Certificate.OCSPServer.
//
// AIA entries whose accessLocation is not a URI are silently skipped, per
// the source; non-HTTP URI schemes are included without filtering, since
// normalizing or rejecting them is the caller's responsibility (they may be
// rewritten to point through a proxy before use).
func ocspURLs(cert *x509.Certificate) ([]string, error) {
	if cert == nil {
		return nil, newError(ErrUnknown, "ocsp_urls", errNilCertificate)
	}

	var urls []string
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oidAuthorityInfoAccess) {
			continue
		}
		var descs []accessDescription
		if _, err := asn1.Unmarshal(ext.Value, &descs); err != nil {
			return nil, newError(ErrNoOCSPURLs, "ocsp_urls", err)
		}
		for _, d := range descs {
			if !d.AccessMethod.Equal(oidOCSPAccessMethod) {
				continue
			}
			if d.AccessLocation.Tag != generalNameURITag {
				continue
			}
			urls = append(urls, string(d.AccessLocation.Bytes))
		}
	}

	if len(urls) == 0 {
		return nil, newError(ErrNoOCSPURLs, "ocsp_urls", nil)
	}
	return urls, nil
}

// marshalAIAExtension builds the DER value of an Authority Information
// Access extension naming each url as an OCSP access location. Used only by
// this package's own tests to construct fixture certificates; production
// certificates arrive with this extension already populated by their CA.
func marshalAIAExtension(urls []string) ([]byte, error) {
	descs := make([]accessDescription, len(urls))
	for i, u := range urls {
		descs[i] = accessDescription{
			AccessMethod:   oidOCSPAccessMethod,
			AccessLocation: asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: generalNameURITag, Bytes: []byte(u)},
		}
	}
	return asn1.Marshal(descs)
}
