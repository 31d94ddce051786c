// Package ocspguard performs certificate revocation checking via OCSP for
// callers that proxy all of their own network traffic and cannot let the
// platform's built-in revocation machinery make an out-of-band request that
// would otherwise leak the identity of the certificate being validated.
//
// The package intercepts a TLS trust evaluation, resolves OCSP itself
// through a caller-supplied transport, caches successful responses keyed by
// certificate fingerprint, and reports a trust decision back to the caller.
// CRL fetching, OCSP signature verification and the OCSP nonce extension are
// out of scope; see SPEC_FULL.md for the full component breakdown.
package ocspguard
