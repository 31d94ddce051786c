package ocspguard

import (
	"context"
	"crypto/x509"
)

// Policy names one of the evaluation strategies the orchestrator installs on
// a Trust object before re-evaluating it. Trust implementations translate
// Policy into whatever platform-native policy objects their trust primitive
// understands.
type Policy struct {
	// RequireOCSPResponse, when true, means the staple or OCSP response
	// already attached to the trust object must be present and positive.
	RequireOCSPResponse bool
	// NetworkDisabled, when true, forbids the trust primitive from making
	// its own network requests (we've either supplied a staple or already
	// fetched the OCSP response ourselves).
	NetworkDisabled bool
	// UseCRL selects CRL-based evaluation instead of OCSP-based evaluation.
	UseCRL bool
}

// Trust is the platform trust-evaluation oracle: a certificate chain plus a
// set of policies and a verdict slot. The core never implements trust
// evaluation itself (§1, explicitly out of scope) — production callers
// supply an adapter over their platform's real trust primitive; this
// package's tests use local doubles defined in its test files (one of them
// backed by an internal/crloracle Validator).
type Trust interface {
	// Chain returns the evaluated certificate chain, leaf first.
	Chain() []*x509.Certificate
	// StapledResponse returns the OCSP response delivered during the TLS
	// handshake, if any.
	StapledResponse() []byte
	// SetOCSPResponse attaches an OCSP response to the trust object as if it
	// had arrived in-band, for policies that require one.
	SetOCSPResponse(der []byte)
	// SetPolicy installs the given policy, replacing whatever prior policy
	// was set to a given re-evaluation.
	SetPolicy(Policy)
	// Evaluate re-evaluates trust under the currently installed policy and
	// reports whether the chain is trusted.
	Evaluate(ctx context.Context) (bool, error)
}

// leafAndIssuer extracts the leaf (index 0) and its issuer (index 1) from
// trust's evaluated chain. Self-signed roots are not special-cased: a
// single-certificate chain is refused rather than OCSP-checked against
// itself.
func leafAndIssuer(trust Trust) (leaf, issuer *x509.Certificate, err error) {
	chain := trust.Chain()
	if len(chain) < 1 || chain[0] == nil {
		return nil, nil, newError(ErrInvalidTrustObject, "leaf_and_issuer", errNoLeafCert)
	}
	if len(chain) < 2 || chain[1] == nil {
		return nil, nil, newError(ErrInvalidTrustObject, "leaf_and_issuer", errNoIssuerCert)
	}
	return chain[0], chain[1], nil
}
