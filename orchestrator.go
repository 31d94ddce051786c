package ocspguard

import (
	"context"
	"sync"
	"time"
)

// CompletionAction mirrors the handshake-completion contract of §4.F: the
// orchestrator's caller drives a platform authentication challenge to one of
// these three outcomes once Evaluate returns.
type CompletionAction int

const (
	// PerformDefaultHandling lets the platform's own default trust decision
	// stand; chosen whenever Evaluate returns false.
	PerformDefaultHandling CompletionAction = iota
	// UseCredential accepts trust's chain; chosen iff Evaluate returns true.
	UseCredential
	// CancelAuthenticationChallenge aborts the handshake outright. Evaluate
	// never returns this itself — it is here for callers that want to map a
	// false verdict to a harder failure than PerformDefaultHandling in their
	// own policy.
	CancelAuthenticationChallenge
)

func (a CompletionAction) String() string {
	switch a {
	case UseCredential:
		return "use_credential"
	case CancelAuthenticationChallenge:
		return "cancel_authentication_challenge"
	default:
		return "perform_default_handling"
	}
}

// Options configures an Orchestrator and, by extension, the Cache lookups it
// performs (§6, "Configurable options"). The zero value is a usable default:
// unbounded timeout, no URL rewriting, the package's noop logger, and a
// nil Transport (singleRequest then uses a fresh http.Client with no proxy).
type Options struct {
	Timeout     time.Duration
	Logger      Logger
	URLRewriter func(string) (string, bool)
	Transport   Transport
}

// Orchestrator implements the five-strategy trust-evaluation dispatch of
// §4.F: staple, then cache/remote OCSP, then CRL with an increasingly
// permissive policy, then a default refusal.
type Orchestrator struct {
	Cache   *Cache
	Options Options

	mu        sync.Mutex
	trustLock map[Trust]*sync.Mutex
}

// NewOrchestrator returns an Orchestrator backed by cache, using opts as the
// default per-evaluation configuration.
func NewOrchestrator(cache *Cache, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = newNoopLogger()
	}
	return &Orchestrator{
		Cache:     cache,
		Options:   opts,
		trustLock: map[Trust]*sync.Mutex{},
	}
}

// lockFor returns the per-trust-object mutex that serializes concurrent
// Evaluate calls against the same Trust (§4.F "Warning", §5 shared-resource
// policy), creating it on first use.
func (o *Orchestrator) lockFor(trust Trust) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.trustLock[trust]
	if !ok {
		m = &sync.Mutex{}
		o.trustLock[trust] = m
	}
	return m
}

// Evaluate re-evaluates trust against each strategy in turn, stopping at the
// first one the platform trusts. overrides, when non-nil, replaces the
// default URLRewriter/Transport for this call only, without mutating
// o.Options (§4.F, "overrides allows a caller to replace ... for a single
// evaluation without mutating shared state").
func (o *Orchestrator) Evaluate(ctx context.Context, trust Trust, overrides *Options) (bool, CompletionAction, error) {
	if err := ctx.Err(); err != nil {
		return false, PerformDefaultHandling, err
	}

	lock := o.lockFor(trust)
	lock.Lock()
	defer lock.Unlock()

	opts := o.Options
	if overrides != nil {
		if overrides.URLRewriter != nil {
			opts.URLRewriter = overrides.URLRewriter
		}
		if overrides.Transport != nil {
			opts.Transport = overrides.Transport
		}
		if overrides.Timeout != 0 {
			opts.Timeout = overrides.Timeout
		}
	}

	// 1. Staple: require a positive response, forbid the platform from
	// making its own network request.
	trust.SetPolicy(Policy{RequireOCSPResponse: true, NetworkDisabled: true})
	if trusted, _ := trust.Evaluate(ctx); trusted {
		return true, UseCredential, nil
	}

	// 2. Cache / remote OCSP.
	leaf, issuer, err := leafAndIssuer(trust)
	if err != nil {
		opts.Logger.Debugf("leaf_and_issuer failed, skipping OCSP strategy: %v", err)
	} else {
		result, lookupErr := o.Cache.Lookup(ctx, leaf, issuer, LookupOptions{
			Timeout:     opts.Timeout,
			URLRewriter: opts.URLRewriter,
			Transport:   opts.Transport,
		})
		if lookupErr != nil {
			opts.Logger.Debugf("ocsp lookup failed, falling back to CRL strategies: %v", lookupErr)
		} else {
			trust.SetOCSPResponse(result.Response.Raw)
			trust.SetPolicy(Policy{RequireOCSPResponse: true, NetworkDisabled: true})
			if trusted, _ := trust.Evaluate(ctx); trusted {
				return true, UseCredential, nil
			}
		}
	}

	// 3. CRL, positive-response required, network enabled.
	trust.SetPolicy(Policy{RequireOCSPResponse: true, NetworkDisabled: false, UseCRL: true})
	if trusted, _ := trust.Evaluate(ctx); trusted {
		return true, UseCredential, nil
	}

	// 4. CRL, network enabled, no positive-response requirement.
	trust.SetPolicy(Policy{RequireOCSPResponse: false, NetworkDisabled: false, UseCRL: true})
	if trusted, _ := trust.Evaluate(ctx); trusted {
		return true, UseCredential, nil
	}

	// 5. Default.
	return false, PerformDefaultHandling, nil
}
