package ocspguard

import (
	"context"
	"crypto/x509"
	"testing"
)

// fakeTrust is a minimal Trust implementation for unit tests that don't need
// the fuller internal/crloracle double.
type fakeTrust struct {
	chain     []*x509.Certificate
	stapled   []byte
	setResp   []byte
	policy    Policy
	evaluate  func(Policy) (bool, error)
	evaluated []Policy
}

func (f *fakeTrust) Chain() []*x509.Certificate  { return f.chain }
func (f *fakeTrust) StapledResponse() []byte     { return f.stapled }
func (f *fakeTrust) SetOCSPResponse(der []byte)  { f.setResp = der }
func (f *fakeTrust) SetPolicy(p Policy)          { f.policy = p }
func (f *fakeTrust) Evaluate(context.Context) (bool, error) {
	f.evaluated = append(f.evaluated, f.policy)
	if f.evaluate != nil {
		return f.evaluate(f.policy)
	}
	return false, nil
}

func TestUnitLeafAndIssuer(t *testing.T) {
	leaf, issuer := testLeafAndIssuer(t)

	testcases := []struct {
		desc    string
		chain   []*x509.Certificate
		wantErr ErrorKind
	}{
		{desc: "empty chain", chain: nil, wantErr: ErrInvalidTrustObject},
		{desc: "single cert chain", chain: []*x509.Certificate{leaf}, wantErr: ErrInvalidTrustObject},
		{desc: "full chain", chain: []*x509.Certificate{leaf, issuer}, wantErr: ErrUnknown},
	}
	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			trust := &fakeTrust{chain: tc.chain}
			l, i, err := leafAndIssuer(trust)
			if tc.wantErr != ErrUnknown {
				if err == nil {
					t.Fatal("expected error")
				}
				if KindOf(err) != tc.wantErr {
					t.Errorf("KindOf() = %v, want %v", KindOf(err), tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("leafAndIssuer() error = %v", err)
			}
			if l != leaf || i != issuer {
				t.Error("leafAndIssuer() returned unexpected certificates")
			}
		})
	}
}
