// Package attestation verifies the signed proof-of-personhood tokens issued
// by the external attestation service.
package attestation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/rajarshidattapy/R-Credit/internal/config"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/identity"
)

const clockSkew = time.Minute

type claims struct {
	Fingerprint string `json:"fingerprint"`
	Issuer      string `json:"iss"`
	IssuedAt    int64  `json:"iat"`
	ExpiresAt   int64  `json:"exp"`
}

// Verifier checks compact JWS attestations against a JWK set.
type Verifier struct {
	keys   jwk.Set
	issuer string
	maxAge time.Duration
	now    func() time.Time
}

func NewVerifier(keys jwk.Set, issuer string, maxAge time.Duration) *Verifier {
	return &Verifier{
		keys:   keys,
		issuer: strings.TrimSpace(issuer),
		maxAge: maxAge,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func NewVerifierFromConfig(cfg config.Config) (*Verifier, error) {
	keys, err := LoadKeySet(cfg.AttestationJWKS, cfg.AttestationJWKSFile)
	if err != nil {
		return nil, err
	}
	return NewVerifier(keys, cfg.AttestationIssuer, cfg.AttestationMaxAge), nil
}

// LoadKeySet parses the inline JWKS when present, else reads the file.
func LoadKeySet(inline, path string) (jwk.Set, error) {
	if strings.TrimSpace(inline) != "" {
		set, err := jwk.ParseString(inline)
		if err != nil {
			return nil, fmt.Errorf("parse ATTESTATION_JWKS: %w", err)
		}
		return set, nil
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("missing ATTESTATION_JWKS or ATTESTATION_JWKS_FILE")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ATTESTATION_JWKS_FILE: %w", err)
	}
	set, err := jwk.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse ATTESTATION_JWKS_FILE: %w", err)
	}
	return set, nil
}

func (v *Verifier) Verify(_ context.Context, proof string) (*identity.Attestation, error) {
	payload, err := jws.Verify([]byte(strings.TrimSpace(proof)), jws.WithKeySet(v.keys,
		jws.WithInferAlgorithmFromKey(true),
		jws.WithRequireKid(false),
	))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidAttestation, err)
	}

	var c claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("%w: malformed claims", errs.ErrInvalidAttestation)
	}
	if strings.TrimSpace(c.Fingerprint) == "" {
		return nil, fmt.Errorf("%w: missing fingerprint", errs.ErrInvalidAttestation)
	}
	if v.issuer != "" && c.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", errs.ErrInvalidAttestation)
	}

	now := v.now()
	if c.ExpiresAt == 0 || !now.Before(time.Unix(c.ExpiresAt, 0)) {
		return nil, fmt.Errorf("%w: expired", errs.ErrInvalidAttestation)
	}
	issuedAt := time.Unix(c.IssuedAt, 0).UTC()
	if c.IssuedAt != 0 {
		if issuedAt.After(now.Add(clockSkew)) {
			return nil, fmt.Errorf("%w: issued in the future", errs.ErrInvalidAttestation)
		}
		if v.maxAge > 0 && now.Sub(issuedAt) > v.maxAge {
			return nil, fmt.Errorf("%w: too old", errs.ErrInvalidAttestation)
		}
	}

	return &identity.Attestation{
		Fingerprint: c.Fingerprint,
		Issuer:      c.Issuer,
		IssuedAt:    issuedAt,
		ExpiresAt:   time.Unix(c.ExpiresAt, 0).UTC(),
	}, nil
}
