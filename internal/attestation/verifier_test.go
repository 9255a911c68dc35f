package attestation

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type issuer struct {
	priv ed25519.PrivateKey
	kid  string
	set  jwk.Set
}

func newIssuer(t *testing.T) *issuer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	k, err := jwk.FromRaw(pub)
	require.NoError(t, err)
	require.NoError(t, jwk.AssignKeyID(k))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(k))
	return &issuer{priv: priv, kid: k.KeyID(), set: set}
}

func (i *issuer) sign(t *testing.T, body map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	hdr := jws.NewHeaders()
	require.NoError(t, hdr.Set(jws.KeyIDKey, i.kid))
	signed, err := jws.Sign(payload, jws.WithKey(jwa.EdDSA, i.priv, jws.WithProtectedHeaders(hdr)))
	require.NoError(t, err)
	return string(signed)
}

var now = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestVerifier(set jwk.Set) *Verifier {
	v := NewVerifier(set, "attestor", 10*time.Minute)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifyAcceptsValidAttestation(t *testing.T) {
	iss := newIssuer(t)
	proof := iss.sign(t, map[string]any{
		"fingerprint": "human-42",
		"iss":         "attestor",
		"iat":         now.Add(-time.Minute).Unix(),
		"exp":         now.Add(time.Hour).Unix(),
	})

	att, err := newTestVerifier(iss.set).Verify(context.Background(), proof)
	require.NoError(t, err)
	assert.Equal(t, "human-42", att.Fingerprint)
	assert.Equal(t, "attestor", att.Issuer)
}

func TestVerifyRejects(t *testing.T) {
	iss := newIssuer(t)
	other := newIssuer(t)
	valid := map[string]any{"fingerprint": "h", "iss": "attestor", "iat": now.Unix(), "exp": now.Add(time.Hour).Unix()}
	with := func(k string, v any) map[string]any {
		out := map[string]any{}
		for key, val := range valid {
			out[key] = val
		}
		if v == nil {
			delete(out, k)
		} else {
			out[k] = v
		}
		return out
	}

	cases := map[string]string{
		"malformed":        "not-a-jws",
		"foreign key":      other.sign(t, valid),
		"expired":          iss.sign(t, with("exp", now.Add(-time.Second).Unix())),
		"missing exp":      iss.sign(t, with("exp", nil)),
		"wrong issuer":     iss.sign(t, with("iss", "someone-else")),
		"no fingerprint":   iss.sign(t, with("fingerprint", "")),
		"too old":          iss.sign(t, with("iat", now.Add(-time.Hour).Unix())),
		"issued in future": iss.sign(t, with("iat", now.Add(time.Hour).Unix())),
	}
	v := newTestVerifier(iss.set)
	for name, proof := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), proof)
			require.ErrorIs(t, err, errs.ErrInvalidAttestation)
		})
	}
}

func TestLoadKeySetFromFile(t *testing.T) {
	iss := newIssuer(t)
	raw, err := json.Marshal(iss.set)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "jwks.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	set, err := LoadKeySet("", path)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())

	set, err = LoadKeySet(string(raw), "")
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())

	_, err = LoadKeySet("", "")
	require.Error(t, err)
}
