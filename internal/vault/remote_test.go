package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rajarshidattapy/R-Credit/internal/config"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteGatewayDisburseSendsIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/disbursements", r.URL.Path)
		assert.Equal(t, "loan:1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		assert.Equal(t, "alice", req["identity_id"])
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "rcpt-1", "identity_id": "alice", "direction": "credit", "amount_minor": 500})
	}))
	defer srv.Close()

	gw, err := NewRemoteGateway(srv.URL+"/", "secret")
	require.NoError(t, err)

	receipt, err := gw.Disburse(context.Background(), "alice", 500, "loan:1")
	require.NoError(t, err)
	assert.Equal(t, "rcpt-1", receipt.ID)
	assert.Equal(t, int64(500), receipt.AmountMinor)
}

func TestRemoteGatewayMapsWithdrawalRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "insufficient_balance"})
	}))
	defer srv.Close()

	gw, err := NewRemoteGateway(srv.URL, "")
	require.NoError(t, err)

	_, err = gw.Withdraw(context.Background(), "alice", 500, "proof")
	require.ErrorIs(t, err, errs.ErrWithdrawalRejected)
}

func TestRemoteGatewayServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gw, err := NewRemoteGateway(srv.URL, "")
	require.NoError(t, err)

	_, err = gw.Balance(context.Background(), "alice")
	require.Error(t, err)
}

func TestGatewayFactory(t *testing.T) {
	gw, err := NewGatewayFromConfig(config.Config{VaultMode: ""}, nil, nil, nil, "INR")
	require.NoError(t, err)
	assert.IsType(t, &LedgerGateway{}, gw)

	_, err = NewGatewayFromConfig(config.Config{VaultMode: "remote"}, nil, nil, nil, "INR")
	require.Error(t, err)

	_, err = NewGatewayFromConfig(config.Config{VaultMode: "chain"}, nil, nil, nil, "INR")
	require.Error(t, err)
}
