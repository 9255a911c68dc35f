package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	domain "github.com/rajarshidattapy/R-Credit/internal/domain/vault"
)

// RemoteGateway talks JSON over HTTP to an external custody service.
type RemoteGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRemoteGateway(baseURL, apiKey string) (*RemoteGateway, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing VAULT_REMOTE_URL")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid VAULT_REMOTE_URL: %w", err)
	}
	return &RemoteGateway{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}, nil
}

func (g *RemoteGateway) Disburse(ctx context.Context, identityID string, amountMinor int64, idempotencyKey string) (*domain.Receipt, error) {
	if amountMinor <= 0 {
		return nil, errs.ErrInvalidAmount
	}
	var out domain.Receipt
	err := g.call(ctx, http.MethodPost, "/disbursements", idempotencyKey, map[string]any{
		"identity_id":  identityID,
		"amount_minor": amountMinor,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *RemoteGateway) Withdraw(ctx context.Context, identityID string, amountMinor int64, proof string) (*domain.Receipt, error) {
	if amountMinor <= 0 {
		return nil, errs.ErrInvalidAmount
	}
	var out domain.Receipt
	err := g.call(ctx, http.MethodPost, "/withdrawals", "", map[string]any{
		"identity_id":  identityID,
		"amount_minor": amountMinor,
		"attestation":  proof,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *RemoteGateway) Balance(ctx context.Context, identityID string) (*domain.Balance, error) {
	var out domain.Balance
	if err := g.call(ctx, http.MethodGet, "/balances/"+url.PathEscape(identityID), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *RemoteGateway) call(ctx context.Context, method, path, idempotencyKey string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if resp.StatusCode == http.StatusUnprocessableEntity && path == "/withdrawals" {
			return fmt.Errorf("%w: %s", errs.ErrWithdrawalRejected, payload.Error)
		}
		return fmt.Errorf("vault %s %s: status %d %s", method, path, resp.StatusCode, payload.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
