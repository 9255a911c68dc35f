package vault

import (
	"fmt"
	"strings"

	"github.com/rajarshidattapy/R-Credit/internal/config"
	domain "github.com/rajarshidattapy/R-Credit/internal/domain/vault"
)

func NewGatewayFromConfig(cfg config.Config, store EntryStore, resolver IdentityResolver, locker Locker, currency string) (domain.Gateway, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.VaultMode))
	switch mode {
	case "", "ledger":
		return NewLedgerGateway(store, resolver, locker, currency), nil
	case "remote":
		return NewRemoteGateway(cfg.VaultRemoteURL, cfg.VaultRemoteAPIKey)
	default:
		return nil, fmt.Errorf("invalid VAULT_MODE: %s", cfg.VaultMode)
	}
}
