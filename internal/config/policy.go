package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"gopkg.in/yaml.v3"
)

// LoadPolicy reads a YAML credit policy and overlays it on the defaults.
// An empty path yields the defaults.
func LoadPolicy(path string) (credit.Policy, error) {
	policy := credit.DefaultPolicy()
	if strings.TrimSpace(path) == "" {
		return policy, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return credit.Policy{}, fmt.Errorf("read credit policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return credit.Policy{}, fmt.Errorf("parse credit policy %s: %w", path, err)
	}
	policy.CurrencyCode = strings.ToUpper(strings.TrimSpace(policy.CurrencyCode))
	if err := policy.Validate(); err != nil {
		return credit.Policy{}, fmt.Errorf("invalid credit policy %s: %w", path, err)
	}
	return policy, nil
}
