package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPolicyCommandPrintsEffectivePolicy(t *testing.T) {
	t.Setenv("CREDIT_POLICY_FILE", "")
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repayment_delta: 75\n"), 0o600))

	out, err := run(t, "policy", "--policy", path)
	require.NoError(t, err)

	var got credit.Policy
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, int64(75), got.RepaymentDelta)
	assert.Equal(t, credit.DefaultPolicy().AllowedDurations, got.AllowedDurations)
}

func TestPolicyCommandRejectsInvalidPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strike_threshold: 0\n"), 0o600))

	_, err := run(t, "policy", "--policy", path)
	require.Error(t, err)
}

func TestStoreCommandsRefuseMemoryDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	_, err := run(t, "sweep")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")

	_, err = run(t, "replay")
	require.Error(t, err)
}
