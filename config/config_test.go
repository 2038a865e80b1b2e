package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.Equal(t, "predikt-local", cfg.NetworkName)
	require.Equal(t, "PDK", cfg.Oracle.BondToken)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config file should be written")

	// A second load reads the file it just wrote.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, again.RPCAddress)
}

func TestLoadParsesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
RPCAddress = ":9000"
DataDir = "/var/lib/predikt"
NetworkName = "predikt-test"

[Oracle]
FeeBps = 250
BondToken = "PDK"
MinBaseBond = "1000"
EscalationBond = "5000"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.RPCAddress)
	require.Equal(t, uint32(250), cfg.Oracle.FeeBps)

	minBond, err := cfg.MinBaseBondAmount()
	require.NoError(t, err)
	require.Zero(t, minBond.Cmp(big.NewInt(1000)))

	escalation, err := cfg.EscalationBondAmount()
	require.NoError(t, err)
	require.Zero(t, escalation.Cmp(big.NewInt(5000)))
}

func TestLoadAppliesDefaultsToSparseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`DataDir = "/tmp/x"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.Equal(t, "predikt-local", cfg.NetworkName)
	require.Equal(t, "PDK", cfg.Oracle.BondToken)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{Oracle: Oracle{FeeBps: 1_001}}
	require.Error(t, cfg.Validate())

	cfg = &Config{Oracle: Oracle{MinBaseBond: "not-a-number"}}
	require.Error(t, cfg.Validate())

	cfg = &Config{Oracle: Oracle{EscalationBond: "-5"}}
	require.Error(t, cfg.Validate())

	cfg = &Config{Oracle: Oracle{FeeBps: 1_000, MinBaseBond: "100", EscalationBond: ""}}
	require.NoError(t, cfg.Validate())
}
