package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Oracle bundles the economic policy knobs applied to the oracle engine at
// startup. Bond amounts are decimal strings in base units.
type Oracle struct {
	FeeBps         uint32 `toml:"FeeBps"`
	BondToken      string `toml:"BondToken"`
	MinBaseBond    string `toml:"MinBaseBond"`
	EscalationBond string `toml:"EscalationBond"`
	Owner          string `toml:"Owner"`
	Creator        string `toml:"Creator"`
	Arbitrator     string `toml:"Arbitrator"`
	FeeSink        string `toml:"FeeSink"`
}

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`
	Env         string `toml:"Env"`
	LogPath     string `toml:"LogPath"`
	Oracle      Oracle `toml:"Oracle"`
}

// Load loads the configuration from the given path, creating a default file
// on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "predikt-local"
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.Oracle.BondToken) == "" {
		cfg.Oracle.BondToken = "PDK"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the decoded values without resolving addresses; bech32
// parsing happens at wiring time where failures can name the field.
func (c *Config) Validate() error {
	if c.Oracle.FeeBps > 1_000 {
		return fmt.Errorf("config: Oracle.FeeBps %d above the 10%% cap", c.Oracle.FeeBps)
	}
	if _, err := parseBondAmount(c.Oracle.MinBaseBond); err != nil {
		return fmt.Errorf("config: Oracle.MinBaseBond: %w", err)
	}
	if _, err := parseBondAmount(c.Oracle.EscalationBond); err != nil {
		return fmt.Errorf("config: Oracle.EscalationBond: %w", err)
	}
	return nil
}

// MinBaseBondAmount returns the parsed minimum base bond.
func (c *Config) MinBaseBondAmount() (*big.Int, error) {
	return parseBondAmount(c.Oracle.MinBaseBond)
}

// EscalationBondAmount returns the parsed escalation bond.
func (c *Config) EscalationBondAmount() (*big.Int, error) {
	return parseBondAmount(c.Oracle.EscalationBond)
}

func parseBondAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  ":8545",
		DataDir:     "./predikt-data",
		NetworkName: "predikt-local",
		Oracle: Oracle{
			FeeBps:         50,
			BondToken:      "PDK",
			MinBaseBond:    "100",
			EscalationBond: "500",
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
