// Package config builds the immutable runtime configuration for the
// governor process. One strongly-typed value is constructed at startup and
// passed into every constructor; behavior toggles are constructor
// parameters, never runtime string lookups.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"regimegov/internal/contract"
	"regimegov/internal/engine"
	"regimegov/internal/ledger"
	"regimegov/internal/supervisor"
)

// #region config
// Config is the operator-facing configuration bundle.
type Config struct {
	NodeID        string `yaml:"node_id"`
	EngineVersion string `yaml:"engine_version"`

	LedgerPath string `yaml:"ledger_path"`
	IndexPath  string `yaml:"index_path"`

	HaltOnDrift bool `yaml:"halt_on_drift"`

	OscillationWindowS   float64 `yaml:"oscillation_window_s"`
	OscillationThreshold int     `yaml:"oscillation_threshold"`

	// ContractPath overrides the canonical contract constants. Empty means
	// the built-in table.
	ContractPath string `yaml:"contract_path"`
}

// Default returns the configuration used when no file or env is supplied.
func Default() Config {
	return Config{
		NodeID:               "node-local",
		EngineVersion:        "orp-1.0",
		LedgerPath:           "avl.log",
		OscillationWindowS:   300,
		OscillationThreshold: 3,
	}
}

// #endregion config

// #region load
// Load reads a YAML config file over the defaults, then applies env
// overrides (GOV_NODE_ID, GOV_LEDGER_PATH, GOV_HALT_ON_DRIFT,
// GOV_CONTRACT_PATH). Pass an empty path to skip the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("GOV_NODE_ID"); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv("GOV_LEDGER_PATH"); v != "" {
		cfg.LedgerPath = v
	}
	if v := os.Getenv("GOV_HALT_ON_DRIFT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse GOV_HALT_ON_DRIFT=%q: %w", v, err)
		}
		cfg.HaltOnDrift = b
	}
	if v := os.Getenv("GOV_CONTRACT_PATH"); v != "" {
		cfg.ContractPath = v
	}
	return cfg, nil
}

// #endregion load

// #region build
// Contract resolves the contract constants this process runs under.
func (c Config) Contract() (*contract.Contract, error) {
	if c.ContractPath == "" {
		return contract.Default(), nil
	}
	return contract.Load(c.ContractPath)
}

// LedgerConfig maps onto the verification ledger's configuration.
func (c Config) LedgerConfig() ledger.Config {
	return ledger.Config{
		Path:          c.LedgerPath,
		IndexPath:     c.IndexPath,
		NodeID:        c.NodeID,
		EngineVersion: c.EngineVersion,
	}
}

// SupervisorConfig maps onto the supervisor's policy bundle.
func (c Config) SupervisorConfig(ct *contract.Contract) supervisor.Config {
	eng := engine.Config{
		Contract:             ct,
		OscillationWindow:    time.Duration(c.OscillationWindowS * float64(time.Second)),
		OscillationThreshold: c.OscillationThreshold,
	}
	if eng.OscillationWindow <= 0 {
		eng.OscillationWindow = 300 * time.Second
	}
	if eng.OscillationThreshold <= 0 {
		eng.OscillationThreshold = 3
	}
	return supervisor.Config{Engine: eng, HaltOnDrift: c.HaltOnDrift}
}

// #endregion build
