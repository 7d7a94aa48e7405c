// Package config loads process configuration from the environment, with
// optional .env support.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/silo-network/silo/pkg/types"
)

type Config struct {
	LedgerRPC    string
	IPFSAPI      string
	IndexDB      string
	KeystorePath string
	DataDir      string
	Passphrase   string

	ReconcileInterval time.Duration
	RPCTimeout        time.Duration
	Policy            types.UnitPolicy
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in when present. Values a command requires but does not
// find are reported by the Require* helpers, not here, so key-management
// commands work without a ledger endpoint.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := os.Getenv("SILO_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w: %v", types.ErrConfiguration, err)
		}
		dataDir = filepath.Join(home, ".silo")
	}

	cfg := &Config{
		LedgerRPC:         os.Getenv("SILO_LEDGER_RPC"),
		IPFSAPI:           envOr("SILO_IPFS_API", "localhost:5001"),
		IndexDB:           envOr("SILO_INDEX_DB", filepath.Join(dataDir, "index.db")),
		KeystorePath:      envOr("SILO_KEYSTORE", filepath.Join(dataDir, "keystore.json")),
		DataDir:           dataDir,
		Passphrase:        os.Getenv("SILO_KEY_PASSPHRASE"),
		ReconcileInterval: 5 * time.Minute,
		RPCTimeout:        30 * time.Second,
	}

	if v := os.Getenv("SILO_RECONCILE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SILO_RECONCILE_INTERVAL: %w: %v", types.ErrConfiguration, err)
		}
		cfg.ReconcileInterval = d
	}
	if v := os.Getenv("SILO_RPC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SILO_RPC_TIMEOUT: %w: %v", types.ErrConfiguration, err)
		}
		cfg.RPCTimeout = d
	}
	if v := os.Getenv("SILO_FRACTIONAL_UNITS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("SILO_FRACTIONAL_UNITS: %w: %v", types.ErrConfiguration, err)
		}
		cfg.Policy.AllowFractional = b
	}
	return cfg, nil
}

// RequireLedger fails with a configuration error when no ledger endpoint is
// set.
func (c *Config) RequireLedger() error {
	if c.LedgerRPC == "" {
		return fmt.Errorf("SILO_LEDGER_RPC not set: %w", types.ErrConfiguration)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
