// config.go - Configuration management for the zeth client daemon
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/HamzaZF/zeth-client/internal/merkle"
)

const (
	ProverReference = "reference"
	ProverGroth16   = "groth16"
	ProverRemote    = "remote"

	StoreFile   = "file"
	StorePebble = "pebble"
)

// ProverConfig selects where proofs come from. The reference prover and a
// remote prover share Secret, which the local ledger uses to verify.
type ProverConfig struct {
	Kind           string  `yaml:"kind"`
	Secret         string  `yaml:"secret"`
	ProvingKey     string  `yaml:"proving_key"`
	VerifyingKey   string  `yaml:"verifying_key"`
	RemoteURL      string  `yaml:"remote_url"`
	RateLimit      float64 `yaml:"rate_limit"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

type WalletConfig struct {
	Store string `yaml:"store"`
	Dir   string `yaml:"dir"`
}

// Config represents the daemon configuration
type Config struct {
	TreeDepth   int    `yaml:"tree_depth"`
	RootHistory int    `yaml:"root_history"`
	LedgerPath  string `yaml:"ledger_path"`

	Prover ProverConfig `yaml:"prover"`
	Wallet WalletConfig `yaml:"wallet"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	ListenAddr    string        `yaml:"listen_addr"`
	SyncWorkers   int           `yaml:"sync_workers"`
	ProofTimeout  time.Duration `yaml:"proof_timeout"`
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		TreeDepth:   32,
		RootHistory: 64,
		LedgerPath:  "ledger.json",
		Prover: ProverConfig{
			Kind:           ProverReference,
			Secret:         "zeth-reference",
			ProvingKey:     "keys/joinsplit_pk.bin",
			VerifyingKey:   "keys/joinsplit_vk.bin",
			RemoteURL:      "http://127.0.0.1:8085/prover",
			RateLimit:      1,
			RateLimitBurst: 4,
		},
		Wallet: WalletConfig{
			Store: StoreFile,
			Dir:   "wallets",
		},
		LogLevel:      "info",
		ListenAddr:    "127.0.0.1:8085",
		SyncWorkers:   8,
		ProofTimeout:  5 * time.Minute,
		SubmitTimeout: 30 * time.Second,
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		config := DefaultConfig()
		if err := yaml.Unmarshal(raw, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return config, nil
	}

	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	raw, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configPath, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TreeDepth < 1 || c.TreeDepth > merkle.MaxDepth {
		return fmt.Errorf("tree_depth must be in [1, %d], got %d", merkle.MaxDepth, c.TreeDepth)
	}
	if c.RootHistory <= 0 {
		return fmt.Errorf("root_history must be positive")
	}
	switch c.Prover.Kind {
	case ProverReference:
		if c.Prover.Secret == "" {
			return fmt.Errorf("prover.secret is required for the reference prover")
		}
	case ProverGroth16:
	case ProverRemote:
		if c.Prover.RemoteURL == "" || c.Prover.Secret == "" {
			return fmt.Errorf("prover.remote_url and prover.secret are required for a remote prover")
		}
	default:
		return fmt.Errorf("unknown prover.kind %q", c.Prover.Kind)
	}
	if c.Prover.RateLimit <= 0 || c.Prover.RateLimitBurst <= 0 {
		return fmt.Errorf("prover rate limit must be positive")
	}
	switch c.Wallet.Store {
	case StoreFile, StorePebble:
	default:
		return fmt.Errorf("unknown wallet.store %q", c.Wallet.Store)
	}
	if c.SyncWorkers <= 0 {
		return fmt.Errorf("sync_workers must be positive")
	}
	if c.ProofTimeout < 0 || c.SubmitTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}
