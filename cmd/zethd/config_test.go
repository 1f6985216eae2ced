package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "zethd.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	require.FileExists(t, path)

	cfg.TreeDepth = 16
	cfg.Prover.Kind = ProverGroth16
	cfg.ProofTimeout = 90 * time.Second
	require.NoError(t, SaveConfig(cfg, path))

	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadConfigKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zethd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tree_depth: 20\nsubmit_timeout: 2s\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.TreeDepth)
	assert.Equal(t, 2*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, ProverReference, cfg.Prover.Kind)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zethd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tree_depth: [\n"), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"depth zero", func(c *Config) { c.TreeDepth = 0 }, false},
		{"depth too large", func(c *Config) { c.TreeDepth = 33 }, false},
		{"no root history", func(c *Config) { c.RootHistory = 0 }, false},
		{"unknown prover", func(c *Config) { c.Prover.Kind = "magic" }, false},
		{"reference without secret", func(c *Config) { c.Prover.Secret = "" }, false},
		{"remote without url", func(c *Config) { c.Prover.Kind = ProverRemote; c.Prover.RemoteURL = "" }, false},
		{"groth16 needs no secret", func(c *Config) { c.Prover.Kind = ProverGroth16; c.Prover.Secret = "" }, true},
		{"pebble store", func(c *Config) { c.Wallet.Store = StorePebble }, true},
		{"unknown store", func(c *Config) { c.Wallet.Store = "s3" }, false},
		{"no workers", func(c *Config) { c.SyncWorkers = 0 }, false},
		{"negative timeout", func(c *Config) { c.ProofTimeout = -time.Second }, false},
		{"no rate limit", func(c *Config) { c.Prover.RateLimit = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
