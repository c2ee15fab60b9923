package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(DefaultChainID), cfg.Chain.ChainID)
	assert.Equal(t, uint64(DefaultFallbackGasLimit), cfg.Tx.FallbackGasLimit)
	assert.Equal(t, 120*time.Second, cfg.ReceiptTimeout())
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, DefaultExplorerTxURL, cfg.Tx.ExplorerTxURL)
	assert.Equal(t, DefaultSimpleWallet, cfg.Contracts.SimpleWallet)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "11155111", cfg.ChainIDBig().String())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evmprobe.toml")
	content := `
[chain]
rpc_url = "https://file.example/rpc"
chain_id = 31337

[wallet]
private_key = "0xabc"

[tx]
fallback_gas_limit = 500000
poll_interval_millis = 250

[logging]
level = "debug"
format = "text"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("EVMPROBE_RPC_URL", "https://env.example/rpc")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example/rpc", cfg.Chain.RPCURL, "env overrides file")
	assert.Equal(t, int64(31337), cfg.Chain.ChainID)
	assert.Equal(t, "0xabc", cfg.Wallet.PrivateKey)
	assert.Equal(t, uint64(500000), cfg.Tx.FallbackGasLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 120, cfg.Tx.ReceiptTimeoutSeconds, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chain\nrpc_url = "), 0o600))

	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestEnvParsing(t *testing.T) {
	t.Setenv("EVMPROBE_CHAIN_ID", "not-a-number")
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	t.Setenv("METRICS_ENABLED", "TRUE")
	t.Setenv("EVMPROBE_RPC_RPS", "12.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(DefaultChainID), cfg.Chain.ChainID, "malformed values fall back")
	assert.False(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 12.5, cfg.Chain.RequestsPerSecond)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Chain.RPCURL = "http://127.0.0.1:8545"
		cfg.Wallet.PrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing rpc url", func(c *Config) { c.Chain.RPCURL = "" }, "rpc_url"},
		{"missing key", func(c *Config) { c.Wallet.PrivateKey = " " }, "private_key"},
		{"bad chain id", func(c *Config) { c.Chain.ChainID = 0 }, "chain_id"},
		{"bad address", func(c *Config) { c.Contracts.Game = "0x123" }, "contracts.game"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
