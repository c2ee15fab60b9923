// Package config loads process configuration from an optional TOML file
// overlaid with environment variables.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Defaults.
const (
	DefaultChainID          = 11155111 // Sepolia
	DefaultFallbackGasLimit = 300_000
	DefaultExplorerTxURL    = "https://sepolia.etherscan.io/tx/"
	DefaultSimpleWallet     = "0x428dc0f4f806054CE70b26F1bB6a186317644123"
)

// Config holds all configuration for the process.
type Config struct {
	Chain     ChainConfig     `toml:"chain"`
	Wallet    WalletConfig    `toml:"wallet"`
	Contracts ContractsConfig `toml:"contracts"`
	Tx        TxConfig        `toml:"tx"`
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// ChainConfig identifies the node endpoint and chain.
type ChainConfig struct {
	RPCURL            string  `toml:"rpc_url"`
	ChainID           int64   `toml:"chain_id"`
	RequestsPerSecond float64 `toml:"requests_per_second"` // 0 disables client-side pacing
	Burst             int     `toml:"burst"`
}

// WalletConfig holds the single signing key.
type WalletConfig struct {
	PrivateKey string `toml:"private_key"`
}

// ContractsConfig holds default contract addresses used when a request
// does not name one.
type ContractsConfig struct {
	Token        string `toml:"token"`
	SimpleWallet string `toml:"simple_wallet"`
	Game         string `toml:"game"`
}

// TxConfig holds submission and receipt settings.
type TxConfig struct {
	FallbackGasLimit      uint64 `toml:"fallback_gas_limit"`
	ReceiptTimeoutSeconds int    `toml:"receipt_timeout_seconds"`
	PollIntervalMillis    int    `toml:"poll_interval_millis"`
	ExplorerTxURL         string `toml:"explorer_tx_url"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int    `toml:"port"`
	Host         string `toml:"host"`
	ReadTimeout  int    `toml:"read_timeout"`  // seconds
	WriteTimeout int    `toml:"write_timeout"` // seconds
	IdleTimeout  int    `toml:"idle_timeout"`  // seconds
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// RateLimitConfig holds HTTP rate limiting settings
type RateLimitConfig struct {
	Enabled        bool `toml:"enabled"`
	RequestsPerMin int  `toml:"requests_per_min"`
	BurstSize      int  `toml:"burst_size"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Chain: ChainConfig{
			ChainID: DefaultChainID,
			Burst:   1,
		},
		Contracts: ContractsConfig{
			SimpleWallet: DefaultSimpleWallet,
		},
		Tx: TxConfig{
			FallbackGasLimit:      DefaultFallbackGasLimit,
			ReceiptTimeoutSeconds: 120,
			PollIntervalMillis:    2000,
			ExplorerTxURL:         DefaultExplorerTxURL,
		},
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 300,
			BurstSize:      50,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Chain.RPCURL = getEnv("EVMPROBE_RPC_URL", c.Chain.RPCURL)
	c.Chain.ChainID = getEnvInt64("EVMPROBE_CHAIN_ID", c.Chain.ChainID)
	c.Chain.RequestsPerSecond = getEnvFloat("EVMPROBE_RPC_RPS", c.Chain.RequestsPerSecond)
	c.Chain.Burst = getEnvInt("EVMPROBE_RPC_BURST", c.Chain.Burst)

	c.Wallet.PrivateKey = getEnv("EVMPROBE_PRIVATE_KEY", c.Wallet.PrivateKey)

	c.Contracts.Token = getEnv("EVMPROBE_TOKEN_ADDRESS", c.Contracts.Token)
	c.Contracts.SimpleWallet = getEnv("EVMPROBE_WALLET_ADDRESS", c.Contracts.SimpleWallet)
	c.Contracts.Game = getEnv("EVMPROBE_GAME_ADDRESS", c.Contracts.Game)

	c.Tx.FallbackGasLimit = getEnvUint64("EVMPROBE_FALLBACK_GAS_LIMIT", c.Tx.FallbackGasLimit)
	c.Tx.ReceiptTimeoutSeconds = getEnvInt("EVMPROBE_RECEIPT_TIMEOUT_SECONDS", c.Tx.ReceiptTimeoutSeconds)
	c.Tx.PollIntervalMillis = getEnvInt("EVMPROBE_POLL_INTERVAL_MS", c.Tx.PollIntervalMillis)
	c.Tx.ExplorerTxURL = getEnv("EVMPROBE_EXPLORER_TX_URL", c.Tx.ExplorerTxURL)

	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.ReadTimeout = getEnvInt("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvInt("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvInt("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	c.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RequestsPerMin = getEnvInt("RATE_LIMIT_RPM", c.RateLimit.RequestsPerMin)
	c.RateLimit.BurstSize = getEnvInt("RATE_LIMIT_BURST", c.RateLimit.BurstSize)

	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)
}

// Validate reports every problem that would prevent startup.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		errs = append(errs, errors.New("chain.rpc_url (EVMPROBE_RPC_URL) is required"))
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Errorf("chain.chain_id must be positive, got %d", c.Chain.ChainID))
	}
	if strings.TrimSpace(c.Wallet.PrivateKey) == "" {
		errs = append(errs, errors.New("wallet.private_key (EVMPROBE_PRIVATE_KEY) is required"))
	}
	for name, addr := range map[string]string{
		"contracts.token":         c.Contracts.Token,
		"contracts.simple_wallet": c.Contracts.SimpleWallet,
		"contracts.game":          c.Contracts.Game,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Errorf("%s: %q is not a hex address", name, addr))
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ChainIDBig returns the chain id as a *big.Int.
func (c *Config) ChainIDBig() *big.Int {
	return big.NewInt(c.Chain.ChainID)
}

// ReceiptTimeout returns the receipt wait budget.
func (c *Config) ReceiptTimeout() time.Duration {
	return time.Duration(c.Tx.ReceiptTimeoutSeconds) * time.Second
}

// PollInterval returns the receipt poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Tx.PollIntervalMillis) * time.Millisecond
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseUint(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}
