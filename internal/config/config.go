package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	NATS       NATSConfig       `yaml:"nats"`
	Blockchain BlockchainConfig `yaml:"blockchain"`
	Backends   BackendsConfig   `yaml:"backends"`
	Swap       SwapConfig       `yaml:"swap"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// RedisConfig redis counter/mark store configuration
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// Addr returns the host:port address
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"` // seconds
	SubjectPrefix string `yaml:"subject_prefix"`
}

// BlockchainConfig blockchain configuration
type BlockchainConfig struct {
	Networks            map[string]NetworkConfig `yaml:"networks"`
	ReceiptTimeout      int                      `yaml:"receiptTimeout"`      // seconds, bound on confirmation wait
	ReceiptPollInterval int                      `yaml:"receiptPollInterval"` // seconds
}

// NetworkConfig per-network configuration
type NetworkConfig struct {
	ChainID       uint64   `yaml:"chainId"`
	Name          string   `yaml:"name"`
	RPCEndpoints  []string `yaml:"rpcEndpoints"`
	MultiSend     string   `yaml:"multiSend"`     // delegated multi-call helper contract
	Permit2       string   `yaml:"permit2"`       // Permit2 intermediary for the two-hop approval
	UniswapRouter string   `yaml:"uniswapRouter"` // universal router
	UniswapQuoter string   `yaml:"uniswapQuoter"` // QuoterV2
	RelayerURL    string   `yaml:"relayerUrl"`    // gas-sponsoring submitter; empty means client-submit mode
	Enabled       bool     `yaml:"enabled"`
}

// RelayEnabled reports whether the network submits through the relayer
func (n NetworkConfig) RelayEnabled() bool {
	return n.RelayerURL != ""
}

// BackendsConfig liquidity-routing backend endpoints
type BackendsConfig struct {
	ZeroExBaseURL string `yaml:"zeroexBaseUrl"`
	ZeroExAPIKey  string `yaml:"zeroexApiKey"`
	LiFiBaseURL   string `yaml:"lifiBaseUrl"`
}

// SwapConfig swap guard and caching knobs
type SwapConfig struct {
	MinAmountBaseUnits  string `yaml:"minAmountBaseUnits"`  // reject amounts below this (decimal string)
	MaxSlippageBps      int64  `yaml:"maxSlippageBps"`      // slippage tolerance ceiling
	RateLimitPerHour    int64  `yaml:"rateLimitPerHour"`    // executions per wallet per fixed window
	SpamCooldownSeconds int    `yaml:"spamCooldownSeconds"` // minimum elapsed time between accepted executions
	PayloadTTLSeconds   int    `yaml:"payloadTtlSeconds"`   // signed-payload cache TTL
	QuoteTTLSeconds     int    `yaml:"quoteTtlSeconds"`     // quote validity window
}

// SpamCooldown returns the cooldown as a duration
func (s SwapConfig) SpamCooldown() time.Duration {
	return time.Duration(s.SpamCooldownSeconds) * time.Second
}

// PayloadTTL returns the payload cache TTL as a duration
func (s SwapConfig) PayloadTTL() time.Duration {
	return time.Duration(s.PayloadTTLSeconds) * time.Second
}

// LoadConfig loads configuration from a yaml file, then applies environment
// overrides for deploy-sensitive values
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
		if env := os.Getenv("CONFIG_PATH"); env != "" {
			path = env
		}
	}

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		// missing file is allowed; env overrides must carry the rest
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Redis:  RedisConfig{Host: "localhost", Port: 6379, Timeout: 5},
		Blockchain: BlockchainConfig{
			ReceiptTimeout:      300,
			ReceiptPollInterval: 3,
		},
		Backends: BackendsConfig{
			ZeroExBaseURL: "https://api.0x.org",
			LiFiBaseURL:   "https://li.quest/v1",
		},
		Swap: SwapConfig{
			MinAmountBaseUnits:  "1",
			MaxSlippageBps:      500,
			RateLimitPerHour:    10,
			SpamCooldownSeconds: 10,
			PayloadTTLSeconds:   300,
			QuoteTTLSeconds:     300,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("ZEROEX_API_KEY"); v != "" {
		cfg.Backends.ZeroExAPIKey = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Swap.MaxSlippageBps <= 0 || cfg.Swap.MaxSlippageBps >= 10000 {
		return fmt.Errorf("swap.maxSlippageBps must be in (0, 10000), got %d", cfg.Swap.MaxSlippageBps)
	}
	if cfg.Swap.RateLimitPerHour <= 0 {
		return fmt.Errorf("swap.rateLimitPerHour must be positive, got %d", cfg.Swap.RateLimitPerHour)
	}
	for name, network := range cfg.Blockchain.Networks {
		if network.Enabled && len(network.RPCEndpoints) == 0 {
			return fmt.Errorf("network %s is enabled but has no rpcEndpoints", name)
		}
	}
	return nil
}

// GetNetworkByChainID finds the enabled network configuration for a chain
func (c *Config) GetNetworkByChainID(chainID uint64) (*NetworkConfig, error) {
	for _, network := range c.Blockchain.Networks {
		if network.ChainID == chainID && network.Enabled {
			n := network
			return &n, nil
		}
	}
	return nil, fmt.Errorf("no enabled network configured for chain %d", chainID)
}
