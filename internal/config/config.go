// Package config defines all configuration for the signal bridge.
// Config is loaded from an optional YAML file (default: configs/config.yaml)
// with every field overridable via environment variables; the deployment
// variables ENVIRONMENT, HYPERLIQUID_TESTNET_KEY, HYPERLIQUID_MAINNET_KEY,
// MONGO_URL and DB_NAME are honored verbatim.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"hlbridge/pkg/types"
)

// Config is the top-level configuration.
type Config struct {
	Environment string        `mapstructure:"environment"`
	Wallet      WalletConfig  `mapstructure:"wallet"`
	Mongo       MongoConfig   `mapstructure:"mongo"`
	Server      ServerConfig  `mapstructure:"server"`
	Uptime      UptimeConfig  `mapstructure:"uptime"`
	Balance     BalanceConfig `mapstructure:"balance"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// WalletConfig holds the per-environment signing keys. Only the key for the
// active environment is required at startup; switching environments at
// runtime requires the other key too.
type WalletConfig struct {
	TestnetKey string `mapstructure:"testnet_key"`
	MainnetKey string `mapstructure:"mainnet_key"`
}

// MongoConfig sets where journal entries and strategy stats are persisted.
type MongoConfig struct {
	URL      string        `mapstructure:"url"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// UptimeConfig tunes the connectivity prober.
type UptimeConfig struct {
	Target   string        `mapstructure:"target"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// BalanceConfig tunes the cached balance reader.
type BalanceConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from an optional YAML file with env var overrides.
// A missing file is not an error; the deployment env vars alone are enough.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("environment", string(types.EnvTestnet))
	v.SetDefault("mongo.database", "hyperliquid_trading")
	v.SetDefault("mongo.timeout", 10*time.Second)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	// Webhook execution runs inside the request, and a contended symbol
	// lock alone can hold it for 30 s.
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("uptime.target", "http://1.1.1.1")
	v.SetDefault("uptime.interval", 5*time.Second)
	v.SetDefault("uptime.timeout", 2*time.Second)
	v.SetDefault("balance.ttl", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Deployment env vars win over anything in the file.
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}
	if key := os.Getenv("HYPERLIQUID_TESTNET_KEY"); key != "" {
		cfg.Wallet.TestnetKey = key
	}
	if key := os.Getenv("HYPERLIQUID_MAINNET_KEY"); key != "" {
		cfg.Wallet.MainnetKey = key
	}
	if url := os.Getenv("MONGO_URL"); url != "" {
		cfg.Mongo.URL = url
	}
	if db := os.Getenv("DB_NAME"); db != "" {
		cfg.Mongo.Database = db
	}

	cfg.Environment = strings.ToLower(cfg.Environment)
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	env := types.Environment(c.Environment)
	if !env.Valid() {
		return fmt.Errorf("%w: environment must be testnet or mainnet, got %q", types.ErrConfiguration, c.Environment)
	}
	if c.Key(env) == "" {
		return fmt.Errorf("%w: signing key for environment %q is not set", types.ErrConfiguration, env)
	}
	if c.Mongo.URL == "" {
		return fmt.Errorf("%w: mongo.url is required (set MONGO_URL)", types.ErrConfiguration)
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("%w: mongo.database is required (set DB_NAME)", types.ErrConfiguration)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be in 1..65535", types.ErrConfiguration)
	}
	return nil
}

// Key returns the signing key for env, empty when not configured.
func (c *Config) Key(env types.Environment) string {
	if env == types.EnvMainnet {
		return c.Wallet.MainnetKey
	}
	return c.Wallet.TestnetKey
}
