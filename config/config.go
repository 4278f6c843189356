// Package config loads the bridge configuration from a YAML file with BRIDGE_ environment overrides.
package config

import (
	"strings"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/guardian"
	"github.com/ClipFinance/bridge-lib/orchestrator"
	"github.com/ClipFinance/bridge-lib/redemption"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BRIDGE_GUARDIAN_TIMEOUT.
const EnvPrefix = "BRIDGE"

// Config holds the configuration of a bridge deployment.
type Config struct {
	LogLevel     string                `mapstructure:"log_level"`
	Guardian     guardian.Config       `mapstructure:"guardian"`
	Poller       guardian.PollerConfig `mapstructure:"poller"`
	Redemption   redemption.Config     `mapstructure:"redemption"`
	Orchestrator orchestrator.Config   `mapstructure:"orchestrator"`
	Redis        RedisConfig           `mapstructure:"redis"`
	Database     DatabaseConfig        `mapstructure:"database"`
	Chains       []types.ChainConfig   `mapstructure:"chains"`
}

// RedisConfig configures the attestation cache. An empty URL disables it.
type RedisConfig struct {
	URL      string        `mapstructure:"url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DatabaseConfig configures the Postgres transfer store. ChainsFromDB loads chain configs from the
// chains table instead of the chains list.
type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	ChainsFromDB bool   `mapstructure:"chains_from_db"`
}

// Load reads path, applies environment overrides and validates the result. An empty path skips
// the file and reads defaults and environment only.
//
// Parameters:
// - path: the YAML file.
//
// Returns:
// - *Config: the configuration.
// - error: an error if the file cannot be read or the configuration is invalid.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling config")
	}

	if err := validate(&config); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("guardian.hosts", []string{"https://api.wormholescan.io"})
	v.SetDefault("guardian.timeout", 10*time.Second)
	v.SetDefault("guardian.check_governor", true)
	v.SetDefault("guardian.requests_per_second", 5.0)

	v.SetDefault("poller.interval", 5*time.Second)
	v.SetDefault("poller.max_transport_errors", 10)
	v.SetDefault("poller.transport_backoff", time.Second)
	v.SetDefault("poller.max_transport_backoff", 30*time.Second)

	v.SetDefault("redemption.interval", time.Second)
	v.SetDefault("redemption.max_attempts", 3)

	v.SetDefault("orchestrator.max_attempts", 60)
	v.SetDefault("orchestrator.parse_retries", 5)
	v.SetDefault("orchestrator.parse_interval", 2*time.Second)
	v.SetDefault("orchestrator.resume_workers", 4)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.cache_ttl", time.Duration(0))

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.chains_from_db", false)
}

func validate(c *Config) error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(berrors.ErrInvalidConfig, "log level %q", c.LogLevel)
	}
	if len(c.Guardian.Hosts) == 0 {
		return errors.Wrap(berrors.ErrInvalidConfig, "at least one guardian host is required")
	}
	if c.Database.ChainsFromDB && c.Database.DSN == "" {
		return errors.Wrap(berrors.ErrInvalidConfig, "chains_from_db needs a database dsn")
	}

	seen := make(map[types.ChainID]bool, len(c.Chains))
	for i := range c.Chains {
		chain := &c.Chains[i]
		chain.ChainType = types.ParseChainType(strings.ToUpper(chain.ChainType.String()))
		if chain.ChainType == types.UNKNOWN {
			return errors.Wrapf(berrors.ErrInvalidChainType, "chain %s", chain.Name)
		}
		if chain.ChainID == types.ChainIDUnset {
			return errors.Wrapf(berrors.ErrInvalidChainID, "chain %s", chain.Name)
		}
		if seen[chain.ChainID] {
			return errors.Wrapf(berrors.ErrChainExists, "chain id %d", chain.ChainID)
		}
		seen[chain.ChainID] = true
	}
	return nil
}

// NewLogger returns a JSON logger at the configured level.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
